package formula

import (
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/utils"
)

var logicFunctions = []Definition{
	{
		Key:         "IF",
		Name:        "If",
		Description: "Returns the second argument if the condition is truthy, else the third (or null).",
		InputRules: models.InputRules{
			{Name: "condition", Type: models.ValueTypeAny},
			{Name: "then", Type: models.ValueTypeAny},
			{Name: "else", Type: models.ValueTypeAny, Optional: true},
		},
		OutputType: models.ValueTypeAny,
		Fn: func(inputs ...any) (any, error) {
			if utils.ToBool(inputs[0]) {
				return inputs[1], nil
			}
			if len(inputs) > 2 {
				return inputs[2], nil
			}
			return nil, nil
		},
	},
	{
		Key:         "COALESCE",
		Name:        "Coalesce",
		Description: "The first non-empty argument.",
		InputRules:  models.InputRules{{Name: "value", Type: models.ValueTypeAny, Variadic: true}},
		OutputType:  models.ValueTypeAny,
		Fn: func(inputs ...any) (any, error) {
			for _, input := range inputs {
				if !utils.IsEmpty(input) {
					return input, nil
				}
			}
			return nil, nil
		},
	},
	{
		Key:         "EQUALS",
		Name:        "Equals",
		Description: "True if both values are equal. Numbers compare numerically.",
		InputRules: models.InputRules{
			{Name: "left", Type: models.ValueTypeAny},
			{Name: "right", Type: models.ValueTypeAny},
		},
		OutputType: models.ValueTypeBool,
		Fn: func(inputs ...any) (any, error) {
			return utils.ValuesEqual(inputs[0], inputs[1]), nil
		},
	},
	{
		Key:         "NOT",
		Name:        "Not",
		Description: "Negates a truthy value.",
		InputRules:  models.InputRules{{Name: "value", Type: models.ValueTypeAny}},
		OutputType:  models.ValueTypeBool,
		Fn: func(inputs ...any) (any, error) {
			return !utils.ToBool(inputs[0]), nil
		},
	},
	{
		Key:         "IS_EMPTY",
		Name:        "Is empty",
		Description: "True for null, blank text and empty lists.",
		InputRules:  models.InputRules{{Name: "value", Type: models.ValueTypeAny}},
		OutputType:  models.ValueTypeBool,
		Fn: func(inputs ...any) (any, error) {
			return utils.IsEmpty(inputs[0]), nil
		},
	},
}
