package formula

import (
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/shopspring/decimal"
)

var numberFunctions = []Definition{
	{
		Key:         "ADD",
		Name:        "Add",
		Description: "Sum of all arguments. Empty values count as zero.",
		InputRules:  models.InputRules{{Name: "number", Type: models.ValueTypeNumber, Variadic: true}},
		OutputType:  models.ValueTypeNumber,
		Fn: func(inputs ...any) (any, error) {
			numbers, err := decimals(inputs)
			if err != nil {
				return nil, err
			}
			return toResult(decimal.Sum(decimal.Zero, numbers...)), nil
		},
	},
	{
		Key:         "SUBTRACT",
		Name:        "Subtract",
		Description: "Subtracts every further argument from the first.",
		InputRules: models.InputRules{
			{Name: "number", Type: models.ValueTypeNumber},
			{Name: "subtrahend", Type: models.ValueTypeNumber, Variadic: true},
		},
		OutputType: models.ValueTypeNumber,
		Fn: func(inputs ...any) (any, error) {
			numbers, err := decimals(inputs)
			if err != nil {
				return nil, err
			}
			result := numbers[0]
			for _, n := range numbers[1:] {
				result = result.Sub(n)
			}
			return toResult(result), nil
		},
	},
	{
		Key:         "MULTIPLY",
		Name:        "Multiply",
		Description: "Product of all arguments.",
		InputRules: models.InputRules{
			{Name: "number", Type: models.ValueTypeNumber},
			{Name: "factor", Type: models.ValueTypeNumber, Variadic: true},
		},
		OutputType: models.ValueTypeNumber,
		Fn: func(inputs ...any) (any, error) {
			numbers, err := decimals(inputs)
			if err != nil {
				return nil, err
			}
			result := numbers[0]
			for _, n := range numbers[1:] {
				result = result.Mul(n)
			}
			return toResult(result), nil
		},
	},
	{
		Key:         "DIVIDE",
		Name:        "Divide",
		Description: "Divides the first argument by the second.",
		InputRules: models.InputRules{
			{Name: "numerator", Type: models.ValueTypeNumber},
			{Name: "denominator", Type: models.ValueTypeNumber},
		},
		OutputType: models.ValueTypeNumber,
		Fn: func(inputs ...any) (any, error) {
			numbers, err := decimals(inputs)
			if err != nil {
				return nil, err
			}
			if numbers[1].IsZero() {
				return nil, fmt.Errorf("division by zero")
			}
			return toResult(numbers[0].Div(numbers[1])), nil
		},
	},
	{
		Key:         "ROUND",
		Name:        "Round",
		Description: "Rounds half away from zero to the given number of decimal places (default 0).",
		InputRules: models.InputRules{
			{Name: "number", Type: models.ValueTypeNumber},
			{Name: "places", Type: models.ValueTypeNumber, Optional: true},
		},
		OutputType: models.ValueTypeNumber,
		Fn: func(inputs ...any) (any, error) {
			numbers, err := decimals(inputs[:1])
			if err != nil {
				return nil, err
			}
			places, err := intArg(inputs, 1, 0)
			if err != nil {
				return nil, err
			}
			return toResult(numbers[0].Round(int32(places))), nil
		},
	},
	{
		Key:         "ABS",
		Name:        "Absolute value",
		Description: "Absolute value of a number.",
		InputRules:  models.InputRules{{Name: "number", Type: models.ValueTypeNumber}},
		OutputType:  models.ValueTypeNumber,
		Fn: func(inputs ...any) (any, error) {
			numbers, err := decimals(inputs)
			if err != nil {
				return nil, err
			}
			return toResult(numbers[0].Abs()), nil
		},
	},
	{
		Key:         "NUMBER",
		Name:        "To number",
		Description: "Parses a value as a number. Empty values become null.",
		InputRules:  models.InputRules{{Name: "value", Type: models.ValueTypeAny}},
		OutputType:  models.ValueTypeNumber,
		Fn: func(inputs ...any) (any, error) {
			if utils.IsEmpty(inputs[0]) {
				return nil, nil
			}
			d, ok := utils.ToDecimal(inputs[0])
			if !ok {
				return nil, fmt.Errorf("'%v' is not a number", inputs[0])
			}
			return toResult(d), nil
		},
	},
}

// decimals converts all inputs. Empty values count as zero.
func decimals(inputs []any) ([]decimal.Decimal, error) {
	result := make([]decimal.Decimal, 0, len(inputs))
	for _, input := range inputs {
		if utils.IsEmpty(input) {
			result = append(result, decimal.Zero)
			continue
		}
		d, ok := utils.ToDecimal(input)
		if !ok {
			return nil, fmt.Errorf("'%v' is not a number", input)
		}
		result = append(result, d)
	}
	return result, nil
}

func toResult(d decimal.Decimal) any {
	f, _ := d.Float64()
	return f
}
