package formula

import (
	"fmt"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/utils"
)

var textFunctions = []Definition{
	{
		Key:         "CONCAT",
		Name:        "Concatenate",
		Description: "Joins all arguments into one text. Empty values are skipped.",
		InputRules:  models.InputRules{{Name: "text", Type: models.ValueTypeString, Variadic: true}},
		OutputType:  models.ValueTypeString,
		Fn: func(inputs ...any) (any, error) {
			parts := ectolinq.Map(inputs, func(input any) string {
				return utils.ToString(input)
			})
			return strings.Join(parts, ""), nil
		},
	},
	{
		Key:         "LIST_JOIN",
		Name:        "Join list",
		Description: "Joins the remaining arguments (or the items of array arguments) with the delimiter given first.",
		InputRules: models.InputRules{
			{Name: "delimiter", Type: models.ValueTypeString},
			{Name: "values", Type: models.ValueTypeAny, Variadic: true},
		},
		OutputType: models.ValueTypeString,
		Fn: func(inputs ...any) (any, error) {
			delimiter := utils.ToString(inputs[0])
			items := []string{}
			for _, input := range inputs[1:] {
				if list, ok := utils.ToSlice(input); ok {
					for _, item := range list {
						items = append(items, utils.ToString(item))
					}
					continue
				}
				if !utils.IsEmpty(input) {
					items = append(items, utils.ToString(input))
				}
			}
			return strings.Join(items, delimiter), nil
		},
	},
	{
		Key:         "UPPER",
		Name:        "Upper case",
		Description: "Converts text to upper case.",
		InputRules:  models.InputRules{{Name: "text", Type: models.ValueTypeString}},
		OutputType:  models.ValueTypeString,
		Fn: func(inputs ...any) (any, error) {
			return strings.ToUpper(utils.ToString(inputs[0])), nil
		},
	},
	{
		Key:         "LOWER",
		Name:        "Lower case",
		Description: "Converts text to lower case.",
		InputRules:  models.InputRules{{Name: "text", Type: models.ValueTypeString}},
		OutputType:  models.ValueTypeString,
		Fn: func(inputs ...any) (any, error) {
			return strings.ToLower(utils.ToString(inputs[0])), nil
		},
	},
	{
		Key:         "TRIM",
		Name:        "Trim",
		Description: "Removes leading and trailing whitespace.",
		InputRules:  models.InputRules{{Name: "text", Type: models.ValueTypeString}},
		OutputType:  models.ValueTypeString,
		Fn: func(inputs ...any) (any, error) {
			return strings.TrimSpace(utils.ToString(inputs[0])), nil
		},
	},
	{
		Key:         "LENGTH",
		Name:        "Length",
		Description: "Number of characters in a text or items in an array.",
		InputRules:  models.InputRules{{Name: "value", Type: models.ValueTypeAny}},
		OutputType:  models.ValueTypeNumber,
		Fn: func(inputs ...any) (any, error) {
			if list, ok := utils.ToSlice(inputs[0]); ok {
				return float64(len(list)), nil
			}
			return float64(len([]rune(utils.ToString(inputs[0])))), nil
		},
	},
	{
		Key:         "SUBSTRING",
		Name:        "Substring",
		Description: "Part of a text starting at a zero-based position, optionally limited in length.",
		InputRules: models.InputRules{
			{Name: "text", Type: models.ValueTypeString},
			{Name: "start", Type: models.ValueTypeNumber},
			{Name: "length", Type: models.ValueTypeNumber, Optional: true},
		},
		OutputType: models.ValueTypeString,
		Fn: func(inputs ...any) (any, error) {
			runes := []rune(utils.ToString(inputs[0]))
			start, err := intArg(inputs, 1, 0)
			if err != nil {
				return nil, err
			}
			length, err := intArg(inputs, 2, len(runes))
			if err != nil {
				return nil, err
			}
			return sliceRunes(runes, start, length), nil
		},
	},
	{
		Key:         "LEFT",
		Name:        "Left",
		Description: "The first n characters of a text.",
		InputRules: models.InputRules{
			{Name: "text", Type: models.ValueTypeString},
			{Name: "count", Type: models.ValueTypeNumber},
		},
		OutputType: models.ValueTypeString,
		Fn: func(inputs ...any) (any, error) {
			count, err := intArg(inputs, 1, 0)
			if err != nil {
				return nil, err
			}
			return sliceRunes([]rune(utils.ToString(inputs[0])), 0, count), nil
		},
	},
	{
		Key:         "RIGHT",
		Name:        "Right",
		Description: "The last n characters of a text.",
		InputRules: models.InputRules{
			{Name: "text", Type: models.ValueTypeString},
			{Name: "count", Type: models.ValueTypeNumber},
		},
		OutputType: models.ValueTypeString,
		Fn: func(inputs ...any) (any, error) {
			runes := []rune(utils.ToString(inputs[0]))
			count, err := intArg(inputs, 1, 0)
			if err != nil {
				return nil, err
			}
			return sliceRunes(runes, len(runes)-count, count), nil
		},
	},
	{
		Key:         "REPLACE",
		Name:        "Replace",
		Description: "Replaces every occurrence of search with replacement.",
		InputRules: models.InputRules{
			{Name: "text", Type: models.ValueTypeString},
			{Name: "search", Type: models.ValueTypeString},
			{Name: "replacement", Type: models.ValueTypeString},
		},
		OutputType: models.ValueTypeString,
		Fn: func(inputs ...any) (any, error) {
			return strings.ReplaceAll(utils.ToString(inputs[0]), utils.ToString(inputs[1]), utils.ToString(inputs[2])), nil
		},
	},
	{
		Key:         "SPLIT",
		Name:        "Split",
		Description: "Splits a delimited text into an array.",
		InputRules: models.InputRules{
			{Name: "text", Type: models.ValueTypeString},
			{Name: "delimiter", Type: models.ValueTypeString, Optional: true},
		},
		OutputType: models.ValueTypeArray,
		Fn: func(inputs ...any) (any, error) {
			delimiter := ","
			if len(inputs) > 1 && utils.ToString(inputs[1]) != "" {
				delimiter = utils.ToString(inputs[1])
			}
			return ectolinq.Map(utils.SplitList(inputs[0], delimiter), func(s string) any { return s }), nil
		},
	},
}

func intArg(inputs []any, index, fallback int) (int, error) {
	if index >= len(inputs) || inputs[index] == nil {
		return fallback, nil
	}
	d, ok := utils.ToDecimal(inputs[index])
	if !ok {
		return 0, fmt.Errorf("argument %d must be a number, got %v", index+1, inputs[index])
	}
	return int(d.IntPart()), nil
}

func sliceRunes(runes []rune, start, length int) string {
	if start < 0 {
		length += start
		start = 0
	}
	if start >= len(runes) || length <= 0 {
		return ""
	}
	end := start + length
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end])
}
