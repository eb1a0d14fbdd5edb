package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueTypeAccepts(t *testing.T) {
	tests := []struct {
		name  string
		vt    ValueType
		value any
		want  bool
	}{
		{"string slice is an array", ValueTypeArray, []string{"a"}, true},
		{"nil is no array", ValueTypeArray, nil, false},
		{"int64 is a number", ValueTypeNumber, int64(3), true},
		{"uint8 is a number", ValueTypeNumber, uint8(3), true},
		{"decimal is a number", ValueTypeNumber, decimal.NewFromFloat(1.25), true},
		{"json number is a number", ValueTypeNumber, json.Number("12"), true},
		{"numeric text is no number", ValueTypeNumber, "1", false},
		{"json is text", ValueTypeJSON, "{}", true},
		{"sheet is a map", ValueTypeSheet, map[string]any{"rows": []any{}}, true},
		{"date", ValueTypeDate, time.Now(), true},
		{"anything is any", ValueTypeAny, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.vt.Accepts(tt.value))
		})
	}
}

func TestParseValueType(t *testing.T) {
	vt, err := ParseValueType("Number")
	require.NoError(t, err)
	assert.Equal(t, ValueTypeNumber, vt)

	vt, err = ParseValueType("")
	require.NoError(t, err)
	assert.Equal(t, ValueTypeAny, vt)

	_, err = ParseValueType("blob")
	assert.Error(t, err)
}

func TestInputRulesValidate(t *testing.T) {
	rules := InputRules{
		{Name: "text", Type: ValueTypeString},
		{Name: "start", Type: ValueTypeNumber, Optional: true},
	}
	assert.Equal(t, 1, rules.MinArgs())
	assert.Equal(t, 2, rules.MaxArgs())

	assert.NoError(t, rules.Validate("abc"))
	assert.NoError(t, rules.Validate("abc", 1))
	assert.Error(t, rules.Validate())
	assert.Error(t, rules.Validate("abc", 1, 2))

	variadic := InputRules{{Name: "values", Type: ValueTypeAny, Variadic: true}}
	assert.Equal(t, 0, variadic.MinArgs())
	assert.Equal(t, -1, variadic.MaxArgs())
	assert.NoError(t, variadic.Validate(1, 2, 3, 4))

	arrays := InputRules{{Name: "list", Type: ValueTypeArray}}
	assert.NoError(t, arrays.Validate([]any{1}))
	assert.Error(t, arrays.Validate("x"))
}
