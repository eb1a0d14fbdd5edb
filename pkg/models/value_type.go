package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ValueType is the data type of an attribute, a column or a formula input.
type ValueType string

const (
	ValueTypeString ValueType = "string"
	ValueTypeNumber ValueType = "number"
	ValueTypeBool   ValueType = "bool"
	ValueTypeArray  ValueType = "array"
	ValueTypeObject ValueType = "object"
	ValueTypeDate   ValueType = "date"
	ValueTypeJSON   ValueType = "json"
	ValueTypeSheet  ValueType = "sheet"
	ValueTypeAny    ValueType = "any"
)

var valueTypes = []ValueType{
	ValueTypeString, ValueTypeNumber, ValueTypeBool, ValueTypeArray,
	ValueTypeObject, ValueTypeDate, ValueTypeJSON, ValueTypeSheet, ValueTypeAny,
}

// ParseValueType accepts the type names used in model files. An empty name means any.
func ParseValueType(name string) (ValueType, error) {
	if name == "" {
		return ValueTypeAny, nil
	}
	for _, vt := range valueTypes {
		if strings.EqualFold(string(vt), name) {
			return vt, nil
		}
	}
	return "", fmt.Errorf("unknown value type '%s'", name)
}

// Accepts reports whether a cell value fits the type without coercion. JSON
// columns hold their document as text and nested sheets arrive as uxon maps.
func (vt ValueType) Accepts(value any) bool {
	switch vt {
	case ValueTypeAny:
		return true
	case ValueTypeString, ValueTypeJSON:
		_, ok := value.(string)
		return ok
	case ValueTypeNumber:
		return isNumber(value)
	case ValueTypeBool:
		_, ok := value.(bool)
		return ok
	case ValueTypeArray:
		return value != nil && reflect.TypeOf(value).Kind() == reflect.Slice
	case ValueTypeObject, ValueTypeSheet:
		_, ok := value.(map[string]any)
		return ok
	case ValueTypeDate:
		_, ok := value.(time.Time)
		return ok
	}
	return false
}

func isNumber(value any) bool {
	switch value.(type) {
	case decimal.Decimal, json.Number:
		return true
	case nil:
		return false
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
