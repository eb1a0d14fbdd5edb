package utils

import (
	"fmt"
	"reflect"
)

var anySliceType = reflect.TypeOf([]any{})

// AnyToType converts a decoded cell or argument value to T. Beyond a plain
// type assertion it widens any slice to []any and converts between numeric
// kinds. nil yields the zero value.
func AnyToType[T any](input any) (T, error) {
	var zero T
	if input == nil {
		return zero, nil
	}
	if result, ok := input.(T); ok {
		return result, nil
	}

	target := reflect.TypeOf(zero)
	if target == nil {
		return zero, fmt.Errorf("cannot convert %T to %T", input, zero)
	}
	value := reflect.ValueOf(input)

	if target == anySliceType && value.Kind() == reflect.Slice {
		items := make([]any, value.Len())
		for i := range items {
			items[i] = value.Index(i).Interface()
		}
		return any(items).(T), nil
	}

	// int to string would yield a rune, so only numbers convert into numbers
	if numericKind(value.Kind()) && numericKind(target.Kind()) {
		return value.Convert(target).Interface().(T), nil
	}

	return zero, fmt.Errorf("cannot convert %T to %T", input, zero)
}

func numericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
