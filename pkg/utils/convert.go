package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ToString renders a cell value the way it is written into filters, labels and keys.
func ToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339)
	case []byte:
		return string(v)
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}

	return fmt.Sprintf("%v", value)
}

// ToDecimal converts numbers and numeric strings.
func ToDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case bool:
		if v {
			return decimal.NewFromInt(1), true
		}
		return decimal.Zero, true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}

	return decimal.Zero, false
}

// ToNumber is ToDecimal for callers that want a float64.
func ToNumber(value any) (float64, bool) {
	d, ok := ToDecimal(value)
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

func ToBool(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b
		}
		return v != "" && v != "0"
	}

	if d, ok := ToDecimal(value); ok {
		return !d.IsZero()
	}
	return !IsEmpty(value)
}

// IsEmpty reports null, blank strings and empty collections.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// ValuesEqual compares numerically when both sides are numbers, else by string form.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if da, ok := ToDecimal(a); ok {
		if db, ok := ToDecimal(b); ok {
			return da.Equal(db)
		}
	}
	return ToString(a) == ToString(b)
}

// Compare orders two values: numbers numerically, dates chronologically and
// everything else by string.
func Compare(a, b any) int {
	if da, ok := ToDecimal(a); ok {
		if db, ok := ToDecimal(b); ok {
			return da.Cmp(db)
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(ToString(a), ToString(b))
}

// KeyOf serializes a tuple of values for equality grouping. Numbers share a
// key by value, so 1, 1.0 and json.Number("1") match each other and "1".
// Other strings are kept verbatim: "01" and "1.0" are distinct keys.
func KeyOf(values ...any) string {
	parts := lo.Map(values, func(v any, _ int) string {
		switch v.(type) {
		case string, bool:
			return ToString(v)
		}
		if d, ok := ToDecimal(v); ok {
			return d.String()
		}
		return ToString(v)
	})
	b, _ := json.Marshal(parts)
	return string(b)
}

// ToSlice returns the elements of any slice value. Scalars yield (nil, false).
func ToSlice(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if s, ok := value.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	result, err := AnyToType[[]any](value)
	if err != nil {
		return nil, false
	}
	return result, true
}

// SplitList splits a delimited value list, trimming blanks.
func SplitList(value any, delimiter string) []string {
	if s, ok := ToSlice(value); ok {
		return lo.Map(s, func(v any, _ int) string { return ToString(v) })
	}
	str := ToString(value)
	if str == "" {
		return []string{}
	}
	return lo.FilterMap(strings.Split(str, delimiter), func(part string, _ int) (string, bool) {
		part = strings.TrimSpace(part)
		return part, part != ""
	})
}
