// Package uxon parses the declarative configuration trees mappers and models are built from.
// Both JSON and Hjson (comments, unquoted keys, optional commas) are accepted.
package uxon

import (
	"encoding/json"
	"fmt"

	"github.com/hjson/hjson-go/v4"
)

// Object is one decoded UXON node.
type Object map[string]any

func Parse(data []byte) (Object, error) {
	var result any
	if err := hjson.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("invalid uxon: %v", err)
	}

	return FromAny(result)
}

// FromAny accepts a decoded value or a JSON/Hjson string.
func FromAny(value any) (Object, error) {
	switch v := value.(type) {
	case nil:
		return Object{}, nil
	case Object:
		return v, nil
	case map[string]any:
		return Object(v), nil
	case string:
		return Parse([]byte(v))
	case []byte:
		return Parse(v)
	case json.RawMessage:
		return Parse(v)
	}

	return nil, fmt.Errorf("uxon must be an object, got %T", value)
}

func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o Object) GetString(key string) string {
	s, _ := o[key].(string)
	return s
}

func (o Object) GetObject(key string) (Object, bool) {
	switch v := o[key].(type) {
	case map[string]any:
		return Object(v), true
	case Object:
		return v, true
	}
	return nil, false
}

// GetObjects returns the object items of a list property and skips anything else.
func (o Object) GetObjects(key string) []Object {
	list, _ := o[key].([]any)
	result := make([]Object, 0, len(list))
	for _, item := range list {
		if obj, err := FromAny(item); err == nil && item != nil {
			result = append(result, obj)
		}
	}
	return result
}

// Copy returns a deep copy via JSON.
func (o Object) Copy() Object {
	b, err := json.Marshal(o)
	if err != nil {
		return Object{}
	}
	var result Object
	if err := json.Unmarshal(b, &result); err != nil {
		return Object{}
	}
	return result
}

func (o Object) String() string {
	b, err := json.Marshal(o)
	if err != nil {
		return "{}"
	}
	return string(b)
}
