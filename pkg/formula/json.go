package formula

import (
	"encoding/json"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/jmespath/go-jmespath"
)

var jsonFunctions = []Definition{
	{
		Key:         "JSON_GET",
		Name:        "Query JSON",
		Description: "Evaluates a JMESPath expression against a JSON document or decoded object.",
		InputRules: models.InputRules{
			{Name: "json", Type: models.ValueTypeAny},
			{Name: "path", Type: models.ValueTypeString},
		},
		OutputType: models.ValueTypeAny,
		Fn: func(inputs ...any) (any, error) {
			doc, err := DecodeJSON(inputs[0])
			if err != nil {
				return nil, err
			}
			if doc == nil {
				return nil, nil
			}
			return jmespath.Search(utils.ToString(inputs[1]), doc)
		},
	},
	{
		Key:         "JSON_ENCODE",
		Name:        "Encode JSON",
		Description: "Serializes a value as JSON text.",
		InputRules:  models.InputRules{{Name: "value", Type: models.ValueTypeAny}},
		OutputType:  models.ValueTypeJSON,
		Fn: func(inputs ...any) (any, error) {
			b, err := json.Marshal(inputs[0])
			if err != nil {
				return nil, err
			}
			return string(b), nil
		},
	},
}

// DecodeJSON accepts JSON text or an already decoded value. Blank text decodes to nil.
func DecodeJSON(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if utils.IsEmpty(v) {
			return nil, nil
		}
		var doc any
		if err := json.Unmarshal([]byte(v), &doc); err != nil {
			return nil, fmt.Errorf("invalid json: %v", err)
		}
		return doc, nil
	case []byte:
		return DecodeJSON(string(v))
	}
	return value, nil
}
