// Package formula holds the functions formula expressions can call, e.g.
//
//	=Concat(FIRST_NAME, ' ', LAST_NAME)
//	=Round(Multiply(PRICE, QTY), 2)
//
// Function names are case-insensitive.
package formula

import (
	"sort"
	"strings"
	"sync"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Function is one callable formula function.
type Function interface {
	GetKey() string
	GetInputRules() models.InputRules
	GetOutputType() models.ValueType
	Execute(inputs ...any) (any, error)
}

type Definition struct {
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	InputRules  models.InputRules `json:"input_rules"`
	OutputType  models.ValueType  `json:"output_type"`
	// Volatile functions (e.g. Now) are never treated as static.
	Volatile bool                             `json:"volatile"`
	Fn       func(inputs ...any) (any, error) `json:"-"`
}

func (d Definition) GetKey() string {
	return d.Key
}

func (d Definition) GetInputRules() models.InputRules {
	return d.InputRules
}

func (d Definition) GetOutputType() models.ValueType {
	return d.OutputType
}

func (d Definition) Execute(inputs ...any) (any, error) {
	if err := d.InputRules.Validate(inputs...); err != nil {
		return nil, errors.WrapMappingError(err).AddField(d.Key).AddCode(errors.CodeEvaluationFailed)
	}

	result, err := d.Fn(inputs...)
	if err != nil {
		return nil, errors.WrapMappingError(err).AddField(d.Key).AddCode(errors.CodeEvaluationFailed)
	}
	return result, nil
}

var (
	functions = map[string]Definition{}
	mu        sync.RWMutex
)

// Register adds or replaces a function.
func Register(defs ...Definition) {
	mu.Lock()
	defer mu.Unlock()
	for _, d := range defs {
		functions[strings.ToUpper(d.Key)] = d
	}
}

func GetFunction(key string) (Function, error) {
	mu.RLock()
	defer mu.RUnlock()

	d, ok := functions[strings.ToUpper(key)]
	if !ok {
		return nil, errors.NewConfigurationErrorf("formula function '%s' not found", key)
	}
	return d, nil
}

// IsVolatile reports whether a function must be evaluated per call.
func IsVolatile(key string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return functions[strings.ToUpper(key)].Volatile
}

// Call looks up and executes a function.
func Call(key string, inputs ...any) (any, error) {
	fn, err := GetFunction(key)
	if err != nil {
		return nil, err
	}
	return fn.Execute(inputs...)
}

// Catalog lists all functions sorted by key.
func Catalog() []Definition {
	mu.RLock()
	defer mu.RUnlock()

	result := make([]Definition, 0, len(functions))
	for _, d := range functions {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

func init() {
	Register(textFunctions...)
	Register(numberFunctions...)
	Register(logicFunctions...)
	Register(dateFunctions...)
	Register(jsonFunctions...)
}
