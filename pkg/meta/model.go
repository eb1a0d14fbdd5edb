// Package meta holds the object model data sheets are bound to: objects, their
// attributes and the relations between them.
//
// Models are loaded from UXON files:
//
//	{
//	  objects: [
//	    {
//	      alias: ORDER
//	      data_address: orders
//	      uid_attribute: ID
//	      attributes: [
//	        { alias: "ID", data_type: "number" }
//	        { alias: "CUSTOMER", related_object: "CUSTOMER" }
//	        { alias: "POSITIONS", related_object: "ORDER_POS", related_key: "ORDER", reverse: true }
//	      ]
//	    }
//	  ]
//	}
//
// Relation paths join attribute aliases with "__", e.g. CUSTOMER__NAME.
package meta

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/Ramsey-B/clover/pkg/uxon"
)

const RelationSeparator = "__"

type Model struct {
	objects map[string]*Object
	mu      sync.RWMutex
}

func NewModel(objects ...*Object) (*Model, error) {
	m := &Model{objects: make(map[string]*Object)}
	for _, o := range objects {
		if err := m.AddObject(o); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNewModel is NewModel for static models in tests and examples.
func MustNewModel(objects ...*Object) *Model {
	m, err := NewModel(objects...)
	if err != nil {
		panic(err)
	}
	return m
}

type modelFile struct {
	Objects []*Object `json:"objects" validate:"dive"`
}

// ParseModel reads a model from JSON or Hjson.
func ParseModel(data []byte) (*Model, error) {
	tree, err := uxon.Parse(data)
	if err != nil {
		return nil, err
	}

	file, err := utils.ValidateArguments[modelFile](tree)
	if err != nil {
		return nil, fmt.Errorf("invalid model: %v", err)
	}

	return NewModel(file.Objects...)
}

func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model %s: %w", path, err)
	}
	return ParseModel(data)
}

func (m *Model) AddObject(o *Object) error {
	if o == nil || o.Alias == "" {
		return fmt.Errorf("object alias is required")
	}

	if err := o.init(m); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[normalize(o.Alias)] = o
	return nil
}

func (m *Model) GetObject(alias string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[normalize(alias)]
	if !ok {
		return nil, fmt.Errorf("meta object '%s' not found", alias)
	}
	return o, nil
}

func (m *Model) HasObject(alias string) bool {
	_, err := m.GetObject(alias)
	return err == nil
}

// Objects returns all objects, in no particular order.
func (m *Model) Objects() []*Object {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Object, 0, len(m.objects))
	for _, o := range m.objects {
		result = append(result, o)
	}
	return result
}

func normalize(alias string) string {
	return strings.ToUpper(strings.TrimSpace(alias))
}
