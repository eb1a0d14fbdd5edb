package meta

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

type Object struct {
	Alias             string       `json:"alias" validate:"required"`
	Name              string       `json:"name,omitempty"`
	DataAddress       string       `json:"data_address,omitempty"`
	UIDAttributeAlias string       `json:"uid_attribute,omitempty"`
	Attributes        []*Attribute `json:"attributes" validate:"dive"`

	model      *Model
	attributes map[string]*Attribute
}

func (o *Object) init(m *Model) error {
	o.model = m
	o.attributes = make(map[string]*Attribute, len(o.Attributes))
	for _, a := range o.Attributes {
		if a == nil || a.Alias == "" {
			return fmt.Errorf("object '%s' has an attribute without alias", o.Alias)
		}
		if strings.Contains(a.Alias, RelationSeparator) {
			return fmt.Errorf("attribute alias '%s' of '%s' must not contain '%s'", a.Alias, o.Alias, RelationSeparator)
		}
		dataType, err := models.ParseValueType(string(a.DataType))
		if err != nil {
			return fmt.Errorf("attribute '%s' of '%s': %v", a.Alias, o.Alias, err)
		}
		a.DataType = dataType
		a.object = o
		o.attributes[normalize(a.Alias)] = a
	}

	if o.UIDAttributeAlias != "" {
		if _, ok := o.attributes[normalize(o.UIDAttributeAlias)]; !ok {
			return fmt.Errorf("uid attribute '%s' of '%s' not found", o.UIDAttributeAlias, o.Alias)
		}
	}
	return nil
}

// Model returns the model the object belongs to. It is nil for detached objects.
func (o *Object) Model() *Model {
	return o.model
}

// Is reports whether both objects have the same alias.
func (o *Object) Is(other *Object) bool {
	if o == nil || other == nil {
		return o == other
	}
	return strings.EqualFold(o.Alias, other.Alias)
}

func (o *Object) HasUIDAttribute() bool {
	return o.UIDAttributeAlias != ""
}

func (o *Object) GetUIDAttribute() (*Attribute, bool) {
	if !o.HasUIDAttribute() {
		return nil, false
	}
	a, err := o.GetAttribute(o.UIDAttributeAlias)
	return a, err == nil
}

func (o *Object) HasAttribute(aliasWithPath string) bool {
	_, err := o.GetAttribute(aliasWithPath)
	return err == nil
}

// GetAttribute resolves an alias that may include a relation path. The returned
// attribute is a copy that remembers the path it was resolved through.
func (o *Object) GetAttribute(aliasWithPath string) (*Attribute, error) {
	parts := strings.Split(aliasWithPath, RelationSeparator)
	current := o
	for i, part := range parts {
		a, ok := current.attributes[normalize(part)]
		if !ok {
			return nil, fmt.Errorf("attribute '%s' not found in object '%s'", aliasWithPath, o.Alias)
		}

		if i == len(parts)-1 {
			resolved := *a
			resolved.RelationPath = strings.Join(parts[:i], RelationSeparator)
			return &resolved, nil
		}

		related, err := a.GetRelatedObject()
		if err != nil {
			return nil, fmt.Errorf("attribute '%s' not found in object '%s': %v", aliasWithPath, o.Alias, err)
		}
		current = related
	}

	return nil, fmt.Errorf("attribute '%s' not found in object '%s'", aliasWithPath, o.Alias)
}

// GetRelatedObject follows a relation path from this object.
func (o *Object) GetRelatedObject(relationPath string) (*Object, error) {
	if relationPath == "" {
		return o, nil
	}

	current := o
	for _, part := range strings.Split(relationPath, RelationSeparator) {
		a, ok := current.attributes[normalize(part)]
		if !ok || !a.IsRelation() {
			return nil, fmt.Errorf("relation '%s' not found in object '%s'", relationPath, o.Alias)
		}
		related, err := a.GetRelatedObject()
		if err != nil {
			return nil, err
		}
		current = related
	}
	return current, nil
}

// GetDataAddress returns the table name, defaulting to the lower case alias.
func (o *Object) GetDataAddress() string {
	if o.DataAddress != "" {
		return o.DataAddress
	}
	return strings.ToLower(o.Alias)
}

func (o *Object) String() string {
	return o.Alias
}
