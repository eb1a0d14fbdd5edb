package meta

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

const DefaultValueListDelimiter = ","

type Attribute struct {
	Alias              string           `json:"alias" validate:"required"`
	Name               string           `json:"name,omitempty"`
	DataAddress        string           `json:"data_address,omitempty"`
	DataType           models.ValueType `json:"data_type,omitempty"`
	ValueListDelimiter string           `json:"value_list_delimiter,omitempty"`
	Hidden             bool             `json:"hidden,omitempty"`

	// RelatedObjectAlias turns the attribute into a relation.
	RelatedObjectAlias string `json:"related_object,omitempty"`
	// RelatedKeyAlias is the attribute matched on the related object: its UID for
	// forward relations, the foreign key pointing back for reverse ones.
	RelatedKeyAlias string `json:"related_key,omitempty"`
	Reverse         bool   `json:"reverse,omitempty"`

	// RelationPath is set on copies returned by Object.GetAttribute.
	RelationPath string `json:"-"`

	object *Object
}

func (a *Attribute) Object() *Object {
	return a.object
}

func (a *Attribute) IsRelation() bool {
	return a.RelatedObjectAlias != ""
}

func (a *Attribute) GetRelatedObject() (*Object, error) {
	if !a.IsRelation() {
		return nil, fmt.Errorf("attribute '%s' is not a relation", a.Alias)
	}
	if a.object == nil || a.object.model == nil {
		return nil, fmt.Errorf("attribute '%s' is not part of a model", a.Alias)
	}
	return a.object.model.GetObject(a.RelatedObjectAlias)
}

// AliasWithRelationPath is the alias as seen from the object it was resolved on.
func (a *Attribute) AliasWithRelationPath() string {
	if a.RelationPath == "" {
		return a.Alias
	}
	return a.RelationPath + RelationSeparator + a.Alias
}

func (a *Attribute) GetValueListDelimiter() string {
	if a.ValueListDelimiter != "" {
		return a.ValueListDelimiter
	}
	return DefaultValueListDelimiter
}

// GetDataAddress returns the column name, defaulting to the lower case alias.
func (a *Attribute) GetDataAddress() string {
	if a.DataAddress != "" {
		return a.DataAddress
	}
	return strings.ToLower(a.Alias)
}

func (a *Attribute) GetDataType() models.ValueType {
	if a.DataType == "" {
		return models.ValueTypeAny
	}
	return a.DataType
}
