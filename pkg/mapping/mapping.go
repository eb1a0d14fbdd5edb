// Package mapping transforms one data sheet into another.
//
// A Mapper is an ordered list of mappings built from UXON:
//
//	{
//	  from_object_alias: ORDER
//	  to_object_alias: INVOICE
//	  column_to_column_mappings: [
//	    { from: "=Concat(ID, '-', NAME)", to: "LABEL" }
//	  ]
//	  column_to_filter_mappings: [
//	    { from: "CUSTOMER", to: "CUSTOMER", comparator: "==" }
//	  ]
//	}
//
// Each mapping reads the from-sheet and returns the updated to-sheet. Only
// filter-to-filter mappings change the from-sheet, and they report it through
// MutatesFromSheet.
package mapping

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/logbook"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/reader"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/Ramsey-B/clover/pkg/variables"
)

const (
	TypeColumnToVariable = "column_to_variable"
	TypeVariableToColumn = "variable_to_column"
	TypeColumnToColumn   = "column_to_column"
	TypeColumnToFilter   = "column_to_filter"
	TypeFilterToFilter   = "filter_to_filter"
	TypeColumnToJSON     = "column_to_json"
	TypeDataToSubsheet   = "data_to_subsheet"
	TypeSubsheet         = "subsheet"
	TypeJoin             = "join"
	TypeLookup           = "lookup"
	TypeJSONToRows       = "json_to_rows"
	TypeUnpivot          = "unpivot"
	TypePivot            = "pivot"
)

type Mapping interface {
	// Map applies the mapping and returns the to-sheet, which may be a new sheet.
	// The from-sheet is only changed if MutatesFromSheet is true.
	Map(ctx context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error)
	// RequiredExpressions lists what must be readable on the from-sheet before Map.
	RequiredExpressions(from *datasheet.DataSheet) []*expression.Expression
	MutatesFromSheet() bool
	Type() string
	Description() string
	ExportUxon() uxon.Object
}

// Env carries the request scoped collaborators of a mapping run. All fields are
// optional; mappings that need a missing one fail.
type Env struct {
	Logbook   logbook.LogBook
	Variables variables.Store
	Reader    reader.Reader
}

func (e Env) log() *logbook.Safe {
	return logbook.NewSafe(e.Logbook)
}

// scope is what a mapping is configured against.
type scope struct {
	model *meta.Model
	from  *meta.Object
	to    *meta.Object
}

type factory func(s scope, config uxon.Object) (Mapping, error)

// factories is filled in init: sub-mappers are built through newMapping,
// which would otherwise make the map depend on itself.
var factories map[string]factory

func init() {
	factories = map[string]factory{
		TypeColumnToVariable: newColumnToVariableMapping,
		TypeVariableToColumn: newVariableToColumnMapping,
		TypeColumnToColumn:   newColumnMapping,
		TypeColumnToFilter:   newColumnToFilterMapping,
		TypeFilterToFilter:   newFilterToFilterMapping,
		TypeColumnToJSON:     newColumnToJSONMapping,
		TypeDataToSubsheet:   newDataToSubsheetMapping,
		TypeSubsheet:         newSubsheetMapping,
		TypeJoin:             newJoinMapping,
		TypeLookup:           newLookupMapping,
		TypeJSONToRows:       newJSONToRowsMapping,
		TypeUnpivot:          newUnpivotMapping,
		TypePivot:            newPivotMapping,
	}
}

// Types returns the supported mapping types.
func Types() []string {
	return mappingLists.kinds()
}

func newMapping(kind string, s scope, config uxon.Object) (Mapping, error) {
	create, ok := factories[strings.ToLower(kind)]
	if !ok {
		return nil, errors.NewConfigurationErrorf("unknown mapping type '%s'", kind)
	}
	return create(s, config)
}

// base holds what all mappings share.
type base struct {
	kind        string
	description string
	config      uxon.Object
}

func newBase(kind string, config uxon.Object, description string) base {
	return base{kind: kind, config: config.Copy(), description: kind + ": " + description}
}

func (b *base) Type() string {
	return b.kind
}

func (b *base) Description() string {
	return b.description
}

func (b *base) ExportUxon() uxon.Object {
	return b.config.Copy()
}

func (b *base) MutatesFromSheet() bool {
	return false
}

func (b *base) RequiredExpressions(_ *datasheet.DataSheet) []*expression.Expression {
	return []*expression.Expression{}
}

// fail attaches the mapping and the sheets to an error raised in Map.
func (b *base) fail(err error, from, to *datasheet.DataSheet) error {
	e := errors.WrapMappingError(err).AddMapping(b.description)
	if from != nil && e.FromSheet == nil {
		e.FromSheet = from
	}
	if to != nil && e.ToSheet == nil {
		e.ToSheet = to
	}
	return e
}

// parseConfig decodes and validates a mapping configuration.
func parseConfig[T any](config uxon.Object) (T, error) {
	result, err := utils.ValidateArguments[T](map[string]any(config))
	if err != nil {
		return result, errors.NewConfigurationErrorf("invalid configuration: %w", err)
	}
	return result, nil
}

// parseExpression parses a required expression property.
func parseExpression(value any, object *meta.Object, property string) (*expression.Expression, error) {
	e, err := expression.FromValue(value, object)
	if err != nil {
		return nil, errors.WrapMappingError(err).AddField(property)
	}
	if e.IsEmpty() {
		return nil, errors.NewConfigurationErrorf("'%s' is required", property).AddField(property)
	}
	return e, nil
}

// requiredOf returns the expression as a prerequisite unless it needs no data.
func requiredOf(exprs ...*expression.Expression) []*expression.Expression {
	result := []*expression.Expression{}
	for _, e := range exprs {
		if e != nil && !e.IsStatic() && !e.IsReference() {
			result = append(result, e)
		}
	}
	return result
}

func describe(from, to any) string {
	return fmt.Sprintf("%s -> %s", utils.ToString(from), utils.ToString(to))
}
