package datasheet

import (
	"encoding/json"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/samber/lo"
)

type columnUxon struct {
	Name           string `json:"name,omitempty"`
	AttributeAlias string `json:"attribute_alias,omitempty"`
	Expression     string `json:"expression,omitempty"`
	Hidden         bool   `json:"hidden,omitempty"`
}

func (c columnUxon) expression() string {
	return lo.CoalesceOrEmpty(c.AttributeAlias, c.Expression, c.Name)
}

type conditionUxon struct {
	Expression        string `json:"expression" validate:"required"`
	Comparator        string `json:"comparator,omitempty"`
	Value             any    `json:"value"`
	IgnoreEmptyValues bool   `json:"ignore_empty_values,omitempty"`
}

type groupUxon struct {
	Operator     string          `json:"operator,omitempty"`
	Conditions   []conditionUxon `json:"conditions,omitempty" validate:"dive"`
	NestedGroups []groupUxon     `json:"nested_groups,omitempty" validate:"dive"`
}

// ExportUxon returns the sheet as a JSON-friendly tree:
//
//	{object_alias, columns: [{name, hidden}], rows: [...], filters: {operator, conditions, nested_groups}}
func (s *DataSheet) ExportUxon() uxon.Object {
	columns := lo.Map(s.columns, func(c *Column, _ int) any {
		col := map[string]any{"name": c.Name}
		if c.Hidden {
			col["hidden"] = true
		}
		return col
	})
	rows := lo.Map(s.rows, func(r Row, _ int) any { return map[string]any(r.Copy()) })

	result := uxon.Object{
		"object_alias": s.ObjectAlias(),
		"columns":      columns,
		"rows":         rows,
	}
	if !s.filters.IsEmpty() {
		result["filters"] = exportGroup(s.filters)
	}
	return result
}

func exportGroup(g *ConditionGroup) map[string]any {
	result := map[string]any{"operator": string(g.Operator)}
	if len(g.Conditions) > 0 {
		result["conditions"] = lo.Map(g.Conditions, func(c *Condition, _ int) any {
			cond := map[string]any{
				"expression": c.Expression.String(),
				"comparator": string(c.Comparator),
				"value":      c.Value,
			}
			if c.IgnoreEmptyValues {
				cond["ignore_empty_values"] = true
			}
			return cond
		})
	}
	if len(g.NestedGroups) > 0 {
		result["nested_groups"] = lo.Map(g.NestedGroups, func(n *ConditionGroup, _ int) any { return exportGroup(n) })
	}
	return result
}

func (s *DataSheet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ExportUxon())
}

// FromUxon builds a sheet, resolving its object_alias in the model.
func FromUxon(model *meta.Model, u uxon.Object) (*DataSheet, error) {
	alias := u.GetString("object_alias")
	if alias == "" {
		return nil, errors.NewConfigurationError("data sheet has no object_alias")
	}
	object, err := model.GetObject(alias)
	if err != nil {
		return nil, errors.NewConfigurationErrorf("data sheet: %w", err)
	}
	return FromUxonForObject(object, u)
}

// FromUxonForObject builds a sheet for a known object. An object_alias in the tree,
// if present, must match it.
func FromUxonForObject(object *meta.Object, u uxon.Object) (*DataSheet, error) {
	if alias := u.GetString("object_alias"); alias != "" && object != nil && object.Model() != nil {
		other, err := object.Model().GetObject(alias)
		if err != nil {
			return nil, errors.NewConfigurationErrorf("data sheet: %w", err)
		}
		object = other
	}

	sheet := New(object)

	for _, item := range listOf(u["columns"]) {
		var col columnUxon
		if name, ok := item.(string); ok {
			col.Name = name
		} else {
			parsed, err := utils.ParseArguments[columnUxon](item)
			if err != nil {
				return nil, errors.NewConfigurationErrorf("invalid data sheet column: %w", err)
			}
			col = parsed
		}
		if col.expression() == "" {
			return nil, errors.NewConfigurationError("data sheet column without name")
		}
		c, err := sheet.AddColumn(col.expression())
		if err != nil {
			return nil, err
		}
		c.Hidden = c.Hidden || col.Hidden
	}

	for _, item := range listOf(u["rows"]) {
		row, err := uxon.FromAny(item)
		if err != nil {
			return nil, errors.NewConfigurationErrorf("invalid data sheet row: %w", err)
		}
		sheet.AddRow(Row(row))
	}

	if raw, ok := u["filters"]; ok && raw != nil {
		group, err := utils.ValidateArguments[groupUxon](raw)
		if err != nil {
			return nil, errors.NewConfigurationErrorf("invalid data sheet filters: %w", err)
		}
		filters, err := importGroup(group, object)
		if err != nil {
			return nil, err
		}
		sheet.SetFilters(filters)
	}

	return sheet, nil
}

// ParseSheet reads a sheet from JSON or Hjson.
func ParseSheet(model *meta.Model, data []byte) (*DataSheet, error) {
	u, err := uxon.Parse(data)
	if err != nil {
		return nil, errors.NewConfigurationErrorf("%w", err)
	}
	return FromUxon(model, u)
}

func importGroup(g groupUxon, object *meta.Object) (*ConditionGroup, error) {
	operator, err := ParseOperator(g.Operator)
	if err != nil {
		return nil, errors.NewConfigurationErrorf("%w", err)
	}

	group := NewConditionGroup(operator)
	for _, c := range g.Conditions {
		e, err := expression.Parse(c.Expression, object)
		if err != nil {
			return nil, err
		}
		comparator, err := ParseComparator(c.Comparator)
		if err != nil {
			return nil, errors.NewConfigurationErrorf("%w", err)
		}
		group.AddCondition(&Condition{
			Expression:        e,
			Comparator:        comparator,
			Value:             c.Value,
			IgnoreEmptyValues: c.IgnoreEmptyValues,
		})
	}
	for _, n := range g.NestedGroups {
		nested, err := importGroup(n, object)
		if err != nil {
			return nil, err
		}
		group.AddNestedGroup(nested)
	}
	return group, nil
}

func listOf(value any) []any {
	if value == nil {
		return []any{}
	}
	list, ok := utils.ToSlice(value)
	if !ok {
		return []any{value}
	}
	return list
}

// IsSheetUxon reports whether a cell value looks like an exported sheet.
func IsSheetUxon(value any) bool {
	u, ok := value.(map[string]any)
	if !ok {
		if o, isObject := value.(uxon.Object); isObject {
			u = o
		} else {
			return false
		}
	}
	_, hasRows := u["rows"]
	_, hasAlias := u["object_alias"]
	return hasRows && hasAlias
}

func (s *DataSheet) String() string {
	return fmt.Sprintf("%s[%d rows x %d columns]", s.ObjectAlias(), s.CountRows(), len(s.columns))
}
