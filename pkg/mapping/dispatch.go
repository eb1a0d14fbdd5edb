package mapping

import (
	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
)

// source is how a from-expression obtains its values on a given from-sheet.
type source int

const (
	sourceStatic source = iota
	sourceFormula
	sourceColumn
	sourceEmptySheet
	sourceIgnored
)

func (s source) String() string {
	switch s {
	case sourceStatic:
		return "static"
	case sourceFormula:
		return "formula"
	case sourceColumn:
		return "column"
	case sourceEmptySheet:
		return "empty sheet"
	}
	return "ignored"
}

type policy struct {
	// ignoreMissing enables the silent skip of unresolved attributes and formulas.
	ignoreMissing bool
}

type sourceCase struct {
	source  source
	matches func(e *expression.Expression, from *datasheet.DataSheet, p policy) bool
}

// sourceCases is evaluated in order and the first match wins. Several cases can
// match the same expression, e.g. a formula also qualifies for the ignore case.
var sourceCases = []sourceCase{
	{sourceStatic, func(e *expression.Expression, _ *datasheet.DataSheet, _ policy) bool {
		return e.IsStatic()
	}},
	{sourceFormula, func(e *expression.Expression, from *datasheet.DataSheet, p policy) bool {
		return e.IsFormula() && (!p.ignoreMissing || hasColumns(from, e.RequiredColumns()))
	}},
	{sourceColumn, func(e *expression.Expression, from *datasheet.DataSheet, _ policy) bool {
		_, ok := from.GetColumnByExpression(e)
		return ok
	}},
	{sourceEmptySheet, func(e *expression.Expression, from *datasheet.DataSheet, _ policy) bool {
		return !from.HasColumns() && !e.IsReference()
	}},
	{sourceIgnored, func(e *expression.Expression, _ *datasheet.DataSheet, p policy) bool {
		return p.ignoreMissing && (e.IsMetaAttribute() || e.IsFormula() || e.IsUnknown())
	}},
}

func hasColumns(sheet *datasheet.DataSheet, names []string) bool {
	for _, name := range names {
		if _, ok := sheet.GetColumn(name); !ok {
			return false
		}
	}
	return true
}

// resolveSource picks the first matching case. Expressions matching none fail.
func resolveSource(e *expression.Expression, from *datasheet.DataSheet, p policy) (source, error) {
	for _, c := range sourceCases {
		if c.matches(e, from, p) {
			return c.source, nil
		}
	}

	if e.IsMetaAttribute() {
		return 0, errors.NewMappingFailedErrorf("missing column '%s' in from-data of '%s' and no key to load it", e, from.ObjectAlias()).
			AddField(e.String()).
			AddCode(errors.CodeFromAttributeNotFound)
	}
	return 0, errors.NewMappingFailedErrorf("cannot map from '%s' (%s): only column names, constants and formulas are allowed", e, e.Kind()).
		AddField(e.String()).
		AddCode(errors.CodeUnsupportedFrom)
}

// values returns one value per from-row for formula and column sources and a
// single value for static ones.
func values(src source, e *expression.Expression, from *datasheet.DataSheet) ([]any, error) {
	switch src {
	case sourceStatic:
		v, err := e.EvaluateStatic()
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	case sourceFormula:
		return e.EvaluateAll(from)
	case sourceColumn:
		c, _ := from.GetColumnByExpression(e)
		return c.Values(), nil
	}
	return []any{}, nil
}
