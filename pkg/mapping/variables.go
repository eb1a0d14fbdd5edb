package mapping

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

type columnToVariableConfig struct {
	From     any    `json:"from"`
	Variable string `json:"variable" validate:"required"`
}

// ColumnToVariableMapping stores from-values in a request variable. A single
// value is stored as a scalar, several as a list.
type ColumnToVariableMapping struct {
	base
	from     *expression.Expression
	variable string
}

func newColumnToVariableMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[columnToVariableConfig](config)
	if err != nil {
		return nil, err
	}
	from, err := parseExpression(cfg.From, s.from, "from")
	if err != nil {
		return nil, err
	}

	return &ColumnToVariableMapping{
		base:     newBase(TypeColumnToVariable, config, describe(from, "$"+cfg.Variable)),
		from:     from,
		variable: cfg.Variable,
	}, nil
}

func (m *ColumnToVariableMapping) RequiredExpressions(_ *datasheet.DataSheet) []*expression.Expression {
	return requiredOf(m.from)
}

func (m *ColumnToVariableMapping) Map(ctx context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	src, err := resolveSource(m.from, from, policy{})
	if err != nil {
		return nil, m.fail(err, from, to)
	}
	if src == sourceEmptySheet {
		log.AddLinef("From-sheet has no columns: variable '%s' not set", m.variable)
		return to, nil
	}

	vals, err := values(src, m.from, from)
	if err != nil {
		return nil, m.fail(err, from, to)
	}
	var value any = vals
	if len(vals) == 1 {
		value = vals[0]
	}

	if env.Variables == nil {
		return nil, m.fail(errors.NewMappingFailedErrorf("no variable store to set '%s'", m.variable).AddCode(errors.CodeVariableStoreMissing), from, to)
	}
	if err := env.Variables.Set(ctx, m.variable, value); err != nil {
		return nil, m.fail(err, from, to)
	}

	log.AddLinef("Set variable '%s' from %d values", m.variable, len(vals))
	return to, nil
}

type variableToColumnConfig struct {
	Variable             string          `json:"variable" validate:"required"`
	To                   any             `json:"to"`
	DuplicateRows        bool            `json:"duplicate_rows"`
	CreateRowInEmptyData mo.Option[bool] `json:"create_row_in_empty_data"`
}

// VariableToColumnMapping writes a request variable into a to-column. Lists are
// spread over rows, scalars are set on every row.
type VariableToColumnMapping struct {
	base
	variable      string
	to            *expression.Expression
	duplicateRows bool
	createRow     bool
}

func newVariableToColumnMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[variableToColumnConfig](config)
	if err != nil {
		return nil, err
	}
	to, err := parseExpression(cfg.To, s.to, "to")
	if err != nil {
		return nil, err
	}

	return &VariableToColumnMapping{
		base:          newBase(TypeVariableToColumn, config, describe("$"+cfg.Variable, to)),
		variable:      cfg.Variable,
		to:            to,
		duplicateRows: cfg.DuplicateRows,
		createRow:     cfg.CreateRowInEmptyData.OrElse(true),
	}, nil
}

func (m *VariableToColumnMapping) Map(ctx context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	if env.Variables == nil {
		return nil, m.fail(errors.NewMappingFailedErrorf("no variable store to read '%s'", m.variable).AddCode(errors.CodeVariableStoreMissing), from, to)
	}
	value, found, err := env.Variables.Get(ctx, m.variable)
	if err != nil {
		return nil, m.fail(err, from, to)
	}
	if !found {
		log.AddLinef("Variable '%s' is not set: using null", m.variable)
	}

	col := to.AddColumnExpression(m.to)
	list, isList := utils.ToSlice(value)
	if !isList {
		if to.IsEmpty() {
			if m.createRow {
				to.AddRow(datasheet.Row{col.Name: value})
			}
			return to, nil
		}
		col.SetValueOnAllRows(value)
		return to, nil
	}

	switch {
	case to.IsEmpty():
		if !m.createRow {
			log.AddLinef("To-sheet is empty and create_row_in_empty_data is off: %d values of '%s' dropped", len(list), m.variable)
			return to, nil
		}
		for _, v := range list {
			to.AddRow(datasheet.Row{col.Name: v})
		}
	case m.duplicateRows:
		rows := lo.FlatMap(to.Rows(), func(r datasheet.Row, _ int) []datasheet.Row {
			return lo.Map(list, func(v any, _ int) datasheet.Row {
				row := r.Copy()
				row[col.Name] = v
				return row
			})
		})
		to.SetRows(rows)
	case len(list) == to.CountRows():
		col.SetValues(list)
	default:
		return nil, m.fail(errors.NewMappingFailedErrorf("variable '%s' has %d values but the to-sheet has %d rows", m.variable, len(list), to.CountRows()).
			AddField(m.variable).
			AddCode(errors.CodeVariableCountMismatch), from, to)
	}

	log.AddLinef("Wrote %d values of '%s' to '%s'", len(list), m.variable, col.Name)
	return to, nil
}
