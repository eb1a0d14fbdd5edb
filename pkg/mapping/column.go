package mapping

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/samber/mo"
)

type columnConfig struct {
	From                      any             `json:"from"`
	To                        any             `json:"to"`
	CreateRowInEmptyData      mo.Option[bool] `json:"create_row_in_empty_data"`
	IgnoreIfMissingFromColumn bool            `json:"ignore_if_missing_from_column"`
}

// ColumnMapping writes the values of a from-expression into a to-column.
type ColumnMapping struct {
	base
	from          *expression.Expression
	to            *expression.Expression
	createRow     bool
	ignoreMissing bool
}

func newColumnMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[columnConfig](config)
	if err != nil {
		return nil, err
	}
	from, err := parseExpression(cfg.From, s.from, "from")
	if err != nil {
		return nil, err
	}
	to, err := parseExpression(cfg.To, s.to, "to")
	if err != nil {
		return nil, err
	}

	return &ColumnMapping{
		base:          newBase(TypeColumnToColumn, config, describe(from, to)),
		from:          from,
		to:            to,
		createRow:     cfg.CreateRowInEmptyData.OrElse(true),
		ignoreMissing: cfg.IgnoreIfMissingFromColumn,
	}, nil
}

func (m *ColumnMapping) RequiredExpressions(_ *datasheet.DataSheet) []*expression.Expression {
	return requiredOf(m.from)
}

func (m *ColumnMapping) Map(_ context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	src, err := resolveSource(m.from, from, policy{ignoreMissing: m.ignoreMissing})
	if err != nil {
		return nil, m.fail(err, from, to)
	}

	switch src {
	case sourceStatic:
		v, err := m.from.EvaluateStatic()
		if err != nil {
			return nil, m.fail(err, from, to)
		}
		col := to.AddColumnExpression(m.to)
		if to.IsEmpty() {
			if !m.createRow {
				log.AddLinef("To-sheet is empty and create_row_in_empty_data is off: no row added for '%s'", m.from)
				return to, nil
			}
			to.AddRow(datasheet.Row{col.Name: v})
			log.AddLinef("Added a row with static value of '%s' to empty to-sheet", m.from)
			return to, nil
		}
		col.SetValueOnAllRows(v)
		log.AddLinef("Set static value of '%s' on %d rows", m.from, to.CountRows())

	case sourceFormula:
		col := to.AddColumnExpression(m.to)
		if to.IsEmpty() {
			if from.IsEmpty() || !m.createRow {
				log.AddLinef("Formula '%s' not evaluated: no rows to evaluate or create", m.from)
				return to, nil
			}
			v, err := m.from.Evaluate(from, 0)
			if err != nil {
				return nil, m.fail(err, from, to)
			}
			to.AddRow(datasheet.Row{col.Name: v})
			return to, nil
		}
		vals, err := m.from.EvaluateAll(from)
		if err != nil {
			return nil, m.fail(err, from, to)
		}
		col.SetValues(vals)
		log.AddLinef("Evaluated formula '%s' for %d rows", m.from, len(vals))

	case sourceColumn:
		fromCol, _ := from.GetColumnByExpression(m.from)
		col := to.AddColumnExpression(m.to)
		col.Hidden = fromCol.Hidden
		col.SetValues(fromCol.Values())
		log.AddLinef("Copied %d values from column '%s'", from.CountRows(), fromCol.Name)

	case sourceEmptySheet:
		log.AddLine("From-sheet has no columns: nothing to map")

	case sourceIgnored:
		log.AddLinef("Column '%s' not found in from-data: ignored", m.from)
	}

	return to, nil
}
