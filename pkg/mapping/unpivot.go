package mapping

import (
	"context"
	"strings"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

type unpivotConfig struct {
	FromColumns                any               `json:"from_columns"`
	FromColumnsCalculation     string            `json:"from_columns_calculation"`
	ToLabelColumn              string            `json:"to_label_column" validate:"required"`
	ToValuesColumn             string            `json:"to_values_column" validate:"required"`
	IgnoreEmptyValues          bool              `json:"ignore_empty_values"`
	IgnoreEmptyValuesInColumns []string          `json:"ignore_empty_values_in_columns"`
	IgnoreIfMissingFromColumn  bool              `json:"ignore_if_missing_from_column"`
	ToLabelMapping             map[string]string `json:"to_label_mapping"`
}

// UnpivotMapping turns selected columns into label/value row pairs: every
// to-row is repeated once per unpivoted column.
type UnpivotMapping struct {
	base
	columns       mo.Option[[]*expression.Expression]
	calculation   *expression.Expression
	fromObject    *meta.Object
	labelColumn   string
	valuesColumn  string
	ignoreEmpty   bool
	ignoreEmptyIn []string
	ignoreMissing bool
	labels        map[string]string
}

func newUnpivotMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[unpivotConfig](config)
	if err != nil {
		return nil, err
	}

	m := &UnpivotMapping{
		base:          newBase(TypeUnpivot, config, describe(cfg.FromColumns, cfg.ToLabelColumn+"/"+cfg.ToValuesColumn)),
		fromObject:    s.from,
		labelColumn:   cfg.ToLabelColumn,
		valuesColumn:  cfg.ToValuesColumn,
		ignoreEmpty:   cfg.IgnoreEmptyValues,
		ignoreEmptyIn: cfg.IgnoreEmptyValuesInColumns,
		ignoreMissing: cfg.IgnoreIfMissingFromColumn,
		labels:        map[string]string{},
	}
	for k, v := range cfg.ToLabelMapping {
		m.labels[strings.ToUpper(k)] = v
	}

	switch {
	case cfg.FromColumns != nil && cfg.FromColumnsCalculation != "":
		return nil, errors.NewConfigurationError("use either from_columns or from_columns_calculation").AddField("from_columns")
	case cfg.FromColumns != nil:
		names := utils.SplitList(cfg.FromColumns, meta.DefaultValueListDelimiter)
		exprs, err := parseColumns(names, s.from)
		if err != nil {
			return nil, err
		}
		m.columns = mo.Some(exprs)
	case cfg.FromColumnsCalculation != "":
		m.calculation, err = parseExpression(cfg.FromColumnsCalculation, s.from, "from_columns_calculation")
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.NewConfigurationError("from_columns or from_columns_calculation is required").AddField("from_columns")
	}

	return m, nil
}

func parseColumns(names []string, object *meta.Object) ([]*expression.Expression, error) {
	exprs := make([]*expression.Expression, 0, len(names))
	for _, name := range names {
		e, err := parseExpression(name, object, "from_columns")
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func (m *UnpivotMapping) RequiredExpressions(_ *datasheet.DataSheet) []*expression.Expression {
	columns, ok := m.columns.Get()
	if !ok {
		return requiredOf(m.calculation)
	}
	return requiredOf(columns...)
}

// fromColumns evaluates the column calculation once, on the first from-row.
func (m *UnpivotMapping) fromColumns(from *datasheet.DataSheet) ([]*expression.Expression, error) {
	if columns, ok := m.columns.Get(); ok {
		return columns, nil
	}

	var (
		v   any
		err error
	)
	if m.calculation.IsStatic() {
		v, err = m.calculation.EvaluateStatic()
	} else {
		v, err = m.calculation.Evaluate(from, 0)
	}
	if err != nil {
		return nil, err
	}
	return parseColumns(utils.SplitList(v, meta.DefaultValueListDelimiter), m.fromObject)
}

func (m *UnpivotMapping) label(e *expression.Expression) string {
	if l, ok := m.labels[strings.ToUpper(e.String())]; ok {
		return l
	}
	return e.String()
}

func (m *UnpivotMapping) skipEmpty(e *expression.Expression) bool {
	return m.ignoreEmpty || lo.ContainsBy(m.ignoreEmptyIn, func(name string) bool {
		return strings.EqualFold(name, e.String())
	})
}

func (m *UnpivotMapping) Map(_ context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	if from.IsEmpty() {
		log.AddLine("From-sheet is empty: nothing to unpivot")
		return to, nil
	}

	columns, err := m.fromColumns(from)
	if err != nil {
		return nil, m.fail(err, from, to)
	}

	type unpivoted struct {
		expr   *expression.Expression
		static bool
		values []any
	}
	resolved := []unpivoted{}
	for _, e := range columns {
		src, err := resolveSource(e, from, policy{ignoreMissing: m.ignoreMissing})
		if err != nil {
			return nil, m.fail(err, from, to)
		}
		if src == sourceEmptySheet || src == sourceIgnored {
			log.AddLinef("Column '%s' skipped (%s)", e, src)
			continue
		}
		vals, err := values(src, e, from)
		if err != nil {
			return nil, m.fail(err, from, to)
		}
		resolved = append(resolved, unpivoted{expr: e, static: src == sourceStatic, values: vals})
	}

	bases := lo.Map(to.Rows(), func(r datasheet.Row, _ int) datasheet.Row { return r.Copy() })
	if len(bases) == 0 {
		bases = lo.Times(from.CountRows(), func(_ int) datasheet.Row { return datasheet.Row{} })
	}

	for _, u := range resolved {
		to.RemoveColumn(u.expr.ColumnName())
		for _, row := range bases {
			delete(row, u.expr.ColumnName())
		}
	}
	labelCol, err := to.AddColumn(m.labelColumn)
	if err != nil {
		return nil, m.fail(err, from, to)
	}
	valuesCol, err := to.AddColumn(m.valuesColumn)
	if err != nil {
		return nil, m.fail(err, from, to)
	}

	rows := []datasheet.Row{}
	for i, b := range bases {
		for _, u := range resolved {
			var v any
			switch {
			case u.static:
				v = u.values[0]
			case i < len(u.values):
				v = u.values[i]
			}
			if utils.IsEmpty(v) && m.skipEmpty(u.expr) {
				continue
			}
			row := b.Copy()
			row[labelCol.Name] = m.label(u.expr)
			row[valuesCol.Name] = v
			rows = append(rows, row)
		}
	}

	to.SetRows(rows)
	log.AddLinef("Unpivoted %d columns into %d rows", len(resolved), len(rows))
	return to, nil
}
