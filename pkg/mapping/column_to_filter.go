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
)

type columnToFilterConfig struct {
	From                      any    `json:"from"`
	To                        any    `json:"to"`
	Comparator                string `json:"comparator"`
	IgnoreIfMissingFromColumn bool   `json:"ignore_if_missing_from_column"`
}

// ColumnToFilterMapping turns from-values into a condition on the to-sheet.
// Several values become an IN condition.
type ColumnToFilterMapping struct {
	base
	from          *expression.Expression
	to            *expression.Expression
	comparator    datasheet.Comparator
	ignoreMissing bool
}

func newColumnToFilterMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[columnToFilterConfig](config)
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
	comparator, err := datasheet.ParseComparator(cfg.Comparator)
	if err != nil {
		return nil, errors.NewConfigurationErrorf("%w", err).AddField("comparator")
	}

	return &ColumnToFilterMapping{
		base:          newBase(TypeColumnToFilter, config, describe(from, to)),
		from:          from,
		to:            to,
		comparator:    comparator,
		ignoreMissing: cfg.IgnoreIfMissingFromColumn,
	}, nil
}

func (m *ColumnToFilterMapping) RequiredExpressions(_ *datasheet.DataSheet) []*expression.Expression {
	return requiredOf(m.from)
}

func (m *ColumnToFilterMapping) Map(_ context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	src, err := resolveSource(m.from, from, policy{ignoreMissing: m.ignoreMissing})
	if err != nil {
		return nil, m.fail(err, from, to)
	}

	switch src {
	case sourceEmptySheet:
		log.AddLine("From-sheet has no columns: no filter added")
		return to, nil
	case sourceIgnored:
		log.AddLinef("Column '%s' not found in from-data: ignored", m.from)
		return to, nil
	}

	vals, err := values(src, m.from, from)
	if err != nil {
		return nil, m.fail(err, from, to)
	}

	switch {
	case len(vals) == 0:
		log.AddLinef("No values for '%s': no filter added", m.from)
	case len(vals) == 1:
		to.Filters().AddCondition(datasheet.NewCondition(m.to, m.comparator, vals[0]))
		log.AddLinef("Added filter %s %s %s", m.to, m.comparator, utils.ToString(vals[0]))
	default:
		delimiter := m.delimiter()
		list := lo.Uniq(lo.FilterMap(vals, func(v any, _ int) (string, bool) {
			return utils.ToString(v), !utils.IsEmpty(v)
		}))
		if len(list) == 0 {
			log.AddLinef("Only empty values for '%s': no filter added", m.from)
			break
		}
		to.Filters().AddCondition(datasheet.NewCondition(m.to, datasheet.ComparatorIn, strings.Join(list, delimiter)))
		log.AddLinef("Added filter %s IN %d values", m.to, len(list))
	}

	return to, nil
}

func (m *ColumnToFilterMapping) delimiter() string {
	if a, ok := m.from.Attribute(); ok {
		return a.GetValueListDelimiter()
	}
	return meta.DefaultValueListDelimiter
}
