package mapping

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/samber/mo"
)

type filterToFilterConfig struct {
	From                    any             `json:"from"`
	To                      any             `json:"to"`
	FromComparator          string          `json:"from_comparator"`
	ToComparator            string          `json:"to_comparator"`
	PreventInheritingFilter mo.Option[bool] `json:"prevent_inheriting_filter"`
}

// FilterToFilterMapping copies matching from-filter conditions to the to-sheet.
// Unless prevent_inheriting_filter is false, the matched conditions are removed
// from the from-sheet so the mapper does not inherit them a second time.
type FilterToFilterMapping struct {
	base
	from           *expression.Expression
	to             *expression.Expression
	fromComparator mo.Option[datasheet.Comparator]
	toComparator   mo.Option[datasheet.Comparator]
	removeMatched  bool
}

func newFilterToFilterMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[filterToFilterConfig](config)
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

	m := &FilterToFilterMapping{
		base:          newBase(TypeFilterToFilter, config, describe(from, to)),
		from:          from,
		to:            to,
		removeMatched: cfg.PreventInheritingFilter.OrElse(true),
	}
	if cfg.FromComparator != "" {
		c, err := datasheet.ParseComparator(cfg.FromComparator)
		if err != nil {
			return nil, errors.NewConfigurationErrorf("%w", err).AddField("from_comparator")
		}
		m.fromComparator = mo.Some(c)
	}
	if cfg.ToComparator != "" {
		c, err := datasheet.ParseComparator(cfg.ToComparator)
		if err != nil {
			return nil, errors.NewConfigurationErrorf("%w", err).AddField("to_comparator")
		}
		m.toComparator = mo.Some(c)
	}
	return m, nil
}

// MutatesFromSheet is true unless the mapping keeps matched from-conditions.
func (m *FilterToFilterMapping) MutatesFromSheet() bool {
	return m.removeMatched
}

func (m *FilterToFilterMapping) Map(_ context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	matched := 0
	for _, c := range from.Filters().AllConditions() {
		if !c.Expression.Equals(m.from) {
			continue
		}
		if want, ok := m.fromComparator.Get(); ok && c.Comparator != want {
			continue
		}

		to.Filters().AddCondition(&datasheet.Condition{
			Expression:        m.to,
			Comparator:        m.toComparator.OrElse(c.Comparator),
			Value:             c.Value,
			IgnoreEmptyValues: c.IgnoreEmptyValues,
		})
		if m.removeMatched {
			from.Filters().RemoveCondition(c)
		}
		matched++
	}

	log.AddLinef("Mapped %d filter conditions on '%s'", matched, m.from)
	return to, nil
}
