package mapping

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/samber/lo"
)

type pivotConfig struct {
	FromLabelColumn  string   `json:"from_label_column" validate:"required"`
	FromValuesColumn string   `json:"from_values_column" validate:"required"`
	ToKeyColumns     []string `json:"to_key_columns"`
	Aggregator       string   `json:"aggregator"`
}

// PivotMapping is the reverse of UnpivotMapping: rows sharing the key columns
// become one row with a column per distinct label.
type PivotMapping struct {
	base
	labelColumn  string
	valuesColumn string
	keys         []string
	aggregator   Aggregator
}

func newPivotMapping(_ scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[pivotConfig](config)
	if err != nil {
		return nil, err
	}

	aggregator := AggregatorList
	if cfg.Aggregator != "" {
		aggregator, err = ParseAggregator(cfg.Aggregator)
		if err != nil {
			return nil, errors.NewConfigurationErrorf("%w", err).AddField("aggregator")
		}
	}

	return &PivotMapping{
		base:         newBase(TypePivot, config, describe(cfg.FromLabelColumn+"/"+cfg.FromValuesColumn, cfg.ToKeyColumns)),
		labelColumn:  cfg.FromLabelColumn,
		valuesColumn: cfg.FromValuesColumn,
		keys:         cfg.ToKeyColumns,
		aggregator:   aggregator,
	}, nil
}

func (m *PivotMapping) Map(_ context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	if from.IsEmpty() {
		log.AddLine("From-sheet is empty: nothing to pivot")
		return to, nil
	}

	cols, err := keyColumns(from, append([]string{m.labelColumn, m.valuesColumn}, m.keys...))
	if err != nil {
		return nil, m.fail(err, from, to)
	}
	labelCol, valuesCol, keyCols := cols[0], cols[1], cols[2:]

	type group struct {
		row    datasheet.Row
		values map[string][]any
	}
	groups := []*group{}
	byKey := map[string]*group{}
	labels := []string{}

	for i := range from.Rows() {
		key := lo.Map(keyCols, func(c *datasheet.Column, _ int) any { return c.Value(i) })
		k := utils.KeyOf(key...)
		g, ok := byKey[k]
		if !ok {
			g = &group{row: datasheet.Row{}, values: map[string][]any{}}
			for j, c := range keyCols {
				g.row[c.Name] = key[j]
			}
			byKey[k] = g
			groups = append(groups, g)
		}

		label := utils.ToString(labelCol.Value(i))
		if label == "" {
			continue
		}
		if !lo.Contains(labels, label) {
			labels = append(labels, label)
		}
		g.values[label] = append(g.values[label], valuesCol.Value(i))
	}

	to.RemoveRows()
	for _, c := range keyCols {
		if _, err := to.AddColumn(c.Name); err != nil {
			return nil, m.fail(err, from, to)
		}
	}
	for _, label := range labels {
		if _, err := to.AddColumn(label); err != nil {
			return nil, m.fail(err, from, to)
		}
	}
	for _, g := range groups {
		row := g.row.Copy()
		for _, label := range labels {
			if vals, ok := g.values[label]; ok {
				row[label] = m.aggregator.Apply(vals)
			} else {
				row[label] = nil
			}
		}
		to.AddRow(row)
	}

	log.AddLinef("Pivoted %d rows into %d rows with %d label columns", from.CountRows(), len(groups), len(labels))
	return to, nil
}
