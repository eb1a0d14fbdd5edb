package mapping

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/samber/lo"
)

type aggregationConfig struct {
	From       string `json:"from" validate:"required"`
	To         string `json:"to" validate:"required"`
	Aggregator string `json:"aggregator"`
}

type dataToSubsheetConfig struct {
	SubsheetRelationPath string              `json:"subsheet_relation_path" validate:"required"`
	SubsheetColumn       string              `json:"subsheet_column"`
	SubsheetMapper       map[string]any      `json:"subsheet_mapper" validate:"required"`
	FromSheetKeyColumns  []string            `json:"from_sheet_key_columns"`
	ToSheetKeyColumns    []string            `json:"to_sheet_key_columns"`
	ToAggregations       []aggregationConfig `json:"to_aggregations" validate:"dive"`
}

type aggregation struct {
	from       string
	to         string
	aggregator Aggregator
}

// DataToSubsheetMapping groups from-rows into subsheets placed on the matching
// to-rows. Rows are matched by key columns; without keys all from-rows go into a
// single subsheet.
type DataToSubsheetMapping struct {
	base
	column       string
	subMapper    *Mapper
	fromKeys     []string
	toKeys       []string
	aggregations []aggregation
}

func newDataToSubsheetMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[dataToSubsheetConfig](config)
	if err != nil {
		return nil, err
	}
	if len(cfg.FromSheetKeyColumns) != len(cfg.ToSheetKeyColumns) {
		return nil, errors.NewConfigurationErrorf("from_sheet_key_columns has %d columns, to_sheet_key_columns has %d",
			len(cfg.FromSheetKeyColumns), len(cfg.ToSheetKeyColumns)).AddField("to_sheet_key_columns")
	}

	related, err := s.to.GetRelatedObject(cfg.SubsheetRelationPath)
	if err != nil {
		return nil, errors.NewConfigurationErrorf("%w", err).AddField("subsheet_relation_path")
	}
	sub, err := build(s.model, uxon.Object(cfg.SubsheetMapper), s.from, related)
	if err != nil {
		return nil, errors.WrapMappingError(err).AddField("subsheet_mapper")
	}

	aggregations := make([]aggregation, 0, len(cfg.ToAggregations))
	for _, a := range cfg.ToAggregations {
		column, name := splitAggregation(a.From)
		if a.Aggregator != "" {
			column, name = a.From, a.Aggregator
		}
		aggregator, err := ParseAggregator(name)
		if err != nil {
			return nil, errors.NewConfigurationErrorf("%w", err).AddField("to_aggregations")
		}
		aggregations = append(aggregations, aggregation{from: column, to: a.To, aggregator: aggregator})
	}

	column := cfg.SubsheetColumn
	if column == "" {
		column = cfg.SubsheetRelationPath
	}

	return &DataToSubsheetMapping{
		base:         newBase(TypeDataToSubsheet, config, describe(s.from, column)),
		column:       column,
		subMapper:    sub,
		fromKeys:     cfg.FromSheetKeyColumns,
		toKeys:       cfg.ToSheetKeyColumns,
		aggregations: aggregations,
	}, nil
}

// partition is a group of from-rows sharing a key, in first-seen order.
type partition struct {
	key  []any
	rows []datasheet.Row
}

func (m *DataToSubsheetMapping) Map(ctx context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	to.SetRows(to.UniqueRows())
	subsheetCol, err := to.AddColumn(m.column)
	if err != nil {
		return nil, m.fail(err, from, to)
	}

	if len(m.fromKeys) == 0 {
		if to.CountRows() > 1 {
			return nil, m.fail(errors.NewMappingFailedErrorf("cannot put all from-rows into one subsheet: to-sheet has %d different rows", to.CountRows()).
				AddCode(errors.CodeAmbiguousSubsheetTarget), from, to)
		}
		if to.IsEmpty() {
			to.AddRow(datasheet.Row{subsheetCol.Name: nil})
		}
		all := partition{rows: lo.Map(from.Rows(), func(r datasheet.Row, _ int) datasheet.Row { return r.Copy() })}
		if err := m.fill(ctx, to, 0, subsheetCol, all, from, env); err != nil {
			return nil, m.fail(err, from, to)
		}
		log.AddLinef("Put %d rows into one subsheet", from.CountRows())
		return to, nil
	}

	fromKeyCols, err := keyColumns(from, m.fromKeys)
	if err != nil {
		return nil, m.fail(err, from, to)
	}

	partitions := []*partition{}
	byKey := map[string]*partition{}
	for i, row := range from.Rows() {
		key := lo.Map(fromKeyCols, func(c *datasheet.Column, _ int) any { return c.Value(i) })
		k := utils.KeyOf(key...)
		p, ok := byKey[k]
		if !ok {
			p = &partition{key: key}
			byKey[k] = p
			partitions = append(partitions, p)
		}
		p.rows = append(p.rows, row.Copy())
	}

	if to.IsEmpty() {
		for _, p := range partitions {
			row := datasheet.Row{subsheetCol.Name: nil}
			for j, name := range m.toKeys {
				row[name] = p.key[j]
			}
			to.AddRow(row)
			if err := m.fill(ctx, to, to.CountRows()-1, subsheetCol, *p, from, env); err != nil {
				return nil, m.fail(err, from, to)
			}
		}
		log.AddLinef("Created %d to-rows with subsheets", len(partitions))
		return to, nil
	}

	toKeyCols, err := keyColumns(to, m.toKeys)
	if err != nil {
		return nil, m.fail(err, from, to)
	}
	for i := range to.Rows() {
		key := lo.Map(toKeyCols, func(c *datasheet.Column, _ int) any { return c.Value(i) })
		p, ok := byKey[utils.KeyOf(key...)]
		if !ok {
			p = &partition{key: key}
		}
		if err := m.fill(ctx, to, i, subsheetCol, *p, from, env); err != nil {
			return nil, m.fail(err, from, to)
		}
	}

	log.AddLinef("Grouped %d from-rows into %d subsheets", from.CountRows(), to.CountRows())
	return to, nil
}

// fill maps a partition with the sub-mapper and writes the subsheet and the
// aggregations into to-row i.
func (m *DataToSubsheetMapping) fill(ctx context.Context, to *datasheet.DataSheet, i int, col *datasheet.Column, p partition, from *datasheet.DataSheet, env Env) error {
	part := from.CopyStructure()
	part.SetFilters(nil)
	part.AddRows(p.rows)

	opts := []MapOption{}
	if part.IsEmpty() {
		opts = append(opts, WithoutRead())
	}
	subsheet, err := m.subMapper.Map(ctx, part, nil, env, opts...)
	if err != nil {
		return err
	}
	col.SetValue(i, map[string]any(subsheet.ExportUxon()))

	for _, a := range m.aggregations {
		values := []any{}
		if c, ok := part.GetColumn(a.from); ok {
			values = c.Values()
		} else if !part.IsEmpty() {
			return errors.NewMappingFailedErrorf("aggregated column '%s' not found in from-data", a.from).
				AddField(a.from).
				AddCode(errors.CodeFromAttributeNotFound)
		}
		target, err := to.AddColumn(a.to)
		if err != nil {
			return err
		}
		target.SetValue(i, a.aggregator.Apply(values))
	}
	return nil
}

func keyColumns(sheet *datasheet.DataSheet, names []string) ([]*datasheet.Column, error) {
	cols := make([]*datasheet.Column, 0, len(names))
	for _, name := range names {
		c, ok := sheet.GetColumn(name)
		if !ok {
			return nil, errors.NewMappingFailedErrorf("key column '%s' not found in sheet of '%s'", name, sheet.ObjectAlias()).
				AddField(name).
				AddCode(errors.CodeFromAttributeNotFound)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// subsheetOf reads a subsheet cell, which may hold an exported sheet or its JSON.
func subsheetOf(object *meta.Object, value any) (*datasheet.DataSheet, error) {
	if utils.IsEmpty(value) {
		return datasheet.New(object), nil
	}
	u, err := uxon.FromAny(value)
	if err != nil {
		return nil, errors.NewMappingFailedErrorf("invalid subsheet: %w", err).AddCode(errors.CodeInvalidJSON)
	}
	return datasheet.FromUxonForObject(object, u)
}
