package mapping

import (
	"context"
	"strings"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/uxon"
)

type subsheetConfig struct {
	SubsheetRelationPath string         `json:"subsheet_relation_path" validate:"required"`
	FromSubsheetColumn   string         `json:"from_subsheet_column"`
	ToSubsheetColumn     string         `json:"to_subsheet_column"`
	SubsheetMapper       map[string]any `json:"subsheet_mapper" validate:"required"`
}

// SubsheetMapping maps the subsheet held in every row of a from-column with a
// nested mapper and writes the results into a to-column.
type SubsheetMapping struct {
	base
	fromColumn    string
	toColumn      string
	subFromObject *meta.Object
	subMapper     *Mapper
}

func newSubsheetMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[subsheetConfig](config)
	if err != nil {
		return nil, err
	}

	subFrom, err := s.from.GetRelatedObject(cfg.SubsheetRelationPath)
	if err != nil {
		return nil, errors.NewConfigurationErrorf("%w", err).AddField("subsheet_relation_path")
	}
	subTo, err := s.to.GetRelatedObject(cfg.SubsheetRelationPath)
	if err != nil {
		return nil, errors.NewConfigurationErrorf("%w", err).AddField("subsheet_relation_path")
	}
	sub, err := build(s.model, uxon.Object(cfg.SubsheetMapper), subFrom, subTo)
	if err != nil {
		return nil, errors.WrapMappingError(err).AddField("subsheet_mapper")
	}

	fromColumn := cfg.FromSubsheetColumn
	if fromColumn == "" {
		fromColumn = cfg.SubsheetRelationPath
	}
	toColumn := cfg.ToSubsheetColumn
	if toColumn == "" {
		toColumn = cfg.SubsheetRelationPath
	}

	return &SubsheetMapping{
		base:          newBase(TypeSubsheet, config, describe(fromColumn, toColumn)),
		fromColumn:    fromColumn,
		toColumn:      toColumn,
		subFromObject: subFrom,
		subMapper:     sub,
	}, nil
}

func (m *SubsheetMapping) Map(ctx context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	fromCol, ok := from.GetColumn(m.fromColumn)
	if !ok {
		log.AddLinef("No subsheet column '%s' in from-data: nothing to map", m.fromColumn)
		return to, nil
	}

	results := make([]any, from.CountRows())
	for i, cell := range fromCol.Values() {
		subsheet, err := subsheetOf(m.subFromObject, cell)
		if err != nil {
			return nil, m.fail(errors.WrapMappingError(err).AddField(fromCol.Name), from, to)
		}

		opts := []MapOption{}
		if subsheet.IsEmpty() {
			opts = append(opts, WithoutRead())
		}
		mapped, err := m.subMapper.Map(ctx, subsheet, nil, env, opts...)
		if err != nil {
			return nil, m.fail(err, from, to)
		}
		results[i] = map[string]any(mapped.ExportUxon())
	}

	toCol, err := to.AddColumn(m.toColumn)
	if err != nil {
		return nil, m.fail(err, from, to)
	}
	toCol.SetValues(results)

	if from.Object().Is(to.Object()) && !strings.EqualFold(fromCol.Name, toCol.Name) {
		to.RemoveColumn(fromCol.Name)
	}

	log.AddLinef("Mapped %d subsheets from '%s' to '%s'", len(results), fromCol.Name, toCol.Name)
	return to, nil
}
