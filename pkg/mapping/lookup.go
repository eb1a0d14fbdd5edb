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

const (
	IfNotFoundError = "error"
	IfNotFoundSkip  = "skip"
	IfNotFoundEmpty = "empty"

	IfMultipleError = "error"
	IfMultipleFirst = "first"
	IfMultipleLast  = "last"
	IfMultipleSkip  = "skip"
)

type lookupMatchConfig struct {
	From   string `json:"from" validate:"required"`
	Lookup string `json:"lookup" validate:"required"`
}

type lookupConfig struct {
	LookupObjectAlias string              `json:"lookup_object_alias" validate:"required"`
	Matches           []lookupMatchConfig `json:"matches" validate:"required,min=1,dive"`
	LookupColumn      string              `json:"lookup_column" validate:"required"`
	To                string              `json:"to" validate:"required"`
	IfNotFound        string              `json:"if_not_found" validate:"omitempty,oneof=error skip empty"`
	IfMultipleFound   string              `json:"if_multiple_found" validate:"omitempty,oneof=error first last skip"`
}

type lookupMatch struct {
	from   *expression.Expression
	lookup *expression.Expression
}

// LookupMapping reads rows of another object matching to-sheet values and copies
// one of their columns into the to-sheet.
//
// Every match pair becomes a "lookup IN (distinct to-values)" filter on the lookup
// read. A to-row is matched by lookup rows that equal it on all pairs.
type LookupMapping struct {
	base
	object       *meta.Object
	matches      []lookupMatch
	lookupColumn *expression.Expression
	to           *expression.Expression
	ifNotFound   string
	ifMultiple   string
}

func newLookupMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[lookupConfig](config)
	if err != nil {
		return nil, err
	}
	if s.model == nil {
		return nil, errors.NewConfigurationError("no meta model to resolve the lookup object in")
	}
	object, err := s.model.GetObject(cfg.LookupObjectAlias)
	if err != nil {
		return nil, errors.NewConfigurationErrorf("%w", err).AddField("lookup_object_alias")
	}

	matches := make([]lookupMatch, 0, len(cfg.Matches))
	for _, mc := range cfg.Matches {
		from, err := parseExpression(mc.From, s.to, "matches.from")
		if err != nil {
			return nil, err
		}
		lookup, err := parseExpression(mc.Lookup, object, "matches.lookup")
		if err != nil {
			return nil, err
		}
		matches = append(matches, lookupMatch{from: from, lookup: lookup})
	}
	lookupColumn, err := parseExpression(cfg.LookupColumn, object, "lookup_column")
	if err != nil {
		return nil, err
	}
	to, err := parseExpression(cfg.To, s.to, "to")
	if err != nil {
		return nil, err
	}

	return &LookupMapping{
		base:         newBase(TypeLookup, config, describe(object.Alias+"."+lookupColumn.String(), to)),
		object:       object,
		matches:      matches,
		lookupColumn: lookupColumn,
		to:           to,
		ifNotFound:   lo.CoalesceOrEmpty(strings.ToLower(cfg.IfNotFound), IfNotFoundSkip),
		ifMultiple:   lo.CoalesceOrEmpty(strings.ToLower(cfg.IfMultipleFound), IfMultipleError),
	}, nil
}

func (m *LookupMapping) Map(ctx context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	if to.IsEmpty() {
		log.AddLine("To-sheet is empty: nothing to look up")
		return to, nil
	}

	keys := make([][]any, len(m.matches))
	for j, match := range m.matches {
		vals, err := match.from.EvaluateAll(to)
		if err != nil {
			return nil, m.fail(err, from, to)
		}
		keys[j] = vals
	}

	index, err := m.read(ctx, keys, env)
	if err != nil {
		return nil, m.fail(err, from, to)
	}

	col := to.AddColumnExpression(m.to)
	found := 0
	for i := range to.Rows() {
		key := utils.KeyOf(lo.Map(keys, func(vals []any, _ int) any { return vals[i] })...)
		hits := index[key]

		switch {
		case len(hits) == 1:
			col.SetValue(i, hits[0])
			found++
		case len(hits) == 0:
			switch m.ifNotFound {
			case IfNotFoundError:
				return nil, m.fail(errors.NewMappingFailedErrorf("no %s found for row %d", m.object.Alias, i).AddCode(errors.CodeLookupNotFound), from, to)
			case IfNotFoundEmpty:
				col.SetValue(i, nil)
			}
		default:
			switch m.ifMultiple {
			case IfMultipleError:
				return nil, m.fail(errors.NewMappingFailedErrorf("%d %s rows found for row %d", len(hits), m.object.Alias, i).AddCode(errors.CodeLookupAmbiguous), from, to)
			case IfMultipleFirst:
				col.SetValue(i, hits[0])
				found++
			case IfMultipleLast:
				col.SetValue(i, hits[len(hits)-1])
				found++
			}
		}
	}

	log.AddLinef("Looked up '%s' for %d of %d rows", m.lookupColumn, found, to.CountRows())
	return to, nil
}

// read loads the lookup rows and indexes the lookup values by match key.
func (m *LookupMapping) read(ctx context.Context, keys [][]any, env Env) (map[string][]any, error) {
	sheet := datasheet.New(m.object)
	for j, match := range m.matches {
		sheet.AddColumnExpression(match.lookup)

		distinct := lo.Uniq(lo.FilterMap(keys[j], func(v any, _ int) (string, bool) {
			return utils.ToString(v), !utils.IsEmpty(v)
		}))
		if len(distinct) == 0 {
			return map[string][]any{}, nil
		}
		delimiter := meta.DefaultValueListDelimiter
		if a, ok := match.lookup.Attribute(); ok {
			delimiter = a.GetValueListDelimiter()
		}
		sheet.Filters().AddCondition(datasheet.NewCondition(match.lookup, datasheet.ComparatorIn, strings.Join(distinct, delimiter)))
	}
	resultCol := sheet.AddColumnExpression(m.lookupColumn)

	if env.Reader == nil {
		return nil, errors.NewMappingFailedError("no data reader for the lookup").AddCode(errors.CodeReaderMissing)
	}
	if err := env.Reader.Read(ctx, sheet); err != nil {
		return nil, errors.NewMappingFailedErrorf("reading lookup data of '%s': %w", m.object.Alias, err).AddCode(errors.CodeReadFailed)
	}

	index := map[string][]any{}
	for i := range sheet.Rows() {
		key := lo.Map(m.matches, func(match lookupMatch, _ int) any {
			v, _ := match.lookup.Evaluate(sheet, i)
			return v
		})
		k := utils.KeyOf(key...)
		index[k] = append(index[k], resultCol.Value(i))
	}
	return index, nil
}
