package mapping

import (
	"context"
	"encoding/json"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

type columnToJSONConfig struct {
	From                 any             `json:"from"`
	To                   any             `json:"to"`
	JSONKey              string          `json:"json_key"`
	CreateRowInEmptyData mo.Option[bool] `json:"create_row_in_empty_data"`
}

// ColumnToJSONMapping merges from-values into a JSON document stored in a
// to-column, one document per row.
type ColumnToJSONMapping struct {
	base
	from      *expression.Expression
	to        *expression.Expression
	key       string
	createRow bool
}

func newColumnToJSONMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[columnToJSONConfig](config)
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

	key := cfg.JSONKey
	if key == "" {
		key = from.String()
		if a, ok := from.Attribute(); ok {
			key = a.AliasWithRelationPath()
		}
	}

	return &ColumnToJSONMapping{
		base:      newBase(TypeColumnToJSON, config, describe(from, to)),
		from:      from,
		to:        to,
		key:       key,
		createRow: cfg.CreateRowInEmptyData.OrElse(true),
	}, nil
}

func (m *ColumnToJSONMapping) RequiredExpressions(_ *datasheet.DataSheet) []*expression.Expression {
	return requiredOf(m.from)
}

func (m *ColumnToJSONMapping) Map(_ context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	src, err := resolveSource(m.from, from, policy{})
	if err != nil {
		return nil, m.fail(err, from, to)
	}
	if src == sourceEmptySheet {
		log.AddLine("From-sheet has no columns: nothing to merge")
		return to, nil
	}

	vals, err := values(src, m.from, from)
	if err != nil {
		return nil, m.fail(err, from, to)
	}

	col := to.AddColumnExpression(m.to)
	rows := len(vals)
	if src == sourceStatic {
		rows = to.CountRows()
		if rows == 0 && m.createRow {
			to.AddRow(datasheet.Row{col.Name: nil})
			rows = 1
		}
	}

	for i := 0; i < rows; i++ {
		v := vals[0]
		if src != sourceStatic {
			v = vals[i]
		}
		if i >= to.CountRows() {
			to.AddRow(datasheet.Row{col.Name: nil})
		}

		doc, err := decodeJSONObject(col.Value(i))
		if err != nil {
			return nil, m.fail(errors.WrapMappingError(err).AddField(col.Name).AddCode(errors.CodeInvalidJSON), from, to)
		}
		doc[m.key] = v

		encoded, err := json.Marshal(doc)
		if err != nil {
			return nil, m.fail(errors.WrapMappingError(err).AddField(col.Name).AddCode(errors.CodeInvalidJSON), from, to)
		}
		col.SetValue(i, string(encoded))
	}

	log.AddLinef("Merged '%s' into JSON column '%s' of %d rows", m.key, col.Name, rows)
	return to, nil
}

// decodeJSONObject treats null and blank values as an empty object. Decoded
// cells are copied, the caller writes into the result.
func decodeJSONObject(value any) (map[string]any, error) {
	switch v := value.(type) {
	case map[string]any:
		return lo.Assign(map[string]any{}, v), nil
	case uxon.Object:
		return lo.Assign(map[string]any{}, v), nil
	}
	if utils.IsEmpty(value) {
		return map[string]any{}, nil
	}

	doc := map[string]any{}
	if err := json.Unmarshal([]byte(utils.ToString(value)), &doc); err != nil {
		return nil, errors.NewMappingFailedErrorf("cell is not a JSON object: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}
