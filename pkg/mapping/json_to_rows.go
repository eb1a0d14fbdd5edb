package mapping

import (
	"context"
	"encoding/json"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/google/uuid"
	"github.com/jmespath/go-jmespath"
	"github.com/samber/lo"
)

const defaultValueColumn = "VALUE"

type jsonColumnConfig struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

type jsonToRowsConfig struct {
	From                      any                `json:"from"`
	JSONPath                  string             `json:"json_path"`
	ToColumns                 []jsonColumnConfig `json:"to_columns" validate:"dive"`
	ToValueColumn             string             `json:"to_value_column"`
	ToKeyColumn               string             `json:"to_key_column"`
	IgnoreIfMissingFromColumn bool               `json:"ignore_if_missing_from_column"`
}

// JSONToRowsMapping explodes a JSON column into rows. Arrays of objects yield one
// row per element, objects one row and arrays of scalars one row per scalar.
// Generated rows copy the to-row at the same position and may carry the UID of
// the from-row they came from.
type JSONToRowsMapping struct {
	base
	from          *expression.Expression
	path          *jmespath.JMESPath
	columns       []jsonColumnConfig
	valueColumn   string
	keyColumn     string
	ignoreMissing bool
}

func newJSONToRowsMapping(s scope, config uxon.Object) (Mapping, error) {
	cfg, err := parseConfig[jsonToRowsConfig](config)
	if err != nil {
		return nil, err
	}
	from, err := parseExpression(cfg.From, s.from, "from")
	if err != nil {
		return nil, err
	}

	m := &JSONToRowsMapping{
		base:          newBase(TypeJSONToRows, config, describe(from, "rows")),
		from:          from,
		columns:       cfg.ToColumns,
		valueColumn:   lo.CoalesceOrEmpty(cfg.ToValueColumn, defaultValueColumn),
		keyColumn:     cfg.ToKeyColumn,
		ignoreMissing: cfg.IgnoreIfMissingFromColumn,
	}
	if cfg.JSONPath != "" {
		m.path, err = jmespath.Compile(cfg.JSONPath)
		if err != nil {
			return nil, errors.NewConfigurationErrorf("invalid json_path: %w", err).AddField("json_path")
		}
	}
	return m, nil
}

func (m *JSONToRowsMapping) RequiredExpressions(_ *datasheet.DataSheet) []*expression.Expression {
	return requiredOf(m.from)
}

func (m *JSONToRowsMapping) Map(_ context.Context, from, to *datasheet.DataSheet, env Env) (*datasheet.DataSheet, error) {
	log := env.log()

	if from.IsEmpty() {
		log.AddLine("From-sheet is empty: no JSON to explode")
		return to, nil
	}

	src, err := resolveSource(m.from, from, policy{ignoreMissing: m.ignoreMissing})
	if err != nil {
		return nil, m.fail(err, from, to)
	}
	if src == sourceEmptySheet || src == sourceIgnored {
		log.AddLinef("JSON column '%s' not found: ignored", m.from)
		return to, nil
	}
	vals, err := values(src, m.from, from)
	if err != nil {
		return nil, m.fail(err, from, to)
	}

	uidCol, hasUID := from.GetUidColumn()
	rows := []datasheet.Row{}
	for i := 0; i < from.CountRows(); i++ {
		raw := vals[0]
		if src != sourceStatic {
			raw = vals[i]
		}

		var baseRow datasheet.Row
		if i < to.CountRows() {
			baseRow = to.Row(i).Copy()
		} else {
			baseRow = datasheet.Row{}
		}

		items, err := m.decompose(raw)
		if err != nil {
			return nil, m.fail(errors.WrapMappingError(err).AddField(m.from.String()).AddCode(errors.CodeInvalidJSON), from, to)
		}
		if len(items) == 0 {
			rows = append(rows, baseRow)
			continue
		}

		var key any
		if m.keyColumn != "" {
			if hasUID && !utils.IsEmpty(uidCol.Value(i)) {
				key = uidCol.Value(i)
			} else {
				key = uuid.NewString()
			}
		}

		for _, item := range items {
			row := baseRow.Copy()
			for k, v := range m.fields(item) {
				row[k] = v
			}
			if m.keyColumn != "" {
				row[m.keyColumn] = key
			}
			rows = append(rows, row)
		}
	}

	// to-rows past the last from-row have no JSON and stay as they are
	for i := from.CountRows(); i < to.CountRows(); i++ {
		rows = append(rows, to.Row(i).Copy())
	}

	to.SetRows(rows)
	log.AddLinef("Exploded JSON of %d rows into %d rows", from.CountRows(), len(rows))
	return to, nil
}

// decompose returns the JSON objects or scalars a cell explodes into.
func (m *JSONToRowsMapping) decompose(raw any) ([]any, error) {
	if utils.IsEmpty(raw) {
		return []any{}, nil
	}

	data := raw
	if s, ok := raw.(string); ok {
		if err := json.Unmarshal([]byte(s), &data); err != nil {
			return nil, errors.NewMappingFailedErrorf("cell is not valid JSON: %w", err)
		}
	}
	if m.path != nil {
		var err error
		data, err = m.path.Search(data)
		if err != nil {
			return nil, errors.NewMappingFailedErrorf("json_path failed: %w", err)
		}
	}

	if list, ok := utils.ToSlice(data); ok {
		return list, nil
	}
	if data == nil {
		return []any{}, nil
	}
	return []any{data}, nil
}

// fields maps one decomposed item to row values. Nested values stay JSON strings.
func (m *JSONToRowsMapping) fields(item any) map[string]any {
	obj, isObject := item.(map[string]any)
	if !isObject {
		return map[string]any{m.valueColumn: flatValue(item)}
	}

	result := map[string]any{}
	if len(m.columns) == 0 {
		for k, v := range obj {
			result[k] = flatValue(v)
		}
		return result
	}
	for _, c := range m.columns {
		result[c.To] = flatValue(obj[c.From])
	}
	return result
}

func flatValue(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		return utils.ToString(v)
	}
	return v
}
