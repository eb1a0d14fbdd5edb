package mapping

import (
	"context"
	"testing"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orders(t *testing.T) *datasheet.DataSheet {
	return newSheet(t, testModel(), "ORDER",
		datasheet.Row{"ID": 1, "NAME": "a"},
		datasheet.Row{"ID": 2, "NAME": "b"},
		datasheet.Row{"ID": 3, "NAME": "c"},
	)
}

func TestColumnMappingStatic(t *testing.T) {
	model := testModel()

	t.Run("should add a row to an empty to-sheet", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "CUSTOMER",
			"column_to_column_mappings": [{"from": "'Acme'", "to": "NAME"}]
		}`)

		to, err := m.Map(context.Background(), orders(t), nil, Env{})
		require.NoError(t, err)
		require.Equal(t, 1, to.CountRows())
		assert.Equal(t, datasheet.Row{"NAME": "Acme"}, to.Row(0))
	})

	t.Run("should leave the to-sheet empty when row creation is off", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "CUSTOMER",
			"column_to_column_mappings": [{"from": "'Acme'", "to": "NAME", "create_row_in_empty_data": false}]
		}`)

		to, err := m.Map(context.Background(), orders(t), nil, Env{})
		require.NoError(t, err)
		assert.True(t, to.IsEmpty())
	})

	t.Run("should set the value on every to-row", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "CUSTOMER",
			"column_to_column_mappings": [{"from": 42, "to": "CITY"}]
		}`)
		to := newSheet(t, model, "CUSTOMER", datasheet.Row{"ID": "x"}, datasheet.Row{"ID": "y"})

		to, err := m.Map(context.Background(), orders(t), to, Env{})
		require.NoError(t, err)
		assert.Equal(t, []any{float64(42), float64(42)}, columnValues(to, "CITY"))
	})
}

func TestColumnMappingColumns(t *testing.T) {
	model := testModel()
	m := mustParse(t, model, `{
		"from_object_alias": "ORDER",
		"to_object_alias": "CUSTOMER",
		"column_to_column_mappings": [{"from": "NAME", "to": "NAME"}]
	}`)

	t.Run("should copy values in row order", func(t *testing.T) {
		to, err := m.Map(context.Background(), orders(t), nil, Env{})
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b", "c"}, columnValues(to, "NAME"))
	})

	t.Run("should keep other to-columns", func(t *testing.T) {
		to := newSheet(t, model, "CUSTOMER",
			datasheet.Row{"ID": 10}, datasheet.Row{"ID": 11}, datasheet.Row{"ID": 12},
		)

		to, err := m.Map(context.Background(), orders(t), to, Env{})
		require.NoError(t, err)
		assert.Equal(t, 3, to.CountRows())
		assert.Equal(t, []any{10, 11, 12}, columnValues(to, "ID"))
		assert.Equal(t, []any{"a", "b", "c"}, columnValues(to, "NAME"))
	})

	t.Run("should do nothing for a from-sheet without columns", func(t *testing.T) {
		from := newSheet(t, model, "ORDER")

		to, err := m.Map(context.Background(), from, nil, Env{})
		require.NoError(t, err)
		assert.False(t, to.HasColumns())
	})
}

func TestColumnMappingFormula(t *testing.T) {
	model := testModel()
	m := mustParse(t, model, `{
		"from_object_alias": "ORDER",
		"to_object_alias": "CUSTOMER",
		"column_to_column_mappings": [{"from": "=Concat(ID, '-', NAME)", "to": "CITY"}]
	}`)

	t.Run("should evaluate per from-row", func(t *testing.T) {
		to := newSheet(t, model, "CUSTOMER", datasheet.Row{"ID": 10}, datasheet.Row{"ID": 11}, datasheet.Row{"ID": 12})

		to, err := m.Map(context.Background(), orders(t), to, Env{})
		require.NoError(t, err)
		assert.Equal(t, []any{"1-a", "2-b", "3-c"}, columnValues(to, "CITY"))
	})

	t.Run("should seed an empty to-sheet with the first row", func(t *testing.T) {
		to, err := m.Map(context.Background(), orders(t), nil, Env{})
		require.NoError(t, err)
		assert.Equal(t, 1, to.CountRows())
		assert.Equal(t, "1-a", to.Row(0)["CITY"])
	})

	t.Run("should not create rows from an empty from-sheet", func(t *testing.T) {
		from := orders(t)
		from.RemoveRows()

		to, err := m.Map(context.Background(), from, nil, Env{})
		require.NoError(t, err)
		assert.True(t, to.IsEmpty())
	})
}

func TestColumnMappingMissingColumns(t *testing.T) {
	model := testModel()
	from := func() *datasheet.DataSheet {
		return newSheet(t, model, "ORDER", datasheet.Row{"ID": 1})
	}
	to := func() *datasheet.DataSheet {
		return newSheet(t, model, "CUSTOMER", datasheet.Row{"ID": 5, "CITY": "x"})
	}

	t.Run("should leave the to-sheet unchanged if ignored", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "CUSTOMER",
			"column_to_column_mappings": [
				{"from": "NAME", "to": "NAME", "ignore_if_missing_from_column": true},
				{"from": "=Upper(NAME)", "to": "CITY", "ignore_if_missing_from_column": true}
			]
		}`)
		target := to()
		before := target.ExportUxon()

		result, err := m.Map(context.Background(), from(), target, Env{})
		require.NoError(t, err)
		assert.Equal(t, before, result.ExportUxon())
	})

	t.Run("should fail for a missing attribute", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "CUSTOMER",
			"column_to_column_mappings": [{"from": "NAME", "to": "NAME"}]
		}`)

		_, err := m.Map(context.Background(), from(), to(), Env{})
		require.Error(t, err)
		assert.True(t, errors.IsMappingFailedError(err))
		assert.Equal(t, errors.CodeFromAttributeNotFound, errorCode(t, err))
	})

	cases := []struct {
		name string
		from string
	}{
		{name: "widget reference", from: "=~widget!VALUE"},
		{name: "unknown column", from: "SOMETHING_ELSE"},
	}
	for _, tt := range cases {
		t.Run("should reject "+tt.name, func(t *testing.T) {
			m := mustParse(t, model, `{
				"from_object_alias": "ORDER",
				"to_object_alias": "CUSTOMER",
				"column_to_column_mappings": [{"from": "`+tt.from+`", "to": "NAME"}]
			}`)

			_, err := m.Map(context.Background(), from(), to(), Env{})
			require.Error(t, err)
			assert.Equal(t, errors.CodeUnsupportedFrom, errorCode(t, err))
		})
	}
}

func TestColumnToFilterMapping(t *testing.T) {
	model := testModel()
	m := mustParse(t, model, `{
		"from_object_alias": "ORDER",
		"to_object_alias": "CUSTOMER",
		"column_to_filter_mappings": [{"from": "ID", "to": "ID", "comparator": "=="}]
	}`)

	t.Run("should use the comparator for a single value", func(t *testing.T) {
		from := newSheet(t, model, "ORDER", datasheet.Row{"ID": 7})

		to, err := m.Map(context.Background(), from, nil, Env{})
		require.NoError(t, err)
		conditions := to.Filters().AllConditions()
		require.Len(t, conditions, 1)
		assert.Equal(t, "ID", conditions[0].Expression.String())
		assert.Equal(t, datasheet.ComparatorEquals, conditions[0].Comparator)
		assert.Equal(t, 7, conditions[0].Value)
	})

	t.Run("should use IN for several values", func(t *testing.T) {
		from := orders(t)
		from.AddRow(datasheet.Row{"ID": 2, "NAME": "again"})

		to, err := m.Map(context.Background(), from, nil, Env{})
		require.NoError(t, err)
		conditions := to.Filters().AllConditions()
		require.Len(t, conditions, 1)
		assert.Equal(t, datasheet.ComparatorIn, conditions[0].Comparator)
		assert.Equal(t, "1,2,3", conditions[0].Value)
	})

	t.Run("should add no condition without values", func(t *testing.T) {
		from := orders(t)
		from.RemoveRows()

		to, err := m.Map(context.Background(), from, nil, Env{})
		require.NoError(t, err)
		assert.True(t, to.Filters().IsEmpty())
	})

	t.Run("should add no condition if all values are empty", func(t *testing.T) {
		from := newSheet(t, model, "ORDER", datasheet.Row{"ID": nil}, datasheet.Row{"ID": ""})

		to, err := m.Map(context.Background(), from, nil, Env{})
		require.NoError(t, err)
		assert.True(t, to.Filters().IsEmpty())
	})
}

func TestColumnToJSONMapping(t *testing.T) {
	model := testModel()
	m := mustParse(t, model, `{
		"from_object_alias": "ORDER",
		"to_object_alias": "ORDER",
		"inherit_columns": false,
		"column_to_json_mappings": [
			{"from": "NAME", "to": "DATA"},
			{"from": "ID", "to": "DATA", "json_key": "id"}
		]
	}`)
	from := func() *datasheet.DataSheet {
		return newSheet(t, model, "ORDER", datasheet.Row{"ID": 1, "NAME": "a"})
	}

	t.Run("should merge values into a JSON object", func(t *testing.T) {
		to, err := m.Map(context.Background(), from(), nil, Env{})
		require.NoError(t, err)
		require.Equal(t, 1, to.CountRows())
		assert.JSONEq(t, `{"NAME": "a", "id": 1}`, to.Row(0)["DATA"].(string))
	})

	t.Run("should be idempotent", func(t *testing.T) {
		once, err := m.Map(context.Background(), from(), nil, Env{})
		require.NoError(t, err)
		first := once.Row(0)["DATA"].(string)

		twice, err := m.Map(context.Background(), from(), once, Env{})
		require.NoError(t, err)
		assert.JSONEq(t, first, twice.Row(0)["DATA"].(string))
	})

	t.Run("should keep existing keys", func(t *testing.T) {
		to := newSheet(t, model, "ORDER", datasheet.Row{"DATA": `{"x": true, "NAME": "old"}`})

		to, err := m.Map(context.Background(), from(), to, Env{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"x": true, "NAME": "a", "id": 1}`, to.Row(0)["DATA"].(string))
	})

	t.Run("should leave an inherited object cell of the from-sheet alone", func(t *testing.T) {
		inherit := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "ORDER",
			"column_to_json_mappings": [{"from": "NAME", "to": "DATA"}]
		}`)
		source := newSheet(t, model, "ORDER", datasheet.Row{"ID": 1, "NAME": "a", "DATA": map[string]any{"x": 1}})

		to, err := inherit.Map(context.Background(), source, nil, Env{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"x": 1, "NAME": "a"}`, to.Row(0)["DATA"].(string))
		assert.Equal(t, map[string]any{"x": 1}, source.Row(0)["DATA"])
	})

	t.Run("should reject invalid JSON in the to-column", func(t *testing.T) {
		to := newSheet(t, model, "ORDER", datasheet.Row{"DATA": "not json"})

		_, err := m.Map(context.Background(), from(), to, Env{})
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidJSON, errorCode(t, err))
	})
}

func TestFilterToFilterMapping(t *testing.T) {
	model := testModel()
	from := func() *datasheet.DataSheet {
		sheet := newSheet(t, model, "ORDER")
		sheet.Filters().
			AddCondition(datasheet.NewCondition(expression.MustParse("CUSTOMER", sheet.Object()), datasheet.ComparatorEquals, 5)).
			AddCondition(datasheet.NewCondition(expression.MustParse("NAME", sheet.Object()), datasheet.ComparatorIs, "x"))
		return sheet
	}

	t.Run("should move the matching condition", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "CUSTOMER",
			"filter_to_filter_mappings": [{"from": "CUSTOMER", "to": "ID"}]
		}`)
		assert.True(t, m.MutatesFromSheet())
		sheet := from()

		to, err := m.Map(context.Background(), sheet, nil, Env{})
		require.NoError(t, err)

		remaining := sheet.Filters().AllConditions()
		require.Len(t, remaining, 1)
		assert.Equal(t, "NAME", remaining[0].Expression.String())

		moved := to.Filters().AllConditions()
		require.Len(t, moved, 1)
		assert.Equal(t, "ID", moved[0].Expression.String())
		assert.Equal(t, datasheet.ComparatorEquals, moved[0].Comparator)
		assert.Equal(t, 5, moved[0].Value)
	})

	t.Run("should copy when inheriting is allowed", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "CUSTOMER",
			"filter_to_filter_mappings": [{"from": "CUSTOMER", "to": "ID", "prevent_inheriting_filter": false, "to_comparator": "["}]
		}`)
		assert.False(t, m.MutatesFromSheet())
		sheet := from()

		to, err := m.Map(context.Background(), sheet, nil, Env{})
		require.NoError(t, err)
		assert.Len(t, sheet.Filters().AllConditions(), 2)
		moved := to.Filters().AllConditions()
		require.Len(t, moved, 1)
		assert.Equal(t, datasheet.ComparatorIn, moved[0].Comparator)
	})

	t.Run("should skip conditions with another comparator", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "CUSTOMER",
			"filter_to_filter_mappings": [{"from": "CUSTOMER", "to": "ID", "from_comparator": "<"}]
		}`)
		sheet := from()

		to, err := m.Map(context.Background(), sheet, nil, Env{})
		require.NoError(t, err)
		assert.Len(t, sheet.Filters().AllConditions(), 2)
		assert.True(t, to.Filters().IsEmpty())
	})
}

func TestVariableMappings(t *testing.T) {
	model := testModel()
	ctx := context.Background()

	t.Run("should store several values as a list", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "ORDER",
			"column_to_variable_mappings": [{"from": "NAME", "variable": "names"}]
		}`)
		store := variables.NewMemory(nil)

		_, err := m.Map(ctx, orders(t), nil, Env{Variables: store})
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b", "c"}, store.All()["names"])
	})

	t.Run("should store a single value as scalar", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "ORDER",
			"column_to_variable_mappings": [{"from": "NAME", "variable": "name"}]
		}`)
		store := variables.NewMemory(nil)

		_, err := m.Map(ctx, newSheet(t, model, "ORDER", datasheet.Row{"ID": 1, "NAME": "a"}), nil, Env{Variables: store})
		require.NoError(t, err)
		assert.Equal(t, "a", store.All()["name"])
	})

	t.Run("should fail without a store", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "ORDER",
			"column_to_variable_mappings": [{"from": "NAME", "variable": "name"}]
		}`)

		_, err := m.Map(ctx, orders(t), nil, Env{})
		require.Error(t, err)
		assert.Equal(t, errors.CodeVariableStoreMissing, errorCode(t, err))
	})

	toColumn := func(extra string) *Mapper {
		return mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "CUSTOMER",
			"variable_to_column_mappings": [{"variable": "ids", "to": "ID"`+extra+`}]
		}`)
	}
	customers := func(n int) *datasheet.DataSheet {
		sheet := newSheet(t, model, "CUSTOMER")
		for i := 0; i < n; i++ {
			sheet.AddRow(datasheet.Row{"NAME": i})
		}
		return sheet
	}
	store := func(value any) Env {
		return Env{Variables: variables.NewMemory(map[string]any{"ids": value})}
	}
	empty := newSheet(t, model, "ORDER")

	t.Run("should create a row per list element", func(t *testing.T) {
		to, err := toColumn("").Map(ctx, empty, nil, store([]any{1, 2, 3}))
		require.NoError(t, err)
		assert.Equal(t, []any{1, 2, 3}, columnValues(to, "ID"))
	})

	t.Run("should fill rows element-wise", func(t *testing.T) {
		to, err := toColumn("").Map(ctx, empty, customers(3), store([]any{1, 2, 3}))
		require.NoError(t, err)
		assert.Equal(t, []any{1, 2, 3}, columnValues(to, "ID"))
		assert.Equal(t, []any{0, 1, 2}, columnValues(to, "NAME"))
	})

	t.Run("should duplicate rows per element", func(t *testing.T) {
		to, err := toColumn(`, "duplicate_rows": true`).Map(ctx, empty, customers(2), store([]any{1, 2, 3}))
		require.NoError(t, err)
		assert.Equal(t, []any{1, 2, 3, 1, 2, 3}, columnValues(to, "ID"))
		assert.Equal(t, []any{0, 0, 0, 1, 1, 1}, columnValues(to, "NAME"))
	})

	t.Run("should reject a count mismatch", func(t *testing.T) {
		_, err := toColumn("").Map(ctx, empty, customers(2), store([]any{1, 2, 3}))
		require.Error(t, err)
		assert.Equal(t, errors.CodeVariableCountMismatch, errorCode(t, err))
	})

	t.Run("should broadcast a scalar", func(t *testing.T) {
		to, err := toColumn("").Map(ctx, empty, customers(2), store("x"))
		require.NoError(t, err)
		assert.Equal(t, []any{"x", "x"}, columnValues(to, "ID"))
	})

	t.Run("should not create rows when switched off", func(t *testing.T) {
		to, err := toColumn(`, "create_row_in_empty_data": false`).Map(ctx, empty, nil, store([]any{1, 2}))
		require.NoError(t, err)
		assert.True(t, to.IsEmpty())
	})
}
