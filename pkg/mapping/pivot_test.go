package mapping

import (
	"context"
	"testing"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnpivotMapping(t *testing.T) {
	model := testModel()
	wide := func() *datasheet.DataSheet {
		return newSheet(t, model, "WIDE", datasheet.Row{"Col1": "a", "Col2": "b", "Col3": "c", "Col4": "d"})
	}

	t.Run("should turn columns into label/value rows", func(t *testing.T) {
		m := mustParse(t, model, `{
			from_object_alias: WIDE
			to_object_alias: WIDE
			unpivot_mappings: [
				{
					from_columns: "Col3,Col4"
					to_label_column: Labels
					to_values_column: Values
				}
			]
		}`)

		to, err := m.Map(context.Background(), wide(), nil, Env{})
		require.NoError(t, err)
		assert.Equal(t, []datasheet.Row{
			{"Col1": "a", "Col2": "b", "Labels": "Col3", "Values": "c"},
			{"Col1": "a", "Col2": "b", "Labels": "Col4", "Values": "d"},
		}, to.Rows())
		assert.Equal(t, []string{"Col1", "Col2", "Labels", "Values"}, to.ColumnNames())
	})

	t.Run("should build on mapped to-columns", func(t *testing.T) {
		m := mustParse(t, model, `{
			from_object_alias: WIDE
			to_object_alias: WIDE
			inherit_columns: false
			column_to_column_mappings: [
				{ "from": "Col1", "to": "Col1" }
				{ "from": "Col2", "to": "Col2" }
			]
			mappings: [
				{
					type: unpivot
					from_columns: ["Col3", "Col4"]
					to_label_column: Labels
					to_values_column: Values
					to_label_mapping: { "Col4": "fourth" }
				}
			]
		}`)

		to, err := m.Map(context.Background(), wide(), nil, Env{})
		require.NoError(t, err)
		require.Equal(t, 2, to.CountRows())
		assert.Equal(t, []any{"a", "a"}, columnValues(to, "Col1"))
		assert.Equal(t, []any{"Col3", "fourth"}, columnValues(to, "Labels"))
		assert.Equal(t, []any{"c", "d"}, columnValues(to, "Values"))
	})

	t.Run("should compute the columns and skip empty values", func(t *testing.T) {
		m := mustParse(t, model, `{
			from_object_alias: WIDE
			to_object_alias: WIDE
			unpivot_mappings: [
				{
					from_columns_calculation: "=List_Join(',', 'Col3', 'Col4')"
					to_label_column: Labels
					to_values_column: Values
					ignore_empty_values: true
				}
			]
		}`)
		from := newSheet(t, model, "WIDE", datasheet.Row{"Col1": "a", "Col3": "c", "Col4": ""})

		to, err := m.Map(context.Background(), from, nil, Env{})
		require.NoError(t, err)
		assert.Equal(t, []datasheet.Row{{"Col1": "a", "Labels": "Col3", "Values": "c"}}, to.Rows())
	})

	t.Run("should reject both column options", func(t *testing.T) {
		_, err := Parse(model, []byte(`{
			"from_object_alias": "WIDE",
			"to_object_alias": "WIDE",
			"unpivot_mappings": [{"from_columns": "Col3", "from_columns_calculation": "='Col3'", "to_label_column": "Labels", "to_values_column": "Values"}]
		}`))
		assert.Error(t, err)
	})

	t.Run("should do nothing for an empty from-sheet", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "WIDE",
			"to_object_alias": "WIDE",
			"unpivot_mappings": [{"from_columns": "Col3", "to_label_column": "Labels", "to_values_column": "Values"}]
		}`)

		to, err := m.Map(context.Background(), newSheet(t, model, "WIDE"), nil, Env{})
		require.NoError(t, err)
		assert.True(t, to.IsEmpty())
		assert.False(t, to.HasColumns())
	})
}

func TestPivotMapping(t *testing.T) {
	model := testModel()
	from := newSheet(t, model, "WIDE",
		datasheet.Row{"Col1": "k1", "Labels": "x", "Values": 1},
		datasheet.Row{"Col1": "k1", "Labels": "y", "Values": 2},
		datasheet.Row{"Col1": "k2", "Labels": "x", "Values": 3},
		datasheet.Row{"Col1": "k1", "Labels": "x", "Values": 4},
	)

	t.Run("should aggregate values per key and label", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "WIDE",
			"to_object_alias": "WIDE",
			"inherit_columns": false,
			"pivot_mappings": [{"from_label_column": "Labels", "from_values_column": "Values", "to_key_columns": ["Col1"], "aggregator": "SUM"}]
		}`)

		to, err := m.Map(context.Background(), from, nil, Env{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Col1", "x", "y"}, to.ColumnNames())
		assert.Equal(t, []datasheet.Row{
			{"Col1": "k1", "x": 5.0, "y": 2.0},
			{"Col1": "k2", "x": 3.0, "y": nil},
		}, to.Rows())
	})

	t.Run("should list values by default", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "WIDE",
			"to_object_alias": "WIDE",
			"inherit_columns": false,
			"pivot_mappings": [{"from_label_column": "Labels", "from_values_column": "Values", "to_key_columns": ["Col1"]}]
		}`)

		to, err := m.Map(context.Background(), from, nil, Env{})
		require.NoError(t, err)
		assert.Equal(t, "1,4", to.Row(0)["x"])
	})

	t.Run("should fail for a missing label column", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "WIDE",
			"to_object_alias": "WIDE",
			"pivot_mappings": [{"from_label_column": "Col4", "from_values_column": "Values"}]
		}`)

		_, err := m.Map(context.Background(), from, nil, Env{})
		assert.Error(t, err)
	})
}
