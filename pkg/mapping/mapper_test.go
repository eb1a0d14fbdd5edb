package mapping

import (
	"context"
	"strings"
	"testing"

	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/expression"
	"github.com/Ramsey-B/clover/pkg/logbook"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/reader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel() *meta.Model {
	return meta.MustNewModel(
		&meta.Object{
			Alias:             "ORDER",
			DataAddress:       "orders",
			UIDAttributeAlias: "ID",
			Attributes: []*meta.Attribute{
				{Alias: "ID", DataType: models.ValueTypeNumber},
				{Alias: "NAME"},
				{Alias: "STATUS"},
				{Alias: "TOTAL", DataType: models.ValueTypeNumber},
				{Alias: "DATA", DataType: models.ValueTypeJSON},
				{Alias: "ITEMS", DataType: models.ValueTypeSheet},
				{Alias: "CUSTOMER", RelatedObjectAlias: "CUSTOMER"},
				{Alias: "POSITIONS", RelatedObjectAlias: "POSITION", RelatedKeyAlias: "ORDER", Reverse: true},
			},
		},
		&meta.Object{
			Alias:             "POSITION",
			UIDAttributeAlias: "ID",
			Attributes: []*meta.Attribute{
				{Alias: "ID"},
				{Alias: "ORDER", RelatedObjectAlias: "ORDER"},
				{Alias: "PRODUCT"},
				{Alias: "QTY", DataType: models.ValueTypeNumber},
			},
		},
		&meta.Object{
			Alias:             "CUSTOMER",
			UIDAttributeAlias: "ID",
			Attributes: []*meta.Attribute{
				{Alias: "ID"},
				{Alias: "NAME"},
				{Alias: "CITY"},
			},
		},
		&meta.Object{
			Alias: "WIDE",
			Attributes: []*meta.Attribute{
				{Alias: "Col1"}, {Alias: "Col2"}, {Alias: "Col3"}, {Alias: "Col4"},
				{Alias: "Labels"}, {Alias: "Values"},
			},
		},
	)
}

func newSheet(t *testing.T, model *meta.Model, alias string, rows ...datasheet.Row) *datasheet.DataSheet {
	t.Helper()
	object, err := model.GetObject(alias)
	require.NoError(t, err)
	sheet := datasheet.New(object)
	sheet.AddRows(rows)
	return sheet
}

func mustParse(t *testing.T, model *meta.Model, config string) *Mapper {
	t.Helper()
	m, err := Parse(model, []byte(config))
	require.NoError(t, err)
	return m
}

func columnValues(sheet *datasheet.DataSheet, name string) []any {
	c, ok := sheet.GetColumn(name)
	if !ok {
		return nil
	}
	return c.Values()
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	e, ok := errors.AsMappingError(err)
	require.True(t, ok, "expected a mapping error, got %v", err)
	return e.Code
}

func TestParse(t *testing.T) {
	model := testModel()

	t.Run("should build mappings in list order", func(t *testing.T) {
		m := mustParse(t, model, `{
			// hjson comments are allowed
			from_object_alias: ORDER
			to_object_alias: CUSTOMER
			mappings: [
				{ "type": "column_to_column", "from": "ID", "to": "ID" }
			]
			column_to_filter_mappings: [
				{ "from": "CUSTOMER", "to": "ID" }
			]
			column_to_column_mappings: [
				{ "from": "NAME", "to": "NAME" }
			]
		}`)

		types := []string{}
		for _, mapping := range m.Mappings() {
			types = append(types, mapping.Type())
		}
		assert.Equal(t, []string{TypeColumnToColumn, TypeColumnToFilter, TypeColumnToColumn}, types)
		assert.Equal(t, "ORDER", m.FromObject().Alias)
		assert.Equal(t, "CUSTOMER", m.ToObject().Alias)
	})

	errorCases := []struct {
		name   string
		config string
	}{
		{name: "missing from object", config: `{"to_object_alias": "ORDER"}`},
		{name: "unknown object", config: `{"from_object_alias": "NOPE", "to_object_alias": "ORDER"}`},
		{name: "unknown mapping type", config: `{"from_object_alias": "ORDER", "to_object_alias": "ORDER", "mappings": [{"type": "teleport"}]}`},
		{name: "mapping without type", config: `{"from_object_alias": "ORDER", "to_object_alias": "ORDER", "mappings": [{"from": "ID"}]}`},
		{name: "missing from", config: `{"from_object_alias": "ORDER", "to_object_alias": "ORDER", "column_to_column_mappings": [{"to": "ID"}]}`},
		{name: "invalid formula", config: `{"from_object_alias": "ORDER", "to_object_alias": "ORDER", "column_to_column_mappings": [{"from": "=Concat(ID", "to": "NAME"}]}`},
		{name: "unknown function", config: `{"from_object_alias": "ORDER", "to_object_alias": "ORDER", "column_to_column_mappings": [{"from": "=Teleport(ID)", "to": "NAME"}]}`},
		{name: "unknown comparator", config: `{"from_object_alias": "ORDER", "to_object_alias": "ORDER", "column_to_filter_mappings": [{"from": "ID", "to": "ID", "comparator": "~~"}]}`},
		{name: "unknown join type", config: `{"from_object_alias": "ORDER", "to_object_alias": "ORDER", "joins": [{"type": "outer", "join_data_sheet": {"object_alias": "CUSTOMER"}, "join_input_data_on_attribute": "CUSTOMER", "join_data_sheet_on_attribute": "ID"}]}`},
		{name: "invalid json path", config: `{"from_object_alias": "ORDER", "to_object_alias": "ORDER", "json_to_rows_mappings": [{"from": "DATA", "json_path": "[[["}]}`},
		{name: "unknown aggregator", config: `{"from_object_alias": "ORDER", "to_object_alias": "ORDER", "pivot_mappings": [{"from_label_column": "NAME", "from_values_column": "TOTAL", "aggregator": "MEDIAN"}]}`},
		{name: "invalid uxon", config: `{from_object_alias: `},
	}
	for _, tt := range errorCases {
		t.Run("should reject "+tt.name, func(t *testing.T) {
			_, err := Parse(model, []byte(tt.config))
			require.Error(t, err)
			assert.True(t, errors.IsConfigurationError(err), "expected configuration error, got %v", err)
		})
	}

	t.Run("should name the failing mapping", func(t *testing.T) {
		_, err := Parse(model, []byte(`{"from_object_alias": "ORDER", "to_object_alias": "ORDER", "column_to_column_mappings": [{"from": "ID", "to": "ID"}, {"to": "ID"}]}`))
		e, ok := errors.AsMappingError(err)
		require.True(t, ok)
		assert.Equal(t, "column_to_column_mappings[1]", e.Mapping)
	})
}

func TestExportUxonRoundTrip(t *testing.T) {
	model := testModel()
	m := mustParse(t, model, `{
		"from_object_alias": "ORDER",
		"to_object_alias": "ORDER",
		"inherit_filters": false,
		"column_to_column_mappings": [{"from": "=Upper(NAME)", "to": "NAME", "create_row_in_empty_data": false}],
		"filter_to_filter_mappings": [{"from": "CUSTOMER", "to": "CUSTOMER", "to_comparator": "=="}],
		"mappings": [{"type": "unpivot", "from_columns": ["NAME", "STATUS"], "to_label_column": "DATA", "to_values_column": "TOTAL"}]
	}`)

	exported := m.ExportUxon()
	assert.Equal(t, false, exported["inherit_filters"])
	assert.NotContains(t, exported, "inherit_columns")

	generic, ok := exported[GenericListKey].([]any)
	require.True(t, ok)
	require.Len(t, generic, 1)
	assert.Equal(t, TypeUnpivot, generic[0].(map[string]any)["type"])

	again, err := FromUxon(model, exported)
	require.NoError(t, err)
	assert.Equal(t, exported, again.ExportUxon())
	assert.Len(t, again.Mappings(), 3)
}

func TestMapperInheritance(t *testing.T) {
	model := testModel()

	from := func() *datasheet.DataSheet {
		sheet := newSheet(t, model, "ORDER", datasheet.Row{"ID": 1, "NAME": "a"})
		sheet.Filters().AddCondition(datasheet.NewCondition(expression.MustParse("ID", sheet.Object()), datasheet.ComparatorEquals, 1))
		return sheet
	}

	t.Run("should inherit columns and filters for the same object", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "ORDER",
			"column_to_column_mappings": [{"from": "'new'", "to": "STATUS"}]
		}`)

		to, err := m.Map(context.Background(), from(), nil, Env{})
		require.NoError(t, err)
		assert.Equal(t, []string{"ID", "NAME", "STATUS"}, to.ColumnNames())
		assert.Equal(t, datasheet.Row{"ID": 1, "NAME": "a", "STATUS": "new"}, to.Row(0))
		assert.False(t, to.Filters().IsEmpty())
	})

	t.Run("should not inherit when switched off", func(t *testing.T) {
		m := mustParse(t, model, `{
			"from_object_alias": "ORDER",
			"to_object_alias": "ORDER",
			"inherit_columns": false,
			"inherit_filters": false
		}`)

		to, err := m.Map(context.Background(), from(), nil, Env{})
		require.NoError(t, err)
		assert.False(t, to.HasColumns())
		assert.True(t, to.Filters().IsEmpty())
	})

	t.Run("should not inherit between different objects", func(t *testing.T) {
		m := mustParse(t, model, `{"from_object_alias": "ORDER", "to_object_alias": "CUSTOMER"}`)

		to, err := m.Map(context.Background(), from(), nil, Env{})
		require.NoError(t, err)
		assert.Equal(t, "CUSTOMER", to.ObjectAlias())
		assert.False(t, to.HasColumns())
	})

	t.Run("should reject data of another object", func(t *testing.T) {
		m := mustParse(t, model, `{"from_object_alias": "CUSTOMER", "to_object_alias": "CUSTOMER"}`)

		_, err := m.Map(context.Background(), from(), nil, Env{})
		assert.True(t, errors.IsMappingFailedError(err))
	})
}

func TestMapperReadsMissingColumns(t *testing.T) {
	model := testModel()
	m := mustParse(t, model, `{
		"from_object_alias": "ORDER",
		"to_object_alias": "CUSTOMER",
		"column_to_column_mappings": [{"from": "NAME", "to": "NAME"}]
	}`)
	source := newSheet(t, model, "ORDER",
		datasheet.Row{"ID": 1, "NAME": "a"},
		datasheet.Row{"ID": 2, "NAME": "b"},
		datasheet.Row{"ID": 3, "NAME": "c"},
	)
	env := Env{Reader: reader.NewMemory(source)}

	t.Run("should read missing columns by UID", func(t *testing.T) {
		from := newSheet(t, model, "ORDER", datasheet.Row{"ID": 2}, datasheet.Row{"ID": 1})

		to, err := m.Map(context.Background(), from, nil, env)
		require.NoError(t, err)
		assert.Equal(t, []any{"b", "a"}, columnValues(to, "NAME"))
		assert.Equal(t, []any{"b", "a"}, columnValues(from, "NAME"))
	})

	t.Run("should fail without read", func(t *testing.T) {
		from := newSheet(t, model, "ORDER", datasheet.Row{"ID": 1})

		_, err := m.Map(context.Background(), from, nil, env, WithoutRead())
		require.Error(t, err)
		assert.Equal(t, errors.CodeFromAttributeNotFound, errorCode(t, err))
	})

	t.Run("should report read failures", func(t *testing.T) {
		from := newSheet(t, model, "ORDER", datasheet.Row{"ID": 1})

		_, err := m.Map(context.Background(), from, nil, Env{Reader: reader.NewMemory()})
		require.Error(t, err)
		assert.Equal(t, errors.CodeReadFailed, errorCode(t, err))
	})
}

func TestMapperLogbook(t *testing.T) {
	model := testModel()
	m := mustParse(t, model, `{
		"from_object_alias": "ORDER",
		"to_object_alias": "CUSTOMER",
		"column_to_column_mappings": [{"from": "NAME", "to": "NAME"}]
	}`)
	book := logbook.NewMemory("test")

	_, err := m.Map(context.Background(), newSheet(t, model, "ORDER", datasheet.Row{"ID": 1, "NAME": "a"}), nil, Env{Logbook: book})
	require.NoError(t, err)

	text := book.String()
	assert.Contains(t, text, "Mapping ORDER to CUSTOMER")
	assert.Contains(t, text, "column_to_column: NAME -> NAME")
	assert.True(t, strings.Contains(text, "Copied 1 values"), text)
}

func TestTypes(t *testing.T) {
	types := Types()
	assert.Len(t, types, len(factories))
	for _, kind := range types {
		assert.Contains(t, factories, kind)
	}
}
