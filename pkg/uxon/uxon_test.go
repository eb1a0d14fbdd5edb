package uxon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHjson(t *testing.T) {
	obj, err := Parse([]byte(`{
		# comment
		from_object_alias: ORDER
		column_to_column_mappings: [
			{ from: "NAME", to: "TITLE" }
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "ORDER", obj.GetString("from_object_alias"))
	mappings := obj.GetObjects("column_to_column_mappings")
	require.Len(t, mappings, 1)
	assert.Equal(t, "TITLE", mappings[0].GetString("to"))
}

func TestFromAny(t *testing.T) {
	obj, err := FromAny(`{"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, obj["a"])

	obj, err = FromAny(nil)
	require.NoError(t, err)
	assert.Empty(t, obj)

	_, err = FromAny(12)
	assert.Error(t, err)

	_, err = Parse([]byte(`[1, 2]`))
	assert.Error(t, err)
}

func TestCopyIsDeep(t *testing.T) {
	original := Object{"nested": map[string]any{"x": 1.0}}
	copied := original.Copy()
	nested, ok := copied.GetObject("nested")
	require.True(t, ok)
	nested["x"] = 2.0

	assert.Equal(t, 1.0, original["nested"].(map[string]any)["x"])
}
