package meta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = `{
	objects: [
		{
			alias: ORDER
			data_address: orders
			uid_attribute: ID
			attributes: [
				{ alias: "ID", data_type: "number" }
				{ alias: "NAME" }
				{ alias: "TAGS", value_list_delimiter: ";" }
				{ alias: "CUSTOMER", related_object: "CUSTOMER" }
				{ alias: "POSITIONS", related_object: "ORDER_POS", related_key: "ORDER", reverse: true }
			]
		}
		{
			alias: CUSTOMER
			uid_attribute: ID
			attributes: [
				{ alias: "ID" }
				{ alias: "NAME", data_address: "customer_name" }
			]
		}
		{
			alias: ORDER_POS
			attributes: [
				{ alias: "ORDER", related_object: "ORDER" }
				{ alias: "AMOUNT", data_type: "Number" }
			]
		}
	]
}`

func TestParseModel(t *testing.T) {
	model, err := ParseModel([]byte(testModel))
	require.NoError(t, err)

	order, err := model.GetObject("order")
	require.NoError(t, err)
	assert.Equal(t, "orders", order.GetDataAddress())
	assert.True(t, order.HasUIDAttribute())

	uid, ok := order.GetUIDAttribute()
	require.True(t, ok)
	assert.Equal(t, models.ValueTypeNumber, uid.GetDataType())

	pos, err := model.GetObject("ORDER_POS")
	require.NoError(t, err)
	amount, err := pos.GetAttribute("AMOUNT")
	require.NoError(t, err)
	assert.Equal(t, models.ValueTypeNumber, amount.DataType)
}

func TestRelationPaths(t *testing.T) {
	model, err := ParseModel([]byte(testModel))
	require.NoError(t, err)
	order, _ := model.GetObject("ORDER")

	attr, err := order.GetAttribute("CUSTOMER__NAME")
	require.NoError(t, err)
	assert.Equal(t, "NAME", attr.Alias)
	assert.Equal(t, "CUSTOMER", attr.RelationPath)
	assert.Equal(t, "CUSTOMER__NAME", attr.AliasWithRelationPath())
	assert.Equal(t, "customer_name", attr.GetDataAddress())
	assert.Equal(t, "CUSTOMER", attr.Object().Alias)

	related, err := order.GetRelatedObject("POSITIONS")
	require.NoError(t, err)
	assert.Equal(t, "ORDER_POS", related.Alias)

	back, err := order.GetRelatedObject("POSITIONS__ORDER")
	require.NoError(t, err)
	assert.True(t, back.Is(order))

	_, err = order.GetRelatedObject("NAME")
	assert.Error(t, err)
	assert.False(t, order.HasAttribute("CUSTOMER__MISSING"))
	assert.False(t, order.HasAttribute("NAME__X"))
}

func TestAttributeDefaults(t *testing.T) {
	model, err := ParseModel([]byte(testModel))
	require.NoError(t, err)
	order, _ := model.GetObject("ORDER")

	tags, err := order.GetAttribute("TAGS")
	require.NoError(t, err)
	assert.Equal(t, ";", tags.GetValueListDelimiter())

	name, err := order.GetAttribute("NAME")
	require.NoError(t, err)
	assert.Equal(t, DefaultValueListDelimiter, name.GetValueListDelimiter())
	assert.Equal(t, models.ValueTypeAny, name.GetDataType())
	assert.Equal(t, "name", name.GetDataAddress())
}

func TestInvalidModels(t *testing.T) {
	_, err := NewModel(&Object{Alias: "X", UIDAttributeAlias: "ID"})
	assert.Error(t, err)

	_, err = NewModel(&Object{Alias: "X", Attributes: []*Attribute{{Alias: "A__B"}}})
	assert.Error(t, err)

	_, err = NewModel(&Object{Alias: "X", Attributes: []*Attribute{{Alias: "A", DataType: "blob"}}})
	assert.Error(t, err)

	_, err = ParseModel([]byte(`{ objects: [ { name: "nameless" } ] }`))
	assert.Error(t, err)
}

func TestLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.hjson")
	require.NoError(t, os.WriteFile(path, []byte(testModel), 0o600))

	model, err := LoadModel(path)
	require.NoError(t, err)
	assert.True(t, model.HasObject("CUSTOMER"))
	assert.Len(t, model.Objects(), 3)

	_, err = LoadModel(filepath.Join(t.TempDir(), "missing.hjson"))
	assert.Error(t, err)
}

func TestShippedModel(t *testing.T) {
	model, err := LoadModel(filepath.Join("..", "..", "model.hjson"))
	require.NoError(t, err)
	assert.Len(t, model.Objects(), 3)

	order, err := model.GetObject("ORDER")
	require.NoError(t, err)

	city, err := order.GetAttribute("CUSTOMER__CITY")
	require.NoError(t, err)
	assert.Equal(t, "city", city.GetDataAddress())

	positions, err := order.GetRelatedObject("POSITIONS")
	require.NoError(t, err)
	assert.Equal(t, "order_positions", positions.GetDataAddress())

	tags, err := order.GetAttribute("TAGS")
	require.NoError(t, err)
	assert.Equal(t, ";", tags.GetValueListDelimiter())
	assert.Equal(t, "tags", tags.GetDataAddress())
}
