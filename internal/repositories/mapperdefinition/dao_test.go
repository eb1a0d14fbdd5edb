package mapperdefinition

import (
	"database/sql"
	"testing"
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapperDefinitionRow(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	definition := models.MapperDefinition{
		MapperDefinitionFields: models.MapperDefinitionFields{
			ID:        "6f9d1c1e-0000-4000-8000-000000000001",
			TenantID:  "tenant",
			UserID:    "user",
			Version:   2,
			Key:       "orders-to-customers",
			Name:      "Orders to customers",
			IsActive:  true,
			CreatedTS: created,
		},
		Config: uxon.Object{"from_object_alias": "ORDER"},
	}

	t.Run("should convert to a row and back", func(t *testing.T) {
		row := FromMapperDefinition(definition)
		assert.True(t, row.ID.Valid)
		assert.False(t, row.Description.Valid)
		assert.False(t, row.UpdatedTS.Valid)

		got := ToMapperDefinition(row)
		assert.Equal(t, definition.MapperDefinitionFields.Key, got.Key)
		assert.Equal(t, 2, got.Version)
		assert.Equal(t, created, got.CreatedTS)
		assert.Equal(t, []string{}, got.Tags)
		assert.Equal(t, "ORDER", got.Config.GetString("from_object_alias"))
	})

	t.Run("should store the config as jsonb", func(t *testing.T) {
		value, err := FromMapperDefinition(definition).Config.Value()
		require.NoError(t, err)
		assert.JSONEq(t, `{"from_object_alias": "ORDER"}`, string(value.([]byte)))

		var scanned database.JSONB[uxon.Object]
		require.NoError(t, scanned.Scan(`{"to_object_alias": "CUSTOMER"}`))
		assert.Equal(t, "CUSTOMER", scanned.GetValue().GetString("to_object_alias"))
	})

	t.Run("should upsert on the versioned key", func(t *testing.T) {
		ib := mapperDefinitionStruct.InsertInto(mapperDefinitionTable, FromMapperDefinition(definition))
		ub := ib.OnConflict("id", "tenant_id", "version")
		ub.OverwriteWith([]string{"config", database.QuoteIdent("key")})

		query, args := ib.Build()
		assert.Contains(t, query, "INSERT INTO mapper_definitions")
		assert.Contains(t, query, "ON CONFLICT (id, tenant_id, version) DO UPDATE")
		assert.Contains(t, query, "config = EXCLUDED.config")
		assert.Contains(t, query, `"key" = EXCLUDED."key"`)
		assert.Contains(t, args, sql.NullString{String: "orders-to-customers", Valid: true})
	})
}
