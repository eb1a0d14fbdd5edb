package mapperdefinition

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = `{
	objects: [
		{
			alias: ORDER
			uid_attribute: ID
			attributes: [
				{ alias: "ID", data_type: "number" }
				{ alias: "NAME" }
			]
		}
		{
			alias: CUSTOMER
			uid_attribute: ID
			attributes: [
				{ alias: "ID" }
				{ alias: "NAME" }
			]
		}
	]
}`

type memoryRepo struct {
	rows []models.MapperDefinition
}

func (r *memoryRepo) Upsert(_ context.Context, definition models.MapperDefinition) error {
	for i, row := range r.rows {
		if row.ID == definition.ID && row.TenantID == definition.TenantID && definition.IsActive {
			r.rows[i].IsActive = false
		}
	}
	r.rows = append(r.rows, definition)
	return nil
}

func (r *memoryRepo) find(tenantID, id string, active bool) (models.MapperDefinition, error) {
	var found *models.MapperDefinition
	for i, row := range r.rows {
		if row.ID != id || row.TenantID != tenantID || (active && !row.IsActive) {
			continue
		}
		if found == nil || row.Version > found.Version {
			found = &r.rows[i]
		}
	}
	if found == nil {
		return models.MapperDefinition{}, httperror.NewHTTPError(http.StatusNotFound, "mapper definition not found")
	}
	return *found, nil
}

func (r *memoryRepo) GetLatestMapperDefinition(_ context.Context, tenantID, id string) (models.MapperDefinition, error) {
	return r.find(tenantID, id, false)
}

func (r *memoryRepo) GetActiveMapperDefinition(_ context.Context, tenantID, id string) (models.MapperDefinition, error) {
	return r.find(tenantID, id, true)
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	model, err := meta.ParseModel([]byte(testModel))
	require.NoError(t, err)
	repo := &memoryRepo{}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewService(repo, model, logger), repo
}

func config(to string) uxon.Object {
	return uxon.Object{
		"from_object_alias": "ORDER",
		"to_object_alias":   to,
		"column_to_column_mappings": []any{
			map[string]any{"from": "NAME", "to": "NAME"},
		},
	}
}

func definition(name string, cfg uxon.Object) models.MapperDefinition {
	return models.MapperDefinition{
		MapperDefinitionFields: models.MapperDefinitionFields{
			TenantID: "tenant",
			UserID:   "user",
			Name:     name,
		},
		Config: cfg,
	}
}

func TestService_Create(t *testing.T) {
	t.Run("should store the first version", func(t *testing.T) {
		service, repo := newTestService(t)

		created, err := service.Create(context.Background(), definition("orders", config("CUSTOMER")))
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, created.ID, created.Key)
		assert.Equal(t, 1, created.Version)
		assert.True(t, created.IsActive)
		assert.Len(t, repo.rows, 1)
	})

	tests := []struct {
		name       string
		definition models.MapperDefinition
		message    string
	}{
		{"missing tenant", models.MapperDefinition{MapperDefinitionFields: models.MapperDefinitionFields{UserID: "u", Name: "n"}, Config: config("CUSTOMER")}, "tenant_id is required"},
		{"missing user", models.MapperDefinition{MapperDefinitionFields: models.MapperDefinitionFields{TenantID: "t", Name: "n"}, Config: config("CUSTOMER")}, "user_id is required"},
		{"missing name", definition("", config("CUSTOMER")), "name is required"},
		{"missing config", definition("orders", nil), "config is required"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("should reject %s", tt.name), func(t *testing.T) {
			service, repo := newTestService(t)

			_, err := service.Create(context.Background(), tt.definition)
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, repo.rows)
		})
	}

	t.Run("should reject an invalid mapper", func(t *testing.T) {
		service, repo := newTestService(t)

		_, err := service.Create(context.Background(), definition("orders", config("INVOICE")))
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
		assert.Empty(t, repo.rows)
	})
}

func TestService_Update(t *testing.T) {
	service, _ := newTestService(t)
	created, err := service.Create(context.Background(), definition("orders", config("CUSTOMER")))
	require.NoError(t, err)

	t.Run("should store the next active version", func(t *testing.T) {
		update := definition("", config("ORDER"))
		update.ID = created.ID

		updated, err := service.Update(context.Background(), update)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
		assert.Equal(t, "orders", updated.Name)
		assert.Equal(t, created.Key, updated.Key)

		active, err := service.GetActive(context.Background(), "tenant", created.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, active.Version)
		assert.Equal(t, "ORDER", active.Config.GetString("to_object_alias"))
	})

	t.Run("should fail for an unknown mapper", func(t *testing.T) {
		update := definition("orders", config("ORDER"))
		update.ID = "missing"

		_, err := service.Update(context.Background(), update)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})

	t.Run("should require an id", func(t *testing.T) {
		_, err := service.Update(context.Background(), definition("orders", config("ORDER")))
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}

func TestService_Build(t *testing.T) {
	service, _ := newTestService(t)

	mapper, err := service.Build(config("CUSTOMER"))
	require.NoError(t, err)
	assert.Equal(t, "CUSTOMER", mapper.ToObject().Alias)

	_, err = service.Build(uxon.Object{"from_object_alias": "ORDER"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}
