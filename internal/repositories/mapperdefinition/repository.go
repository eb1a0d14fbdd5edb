package mapperdefinition

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type MapperDefinitionRepository interface {
	Upsert(ctx context.Context, definition models.MapperDefinition) error
	GetLatestMapperDefinition(ctx context.Context, tenantID, id string) (models.MapperDefinition, error)
	GetActiveMapperDefinition(ctx context.Context, tenantID, id string) (models.MapperDefinition, error)
}

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new mapper definition repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert stores the definition version. Storing an active version deactivates all
// other versions of the same mapper.
func (r *Repository) Upsert(ctx context.Context, definition models.MapperDefinition) error {
	ctx, span := tracing.StartSpan(ctx, "MapperDefinitionRepository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	if definition.CreatedTS.IsZero() {
		definition.CreatedTS = now
	}

	fields := map[string]any{
		"id":        definition.ID,
		"tenant_id": definition.TenantID,
		"version":   definition.Version,
		"key":       definition.Key,
		"user_id":   definition.UserID,
	}

	row := FromMapperDefinition(definition)
	ib := mapperDefinitionStruct.InsertInto(mapperDefinitionTable, row)
	ub := ib.OnConflict("id", "tenant_id", "version")
	ub.OverwriteWith(upsertColumns, ub.Assign("updated_at", now))

	query, args := ib.Build()

	r.logger.WithContext(ctx).WithFields(fields).Info("Upserting mapper definition")
	return database.InTx(ctx, r.db, func(ctx context.Context, tx database.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error("error upserting mapper definition")
			return httperror.NewHTTPError(http.StatusInternalServerError, "error upserting mapper definition")
		}
		if !definition.IsActive {
			return nil
		}

		deactivate := database.NewUpdateBuilder()
		deactivate.Update(mapperDefinitionTable)
		deactivate.Set(
			deactivate.Assign("is_active", false),
			deactivate.Assign("updated_at", now),
		)
		deactivate.Where(
			deactivate.Equal("id", definition.ID),
			deactivate.Equal("tenant_id", definition.TenantID),
			deactivate.NotEqual("version", definition.Version),
			deactivate.Equal("is_active", true),
		)

		query, args := deactivate.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error("error deactivating previous mapper versions")
			return httperror.NewHTTPError(http.StatusInternalServerError, "error upserting mapper definition")
		}
		return nil
	})
}

// columns a repeated upsert of the same version overwrites
var upsertColumns = []string{
	database.QuoteIdent("key"), "name", "description", "tags", "is_active", "is_deleted", "config",
}

func (r *Repository) GetLatestMapperDefinition(ctx context.Context, tenantID, id string) (models.MapperDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "MapperDefinitionRepository.GetLatestMapperDefinition")
	defer span.End()

	sb := mapperDefinitionStruct.SelectFrom(mapperDefinitionTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_deleted", false),
	)
	sb.OrderBy("version").Desc()
	sb.Limit(1)

	return r.getOne(ctx, sb, tenantID, id, "mapper definition not found")
}

func (r *Repository) GetActiveMapperDefinition(ctx context.Context, tenantID, id string) (models.MapperDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "MapperDefinitionRepository.GetActiveMapperDefinition")
	defer span.End()

	sb := mapperDefinitionStruct.SelectFrom(mapperDefinitionTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_active", true),
		sb.Equal("is_deleted", false),
	)
	sb.OrderBy("version").Desc()
	sb.Limit(1)

	return r.getOne(ctx, sb, tenantID, id, "active mapper definition not found")
}

func (r *Repository) getOne(ctx context.Context, sb *database.SelectBuilder, tenantID, id, notFound string) (models.MapperDefinition, error) {
	query, args := sb.Build()

	fields := map[string]any{
		"id":        id,
		"tenant_id": tenantID,
	}
	r.logger.WithContext(ctx).WithFields(fields).Info("Getting mapper definition")

	var row MapperDefinitionRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			r.logger.WithContext(ctx).WithFields(fields).Warn(notFound)
			return models.MapperDefinition{}, httperror.NewHTTPError(http.StatusNotFound, notFound)
		}

		r.logger.WithContext(ctx).WithError(err).WithFields(fields).Error("error getting mapper definition")
		return models.MapperDefinition{}, httperror.NewHTTPError(http.StatusInternalServerError, "error getting mapper definition")
	}

	definition := ToMapperDefinition(&row)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        definition.ID,
		"tenant_id": definition.TenantID,
		"version":   definition.Version,
		"name":      definition.Name,
	}).Info("Successfully retrieved mapper definition")

	return definition, nil
}
