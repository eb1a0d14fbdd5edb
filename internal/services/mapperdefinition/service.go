package mapperdefinition

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/internal/repositories/mapperdefinition"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/mapping"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/google/uuid"
)

type Service struct {
	logger ectologger.Logger
	repo   mapperdefinition.MapperDefinitionRepository
	model  *meta.Model
}

func NewService(repo mapperdefinition.MapperDefinitionRepository, model *meta.Model, logger ectologger.Logger) *Service {
	return &Service{
		logger: logger,
		repo:   repo,
		model:  model,
	}
}

func (s *Service) Model() *meta.Model {
	return s.model
}

// Build compiles a mapper configuration. Configuration errors become 400 errors.
func (s *Service) Build(config uxon.Object) (*mapping.Mapper, error) {
	if len(config) == 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "config is required")
	}

	mapper, err := mapping.FromUxon(s.model, config)
	if err != nil {
		if mappingErr, ok := errors.AsMappingError(err); ok {
			return nil, mappingErr.ToHTTPError()
		}
		return nil, httperror.WrapError(http.StatusBadRequest, err)
	}
	return mapper, nil
}

func (s *Service) Create(ctx context.Context, definition models.MapperDefinition) (models.MapperDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "mapperdefinition.Create")
	defer span.End()

	definition.ID = uuid.New().String()
	definition.CreatedTS = time.Now().UTC()
	definition.UpdatedTS = time.Now().UTC()
	definition.IsActive = true
	definition.Version = 1

	if definition.TenantID == "" {
		return models.MapperDefinition{}, httperror.NewHTTPError(http.StatusBadRequest, "tenant_id is required")
	}

	if definition.UserID == "" {
		return models.MapperDefinition{}, httperror.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	if definition.Key == "" {
		definition.Key = definition.ID
	}

	if definition.Name == "" {
		return models.MapperDefinition{}, httperror.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	if _, err := s.Build(definition.Config); err != nil {
		return models.MapperDefinition{}, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        definition.ID,
		"name":      definition.Name,
		"version":   definition.Version,
		"tenant_id": definition.TenantID,
		"user_id":   definition.UserID,
	}).Info("creating mapper definition")
	return definition, s.repo.Upsert(ctx, definition)
}

// Update stores the definition as the next version of the mapper and activates it.
func (s *Service) Update(ctx context.Context, definition models.MapperDefinition) (models.MapperDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "mapperdefinition.Update")
	defer span.End()

	if definition.ID == "" {
		return models.MapperDefinition{}, httperror.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	if definition.TenantID == "" {
		return models.MapperDefinition{}, httperror.NewHTTPError(http.StatusBadRequest, "tenant_id is required")
	}

	if definition.UserID == "" {
		return models.MapperDefinition{}, httperror.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	latest, err := s.repo.GetLatestMapperDefinition(ctx, definition.TenantID, definition.ID)
	if err != nil {
		return models.MapperDefinition{}, err
	}

	if _, err = s.Build(definition.Config); err != nil {
		return models.MapperDefinition{}, err
	}

	definition.Version = latest.Version + 1
	definition.CreatedTS = time.Now().UTC()
	definition.UpdatedTS = time.Now().UTC()
	definition.IsActive = true
	if definition.Key == "" {
		definition.Key = latest.Key
	}
	if definition.Name == "" {
		definition.Name = latest.Name
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"id":        definition.ID,
		"name":      definition.Name,
		"version":   definition.Version,
		"tenant_id": definition.TenantID,
		"user_id":   definition.UserID,
	}).Info("updating mapper definition")
	return definition, s.repo.Upsert(ctx, definition)
}

func (s *Service) GetActive(ctx context.Context, tenantID, id string) (models.MapperDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "mapperdefinition.GetActive")
	defer span.End()

	if tenantID == "" {
		return models.MapperDefinition{}, httperror.NewHTTPError(http.StatusBadRequest, "tenant_id is required")
	}

	if id == "" {
		return models.MapperDefinition{}, httperror.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	return s.repo.GetActiveMapperDefinition(ctx, tenantID, id)
}
