package mapper

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/internal/services/mapperdefinition"
	stemcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/logbook"
	"github.com/Ramsey-B/clover/pkg/mapping"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/reader"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
	"github.com/Ramsey-B/clover/pkg/uxon"
	"github.com/Ramsey-B/clover/pkg/variables"
	"github.com/labstack/echo/v4"
)

const metricsSource = "http"

// MapperCache serves compiled active mappers and drops them when a new version is saved.
type MapperCache interface {
	processor.MapperLoader
	Invalidate(tenantID, mapperID string)
}

type Handler struct {
	service   *mapperdefinition.Service
	cache     MapperCache
	reader    reader.Reader
	variables processor.VariableStoreFactory
	logger    ectologger.Logger
}

func NewHandler(
	service *mapperdefinition.Service,
	cache MapperCache,
	dataReader reader.Reader,
	variableFactory processor.VariableStoreFactory,
	logger ectologger.Logger,
) *Handler {
	if variableFactory == nil {
		variableFactory = processor.MemoryVariables
	}
	return &Handler{
		service:   service,
		cache:     cache,
		reader:    dataReader,
		variables: variableFactory,
		logger:    logger,
	}
}

type CreateMapperRequest struct {
	Key         string      `json:"key"`
	Name        string      `json:"name" validate:"required"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
	Config      uxon.Object `json:"config" validate:"required"`
}

type UpdateMapperRequest struct {
	ID string `param:"id" validate:"required"`
	CreateMapperRequest
}

type ExecuteRequest struct {
	ID        string         `param:"id" validate:"required"`
	FromSheet uxon.Object    `json:"from_sheet" validate:"required"`
	ToSheet   uxon.Object    `json:"to_sheet"`
	Variables map[string]any `json:"variables"`
}

type TestRequest struct {
	Mapper    uxon.Object    `json:"mapper" validate:"required"`
	FromSheet uxon.Object    `json:"from_sheet" validate:"required"`
	ToSheet   uxon.Object    `json:"to_sheet"`
	Variables map[string]any `json:"variables"`
}

type ExecuteResponse struct {
	MapperID      string         `json:"mapper_id,omitempty"`
	MapperVersion int            `json:"mapper_version,omitempty"`
	ToSheet       uxon.Object    `json:"to_sheet"`
	FromSheet     uxon.Object    `json:"from_sheet"`
	Variables     map[string]any `json:"variables,omitempty"`
	Logbook       []string       `json:"logbook"`
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Create)
	g.POST("/test", h.Test)
	g.GET("/:id", h.GetActive)
	g.PUT("/:id", h.Update)
	g.POST("/:id/execute", h.Execute)
}

func (h *Handler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "mapper.Create")
	defer span.End()

	req, err := utils.BindRequest[CreateMapperRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.Create(ctx, toDefinition(ctx, "", req))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "mapper.Update")
	defer span.End()

	req, err := utils.BindRequest[UpdateMapperRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.Update(ctx, toDefinition(ctx, req.ID, req.CreateMapperRequest))
	if err != nil {
		return err
	}

	if h.cache != nil {
		h.cache.Invalidate(result.TenantID, result.ID)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetActive(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "mapper.GetActive")
	defer span.End()

	result, err := h.service.GetActive(ctx, stemcontext.GetTenantID(ctx), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Execute(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "mapper.Execute")
	defer span.End()

	req, err := utils.BindRequest[ExecuteRequest](c)
	if err != nil {
		return err
	}

	tenantID := stemcontext.GetTenantID(ctx)
	ctx = stemcontext.SetMapperID(ctx, req.ID)

	compiled, err := h.cache.GetCompiledMapper(ctx, tenantID, req.ID)
	if err != nil {
		if mappingErr, ok := errors.AsMappingError(err); ok {
			return mappingErr.ToHTTPError()
		}
		return err
	}

	response, err := h.run(ctx, tenantID, compiled.Mapper, req.FromSheet, req.ToSheet, req.Variables)
	if err != nil {
		return err
	}
	response.MapperID = compiled.Definition.ID
	response.MapperVersion = compiled.Definition.Version

	return c.JSON(http.StatusOK, response)
}

// Test runs an inline mapper configuration without saving it.
func (h *Handler) Test(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "mapper.Test")
	defer span.End()

	req, err := utils.BindRequest[TestRequest](c)
	if err != nil {
		return err
	}

	mapper, err := h.service.Build(req.Mapper)
	if err != nil {
		return err
	}

	response, err := h.run(ctx, stemcontext.GetTenantID(ctx), mapper, req.FromSheet, req.ToSheet, req.Variables)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, response)
}

func (h *Handler) run(ctx context.Context, tenantID string, mapper *mapping.Mapper, fromUxon, toUxon uxon.Object, initial map[string]any) (*ExecuteResponse, error) {
	start := time.Now()

	response, err := h.execute(ctx, mapper, fromUxon, toUxon, initial)
	if err != nil {
		code := ""
		if mappingErr, ok := errors.AsMappingError(err); ok {
			code = mappingErr.Code
			err = mappingErr.ToHTTPError()
		}
		metrics.RecordMapperError(metricsSource, code)
		metrics.RecordMapperRun(tenantID, metricsSource, "failed", 0, time.Since(start).Seconds())
		return nil, err
	}

	rows := 0
	if rowList, ok := response.ToSheet["rows"].([]any); ok {
		rows = len(rowList)
	}
	metrics.RecordMapperRun(tenantID, metricsSource, "success", rows, time.Since(start).Seconds())

	return response, nil
}

func (h *Handler) execute(ctx context.Context, mapper *mapping.Mapper, fromUxon, toUxon uxon.Object, initial map[string]any) (*ExecuteResponse, error) {
	from, err := datasheet.FromUxonForObject(mapper.FromObject(), fromUxon)
	if err != nil {
		return nil, httperror.WrapError(http.StatusBadRequest, err)
	}

	var to *datasheet.DataSheet
	if len(toUxon) > 0 {
		if to, err = datasheet.FromUxonForObject(mapper.ToObject(), toUxon); err != nil {
			return nil, httperror.WrapError(http.StatusBadRequest, err)
		}
	}

	requestID := stemcontext.GetRequestID(ctx)
	store, err := h.variables(ctx, requestID, initial)
	if err != nil {
		return nil, err
	}

	book := logbook.NewMemory("mapper " + requestID)
	env := mapping.Env{
		Logbook:   logbook.Multi{book, logbook.NewLogger(ctx, h.logger)},
		Variables: store,
		Reader:    h.reader,
	}

	mapped, err := mapper.Map(ctx, from, to, env)
	if err != nil {
		return nil, err
	}

	response := &ExecuteResponse{
		ToSheet:   mapped.ExportUxon(),
		FromSheet: from.ExportUxon(),
		Logbook:   book.Lines(),
	}
	if memory, ok := store.(*variables.Memory); ok {
		response.Variables = memory.All()
	}
	return response, nil
}

func toDefinition(ctx context.Context, id string, req CreateMapperRequest) models.MapperDefinition {
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.MapperDefinition{
		MapperDefinitionFields: models.MapperDefinitionFields{
			ID:          id,
			TenantID:    stemcontext.GetTenantID(ctx),
			UserID:      stemcontext.GetUserID(ctx),
			Key:         req.Key,
			Name:        req.Name,
			Description: req.Description,
			Tags:        tags,
		},
		Config: req.Config,
	}
}
