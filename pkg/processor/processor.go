package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	stemcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/datasheet"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logbook"
	"github.com/Ramsey-B/clover/pkg/mapping"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/reader"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/variables"
	"github.com/google/uuid"
)

const metricsSource = "kafka"

// MapperLoader returns compiled mappers by id
type MapperLoader interface {
	GetCompiledMapper(ctx context.Context, tenantID, mapperID string) (*CompiledMapper, error)
}

// Publisher sends results to Kafka
type Publisher interface {
	PublishToTopic(ctx context.Context, topic string, result *kafka.MappingResult) error
}

// VariableStoreFactory creates the variable store of one request, seeded with the
// request's variables.
type VariableStoreFactory func(ctx context.Context, requestID string, initial map[string]any) (variables.Store, error)

// MemoryVariables keeps variables in memory for the duration of the request.
func MemoryVariables(_ context.Context, _ string, initial map[string]any) (variables.Store, error) {
	return variables.NewMemory(initial), nil
}

type ProcessorConfig struct {
	// WorkerCount is the number of parallel processing workers
	WorkerCount int

	// ProcessTimeout bounds a single request
	ProcessTimeout time.Duration

	// OutputTopic receives successful results
	OutputTopic string

	// ErrorTopic, when set, also receives every failed result
	ErrorTopic string
}

func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		WorkerCount:    4,
		ProcessTimeout: 30 * time.Second,
		OutputTopic:    "mapped-sheets",
		ErrorTopic:     "mapping-errors",
	}
}

// Processor runs mapping requests from Kafka through stored mappers.
type Processor struct {
	config    ProcessorConfig
	loader    MapperLoader
	publisher Publisher
	reader    reader.Reader
	variables VariableStoreFactory
	logger    ectologger.Logger

	jobs chan job
	wg   sync.WaitGroup

	messagesProcessed int64
	messagesFailed    int64
	mu                sync.Mutex
}

type job struct {
	ctx context.Context
	msg *kafka.ReceivedMessage
}

func NewProcessor(
	config ProcessorConfig,
	loader MapperLoader,
	publisher Publisher,
	dataReader reader.Reader,
	variableStores VariableStoreFactory,
	logger ectologger.Logger,
) *Processor {
	if config.WorkerCount < 1 {
		config.WorkerCount = 1
	}
	if variableStores == nil {
		variableStores = MemoryVariables
	}

	return &Processor{
		config:    config,
		loader:    loader,
		publisher: publisher,
		reader:    dataReader,
		variables: variableStores,
		logger:    logger,
	}
}

// Start launches the workers. Messages handed to MessageHandler are processed until
// Stop is called.
func (p *Processor) Start(ctx context.Context) {
	p.jobs = make(chan job, p.config.WorkerCount)
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
	p.logger.WithContext(ctx).Infof("Processor started with %d workers", p.config.WorkerCount)
}

// Stop waits for queued requests to finish. The consumer must be stopped first.
func (p *Processor) Stop() {
	if p.jobs == nil {
		return
	}
	close(p.jobs)
	p.wg.Wait()
	p.jobs = nil
	p.logger.Info("Processor stopped")
}

func (p *Processor) work(ctx context.Context) {
	defer p.wg.Done()
	for j := range p.jobs {
		metrics.WorkerJobsInFlight.Inc()
		if _, err := p.ProcessMessage(j.ctx, j.msg); err != nil {
			p.logger.WithContext(j.ctx).WithError(err).Error("Failed to process mapping request")
		}
		metrics.WorkerJobsInFlight.Dec()
	}
}

// MessageHandler queues messages for the workers. Without started workers the
// message is processed inline.
func (p *Processor) MessageHandler() kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.ReceivedMessage) error {
		if p.jobs == nil {
			_, err := p.ProcessMessage(ctx, msg)
			return err
		}

		select {
		case p.jobs <- job{ctx: context.WithoutCancel(ctx), msg: msg}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ProcessMessage runs one request and publishes its result. The returned error is
// only set if the result could not be published.
func (p *Processor) ProcessMessage(ctx context.Context, msg *kafka.ReceivedMessage) (*kafka.MappingResult, error) {
	ctx = tracing.ContextWithTraceParent(ctx, msg.Headers.TraceParent)
	ctx, span := tracing.StartSpan(ctx, "processor.ProcessMessage")
	defer span.End()

	if p.config.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ProcessTimeout)
		defer cancel()
	}

	req := msg.Request
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	ctx = stemcontext.SetRequestID(ctx, req.RequestID)
	ctx = stemcontext.SetTenantID(ctx, req.TenantID)
	ctx = stemcontext.SetMapperID(ctx, req.MapperID)

	start := time.Now()
	result := p.run(ctx, req)
	result.Timestamp = time.Now().UTC()
	result.TraceID = tracing.GetTraceID(ctx)
	result.SpanID = tracing.GetSpanID(ctx)

	rows := 0
	if result.Status == kafka.StatusSuccess {
		p.incrementProcessed()
		if rowList, ok := result.ToSheet["rows"].([]any); ok {
			rows = len(rowList)
		}
	} else {
		p.incrementFailed()
		metrics.RecordMapperError(metricsSource, result.ErrorCode)
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"mapper_id":  req.MapperID,
			"request_id": req.RequestID,
			"code":       result.ErrorCode,
		}).Warnf("Mapping request failed: %s", result.Error)
	}
	metrics.RecordMapperRun(req.TenantID, metricsSource, result.Status, rows, time.Since(start).Seconds())

	return result, p.publish(ctx, result)
}

// InvalidMessageHandler reports requests the consumer could not accept as failed
// results, so producers learn about them.
func (p *Processor) InvalidMessageHandler() kafka.InvalidMessageHandler {
	return func(ctx context.Context, msg *kafka.ReceivedMessage, err error) {
		ctx = tracing.ContextWithTraceParent(ctx, msg.Headers.TraceParent)
		ctx, span := tracing.StartSpan(ctx, "processor.InvalidMessage")
		defer span.End()

		result := &kafka.MappingResult{
			TenantID:  msg.Headers.TenantID,
			RequestID: msg.Headers.RequestID,
			MapperID:  msg.Headers.MapperID,
			Status:    kafka.StatusFailed,
			Error:     fmt.Sprintf("parse_request: %s", err.Error()),
			ErrorCode: errors.CodeInvalidRequest,
			Timestamp: time.Now().UTC(),
			TraceID:   tracing.GetTraceID(ctx),
			SpanID:    tracing.GetSpanID(ctx),
		}
		if req := msg.Request; req != nil {
			result.TenantID = req.TenantID
			result.RequestID = req.RequestID
			result.MapperID = req.MapperID
		}

		p.incrementFailed()
		metrics.RecordMapperError(metricsSource, errors.CodeInvalidRequest)
		if pubErr := p.publish(ctx, result); pubErr != nil {
			p.logger.WithContext(ctx).WithError(pubErr).Errorf("Failed to report invalid message at offset %d", msg.Offset)
		}
	}
}

func (p *Processor) publish(ctx context.Context, result *kafka.MappingResult) error {
	if p.publisher == nil {
		return nil
	}

	topic := p.config.OutputTopic
	if result.Status != kafka.StatusSuccess && p.config.ErrorTopic != "" {
		topic = p.config.ErrorTopic
	}
	if err := p.publisher.PublishToTopic(ctx, topic, result); err != nil {
		metrics.RecordKafkaPublish(topic, "error")
		return fmt.Errorf("failed to publish result: %w", err)
	}
	metrics.RecordKafkaPublish(topic, "success")
	return nil
}

func (p *Processor) run(ctx context.Context, req *kafka.MappingRequest) *kafka.MappingResult {
	result := &kafka.MappingResult{
		TenantID:  req.TenantID,
		RequestID: req.RequestID,
		MapperID:  req.MapperID,
		Status:    kafka.StatusSuccess,
	}
	fail := func(stage string, err error) *kafka.MappingResult {
		result.Status = kafka.StatusFailed
		result.Error = fmt.Sprintf("%s: %s", stage, err.Error())
		if mappingErr, ok := errors.AsMappingError(err); ok {
			result.ErrorCode = mappingErr.Code
		}
		return result
	}

	compiled, err := p.loader.GetCompiledMapper(ctx, req.TenantID, req.MapperID)
	if err != nil {
		return fail("load_mapper", err)
	}
	result.MapperVersion = compiled.Definition.Version
	mapper := compiled.Mapper

	from, err := datasheet.FromUxonForObject(mapper.FromObject(), req.FromSheet)
	if err != nil {
		return fail("from_sheet", err)
	}

	var to *datasheet.DataSheet
	if len(req.ToSheet) > 0 {
		if to, err = datasheet.FromUxonForObject(mapper.ToObject(), req.ToSheet); err != nil {
			return fail("to_sheet", err)
		}
	}

	store, err := p.variables(ctx, req.RequestID, req.Variables)
	if err != nil {
		return fail("variables", err)
	}

	env := mapping.Env{
		Logbook:   logbook.NewLogger(ctx, p.logger),
		Variables: store,
		Reader:    p.reader,
	}

	mapped, err := mapper.Map(ctx, from, to, env)
	if err != nil {
		return fail("execute_mapper", err)
	}

	result.ToSheet = mapped.ExportUxon()
	if memory, ok := store.(*variables.Memory); ok {
		result.Variables = memory.All()
	}
	return result
}

func (p *Processor) incrementProcessed() {
	p.mu.Lock()
	p.messagesProcessed++
	p.mu.Unlock()
}

func (p *Processor) incrementFailed() {
	p.mu.Lock()
	p.messagesFailed++
	p.mu.Unlock()
}

type Stats struct {
	MessagesProcessed int64
	MessagesFailed    int64
}

func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		MessagesProcessed: p.messagesProcessed,
		MessagesFailed:    p.messagesFailed,
	}
}
