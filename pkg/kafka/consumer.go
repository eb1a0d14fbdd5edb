package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is called for each message received from Kafka
type MessageHandler func(ctx context.Context, msg *ReceivedMessage) error

// ReceivedMessage is a Kafka message with its decoded request.
type ReceivedMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   MessageHeaders

	Request *MappingRequest
}

// InvalidMessageHandler is told about messages that could not be turned into a
// valid request. They are committed afterwards.
type InvalidMessageHandler func(ctx context.Context, msg *ReceivedMessage, err error)

const (
	fetchBackoffBase = 100 * time.Millisecond
	fetchBackoffMax  = 5 * time.Second
)

type Consumer struct {
	reader  *kafka.Reader
	logger  ectologger.Logger
	config  ConsumerConfig
	handler MessageHandler
	invalid InvalidMessageHandler
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running bool
	mu      sync.Mutex
}

func NewConsumer(config ConsumerConfig, logger ectologger.Logger) (*Consumer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	reader := kafka.NewReader(config.readerConfig())

	return &Consumer{
		reader: reader,
		logger: logger,
		config: config,
	}, nil
}

// OnInvalid sets the handler for undecodable or incomplete requests. It must be
// called before Start.
func (c *Consumer) OnInvalid(handler InvalidMessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalid = handler
}

// Start consumes in the background until Stop is called or ctx is done.
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer is already running")
	}
	c.running = true
	c.handler = handler
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Infof("Kafka consumer started for topic %s (group: %s)", c.config.Topic, c.config.GroupID)
	return nil
}

func (c *Consumer) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}

	c.logger.Info("Kafka consumer stopped")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	failures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			wait := fetchBackoff(failures)
			c.logger.WithError(err).Errorf("Failed to fetch message, retrying in %s", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		failures = 0

		received, err := ParseMessage(msg)
		if err != nil {
			metrics.RecordKafkaConsume(msg.Topic, "invalid")
			c.logger.WithError(err).Warnf("Invalid message at offset %d", msg.Offset)
			if c.invalid != nil {
				c.invalid(ctx, received, err)
			}
			// bad messages are committed so the partition does not stall
			c.commit(ctx, msg)
			continue
		}
		metrics.RecordKafkaConsume(msg.Topic, "accepted")

		// the handler reports its own failures to the error topic
		if err := c.handler(ctx, received); err != nil {
			c.logger.WithError(err).Errorf("Handler failed for message at offset %d", msg.Offset)
		}
		c.commit(ctx, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.WithError(err).Errorf("Failed to commit message at offset %d", msg.Offset)
	}
}

func fetchBackoff(failures int) time.Duration {
	wait := fetchBackoffBase << min(failures-1, 6)
	return min(wait, fetchBackoffMax)
}

// ParseMessage decodes a raw Kafka message. Tenant and request ids fall back to
// the message headers. The returned message is set even when the request is
// invalid, with Request nil if the payload could not be decoded.
func ParseMessage(msg kafka.Message) (*ReceivedMessage, error) {
	received := &ReceivedMessage{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
	}

	headers := make([]Header, len(msg.Headers))
	for i, h := range msg.Headers {
		headers[i] = Header{Key: h.Key, Value: h.Value}
	}
	received.Headers = ExtractHeaders(headers)

	request, err := DecodeMappingRequest(msg.Value)
	if err != nil {
		return received, fmt.Errorf("failed to decode mapping request: %w", err)
	}
	if request.TenantID == "" {
		request.TenantID = received.Headers.TenantID
	}
	if request.RequestID == "" {
		request.RequestID = received.Headers.RequestID
	}
	if request.MapperID == "" {
		request.MapperID = received.Headers.MapperID
	}
	received.Request = request

	if err := request.Validate(); err != nil {
		return received, fmt.Errorf("invalid mapping request: %w", err)
	}
	return received, nil
}

func (c *Consumer) Stats() kafka.ReaderStats {
	return c.reader.Stats()
}

func (c *Consumer) Lag() int64 {
	return c.reader.Stats().Lag
}
