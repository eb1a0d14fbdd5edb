package kafka

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	config ProducerConfig
}

func NewProducer(config ProducerConfig, logger ectologger.Logger) (*Producer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	codec, _ := ParseCompression(config.Compression)

	// Topic stays empty on the writer so each message can name its own.
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              config.BatchSize,
		BatchTimeout:           config.BatchTimeout,
		MaxAttempts:            config.MaxAttempts,
		WriteTimeout:           config.WriteTimeout,
		Async:                  config.Async,
		Compression:            codec,
		RequiredAcks:           kafka.RequiredAcks(config.RequiredAcks),
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		config: config,
	}, nil
}

func (p *Producer) Publish(ctx context.Context, result *MappingResult) error {
	return p.PublishToTopic(ctx, p.config.Topic, result)
}

// PublishToTopic keys the message by tenant and mapper so results of one mapper
// stay ordered within a partition.
func (p *Producer) PublishToTopic(ctx context.Context, topic string, result *MappingResult) error {
	msg, err := NewMessage(topic, result)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// NewMessage builds the Kafka message for a result.
func NewMessage(topic string, result *MappingResult) (kafka.Message, error) {
	data, err := result.ToJSON()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to serialize message: %w", err)
	}

	headers := MessageHeaders{
		TenantID:  result.TenantID,
		MapperID:  result.MapperID,
		RequestID: result.RequestID,
		Status:    result.Status,
	}
	if result.TraceID != "" {
		headers.TraceParent = fmt.Sprintf("00-%s-%s-01", result.TraceID, result.SpanID)
	}

	kafkaHeaders := make([]kafka.Header, 0)
	for _, h := range headers.ToKafkaHeaders() {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: h.Key, Value: h.Value})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(fmt.Sprintf("%s:%s", result.TenantID, result.MapperID)),
		Value:   data,
		Headers: kafkaHeaders,
		Time:    result.Timestamp,
	}, nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	p.logger.Info("Kafka producer closed")
	return nil
}

func (p *Producer) Stats() kafka.WriterStats {
	return p.writer.Stats()
}
