package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	FirstOffset int64 = kafka.FirstOffset
	LastOffset  int64 = kafka.LastOffset
)

// ConsumerConfig configures the reader of mapping requests.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	MinBytes       int
	MaxBytes       int
	MaxWait        time.Duration
	CommitInterval time.Duration

	// StartOffset applies when the group has no committed offset yet
	StartOffset int64

	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	RebalanceTimeout  time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:           []string{"localhost:9092"},
		Topic:             "mapping-requests",
		GroupID:           "clover-consumer",
		MinBytes:          1,
		MaxBytes:          10e6,
		MaxWait:           3 * time.Second,
		CommitInterval:    time.Second,
		StartOffset:       LastOffset,
		SessionTimeout:    30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		RebalanceTimeout:  30 * time.Second,
	}
}

func (c ConsumerConfig) Validate() error {
	switch {
	case len(c.Brokers) == 0:
		return fmt.Errorf("at least one broker is required")
	case c.Topic == "":
		return fmt.Errorf("topic is required")
	case c.GroupID == "":
		return fmt.Errorf("group ID is required")
	case c.StartOffset != FirstOffset && c.StartOffset != LastOffset:
		return fmt.Errorf("start offset must be FirstOffset or LastOffset, got %d", c.StartOffset)
	}
	return nil
}

func (c ConsumerConfig) readerConfig() kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:           c.Brokers,
		Topic:             c.Topic,
		GroupID:           c.GroupID,
		MinBytes:          c.MinBytes,
		MaxBytes:          c.MaxBytes,
		MaxWait:           c.MaxWait,
		CommitInterval:    c.CommitInterval,
		StartOffset:       c.StartOffset,
		SessionTimeout:    c.SessionTimeout,
		HeartbeatInterval: c.HeartbeatInterval,
		RebalanceTimeout:  c.RebalanceTimeout,
	}
}

// ProducerConfig configures the writer of mapping results.
type ProducerConfig struct {
	Brokers []string

	// Topic is used by Publish; results may name another topic
	Topic string

	BatchSize    int
	BatchTimeout time.Duration

	// 0 none, 1 leader, -1 all replicas
	RequiredAcks int

	Async        bool
	MaxAttempts  int
	WriteTimeout time.Duration

	// none, gzip, snappy, lz4 or zstd
	Compression string
}

func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "mapped-sheets",
		BatchSize:    100,
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: 1,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		Compression:  "snappy",
	}
}

func (c ProducerConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("at least one broker is required")
	}
	if c.RequiredAcks < -1 || c.RequiredAcks > 1 {
		return fmt.Errorf("required acks must be -1, 0 or 1, got %d", c.RequiredAcks)
	}
	_, err := ParseCompression(c.Compression)
	return err
}

// ParseCompression maps a codec name onto kafka-go. Empty and "none" disable
// compression.
func ParseCompression(name string) (kafka.Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("unknown compression codec %q", name)
}
