package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConsumerConfig().Validate())

	tests := []struct {
		name   string
		modify func(c *ConsumerConfig)
		want   string
	}{
		{"no brokers", func(c *ConsumerConfig) { c.Brokers = nil }, "broker"},
		{"no topic", func(c *ConsumerConfig) { c.Topic = "" }, "topic"},
		{"no group", func(c *ConsumerConfig) { c.GroupID = "" }, "group"},
		{"bad offset", func(c *ConsumerConfig) { c.StartOffset = 5 }, "start offset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConsumerConfig()
			tt.modify(&config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProducerConfigValidate(t *testing.T) {
	require.NoError(t, DefaultProducerConfig().Validate())

	config := DefaultProducerConfig()
	config.Compression = "brotli"
	assert.ErrorContains(t, config.Validate(), "brotli")

	config = DefaultProducerConfig()
	config.RequiredAcks = 2
	assert.Error(t, config.Validate())

	_, err := NewProducer(ProducerConfig{}, nil)
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]kafka.Compression{
		"":       0,
		"none":   0,
		"GZIP":   kafka.Gzip,
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
	} {
		got, err := ParseCompression(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}
