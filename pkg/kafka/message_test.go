package kafka

import (
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMappingRequest(t *testing.T) {
	jsonData := `{
		"tenant_id": "550e8400-e29b-41d4-a716-446655440000",
		"mapper_id": "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		"request_id": "req-1",
		"from_sheet": {
			"object_alias": "ORDER",
			"rows": [{"ID": 1, "NAME": "a"}]
		},
		"variables": {"limit": 10}
	}`

	msg, err := ParseMappingRequest([]byte(jsonData))
	require.NoError(t, err)

	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", msg.TenantID)
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", msg.MapperID)
	assert.Equal(t, "req-1", msg.RequestID)
	assert.Equal(t, "ORDER", msg.FromSheet.GetString("object_alias"))
	assert.Equal(t, 10.0, msg.Variables["limit"])
	assert.Nil(t, msg.ToSheet)

	t.Run("should require the mapper", func(t *testing.T) {
		_, err := ParseMappingRequest([]byte(`{"tenant_id": "t", "from_sheet": {"object_alias": "ORDER"}}`))
		assert.Error(t, err)
	})

	t.Run("should require a from-sheet", func(t *testing.T) {
		_, err := ParseMappingRequest([]byte(`{"tenant_id": "t", "mapper_id": "m"}`))
		assert.Error(t, err)
	})

	t.Run("should reject invalid JSON", func(t *testing.T) {
		_, err := ParseMappingRequest([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestParseMessage(t *testing.T) {
	received, err := ParseMessage(kafkago.Message{
		Topic:  "mapping-requests",
		Offset: 42,
		Value:  []byte(`{"mapper_id": "m", "from_sheet": {"object_alias": "ORDER"}}`),
		Headers: []kafkago.Header{
			{Key: "tenant_id", Value: []byte("tenant-1")},
			{Key: "request_id", Value: []byte("req-9")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), received.Offset)
	assert.Equal(t, "tenant-1", received.Headers.TenantID)
	assert.Equal(t, "tenant-1", received.Request.TenantID)
	assert.Equal(t, "req-9", received.Request.RequestID)

	t.Run("should keep the message for an invalid request", func(t *testing.T) {
		received, err := ParseMessage(kafkago.Message{
			Offset: 7,
			Value:  []byte(`{"from_sheet": {"object_alias": "ORDER"}}`),
			Headers: []kafkago.Header{
				{Key: "tenant_id", Value: []byte("tenant-1")},
			},
		})
		require.Error(t, err)
		require.NotNil(t, received.Request)
		assert.Contains(t, err.Error(), "mapper_id is required")
		assert.Equal(t, "tenant-1", received.Request.TenantID)
	})

	t.Run("should leave the request empty for bad JSON", func(t *testing.T) {
		received, err := ParseMessage(kafkago.Message{Offset: 8, Value: []byte(`{`)})
		require.Error(t, err)
		assert.Nil(t, received.Request)
		assert.Equal(t, int64(8), received.Offset)
	})
}

func TestFetchBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, fetchBackoff(1))
	assert.Equal(t, 400*time.Millisecond, fetchBackoff(3))
	assert.Equal(t, 5*time.Second, fetchBackoff(50))
}

func TestMappingResultToJSON(t *testing.T) {
	result := &MappingResult{
		TenantID:  "tenant-1",
		RequestID: "req-1",
		MapperID:  "mapper-1",
		Status:    StatusSuccess,
		ToSheet:   map[string]any{"object_alias": "CUSTOMER", "rows": []any{}},
		Timestamp: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	data, err := result.ToJSON()
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "success", parsed["status"])
	assert.Equal(t, "CUSTOMER", parsed["to_sheet"].(map[string]any)["object_alias"])
	assert.NotContains(t, parsed, "error")
}

func TestMessageHeaders(t *testing.T) {
	headers := MessageHeaders{
		TenantID:    "tenant-1",
		MapperID:    "mapper-1",
		Status:      StatusFailed,
		TraceParent: "00-abc-def-01",
	}

	kafkaHeaders := headers.ToKafkaHeaders()
	assert.Len(t, kafkaHeaders, 4)
	assert.Equal(t, headers, ExtractHeaders(kafkaHeaders))
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage("mapped-sheets", &MappingResult{
		TenantID: "tenant-1",
		MapperID: "mapper-1",
		Status:   StatusSuccess,
		TraceID:  "abc",
		SpanID:   "def",
	})
	require.NoError(t, err)

	assert.Equal(t, "mapped-sheets", msg.Topic)
	assert.Equal(t, "tenant-1:mapper-1", string(msg.Key))

	headers := make([]Header, len(msg.Headers))
	for i, h := range msg.Headers {
		headers[i] = Header{Key: h.Key, Value: h.Value}
	}
	assert.Equal(t, "00-abc-def-01", ExtractHeaders(headers).TraceParent)
}
