package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/clover/pkg/uxon"
)

// Result statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// MappingRequest asks for a from-sheet to be run through a stored mapper.
type MappingRequest struct {
	TenantID  string         `json:"tenant_id"`
	MapperID  string         `json:"mapper_id"`
	RequestID string         `json:"request_id"`
	FromSheet uxon.Object    `json:"from_sheet"`
	ToSheet   uxon.Object    `json:"to_sheet,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
}

// DecodeMappingRequest unmarshals a request without checking it.
func DecodeMappingRequest(data []byte) (*MappingRequest, error) {
	var msg MappingRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ParseMappingRequest decodes and validates a request.
func ParseMappingRequest(data []byte) (*MappingRequest, error) {
	msg, err := DecodeMappingRequest(data)
	if err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *MappingRequest) Validate() error {
	if r.MapperID == "" {
		return fmt.Errorf("mapper_id is required")
	}
	if r.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if len(r.FromSheet) == 0 {
		return fmt.Errorf("from_sheet is required")
	}
	return nil
}

// MappingResult is published for every processed request, successful or not.
type MappingResult struct {
	TenantID      string         `json:"tenant_id"`
	RequestID     string         `json:"request_id"`
	MapperID      string         `json:"mapper_id"`
	MapperVersion int            `json:"mapper_version,omitempty"`
	Status        string         `json:"status"`
	ToSheet       uxon.Object    `json:"to_sheet,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Error         string         `json:"error,omitempty"`
	ErrorCode     string         `json:"error_code,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

func (m *MappingResult) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageHeaders are copied onto every message so consumers can filter without
// decoding the payload.
type MessageHeaders struct {
	TenantID    string
	MapperID    string
	RequestID   string
	Status      string
	TraceParent string
	TraceState  string
}

func (h *MessageHeaders) ToKafkaHeaders() []Header {
	headers := make([]Header, 0, 6)

	if h.TenantID != "" {
		headers = append(headers, Header{Key: "tenant_id", Value: []byte(h.TenantID)})
	}
	if h.MapperID != "" {
		headers = append(headers, Header{Key: "mapper_id", Value: []byte(h.MapperID)})
	}
	if h.RequestID != "" {
		headers = append(headers, Header{Key: "request_id", Value: []byte(h.RequestID)})
	}
	if h.Status != "" {
		headers = append(headers, Header{Key: "status", Value: []byte(h.Status)})
	}
	if h.TraceParent != "" {
		headers = append(headers, Header{Key: "traceparent", Value: []byte(h.TraceParent)})
	}
	if h.TraceState != "" {
		headers = append(headers, Header{Key: "tracestate", Value: []byte(h.TraceState)})
	}

	return headers
}

type Header struct {
	Key   string
	Value []byte
}

func ExtractHeaders(headers []Header) MessageHeaders {
	var mh MessageHeaders
	for _, h := range headers {
		switch h.Key {
		case "tenant_id":
			mh.TenantID = string(h.Value)
		case "mapper_id":
			mh.MapperID = string(h.Value)
		case "request_id":
			mh.RequestID = string(h.Value)
		case "status":
			mh.Status = string(h.Value)
		case "traceparent":
			mh.TraceParent = string(h.Value)
		case "tracestate":
			mh.TraceState = string(h.Value)
		}
	}
	return mh
}
