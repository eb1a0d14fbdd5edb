package exporters

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConsoleExporter(t *testing.T) {
	t.Run("should export spans to the logger", func(t *testing.T) {
		logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
		start := time.Now()
		spans := tracetest.SpanStubs{
			{Name: "mapping.Map", StartTime: start, EndTime: start.Add(time.Millisecond)},
			{Name: "reader.Read", StartTime: start, EndTime: start.Add(time.Millisecond)},
		}.Snapshots()

		exporter := &ConsoleExporter{Logger: logger}
		assert.NoError(t, exporter.ExportSpans(context.Background(), spans))
		assert.NoError(t, exporter.Shutdown(context.Background()))
	})

	t.Run("should do nothing without a logger", func(t *testing.T) {
		exporter := &ConsoleExporter{}
		assert.NoError(t, exporter.ExportSpans(context.Background(), tracetest.SpanStubs{{Name: "x"}}.Snapshots()))
	})
}
