// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MapperRunsTotal tracks mapper executions by source (http, kafka) and status
	MapperRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "mapper",
			Name:      "runs_total",
			Help:      "Total number of mapper executions by status",
		},
		[]string{"tenant_id", "source", "status"},
	)

	// MapperRunDuration tracks mapper execution duration in seconds
	MapperRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "mapper",
			Name:      "run_duration_seconds",
			Help:      "Duration of mapper executions in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"source"},
	)

	// MapperRowsTotal tracks rows produced by mappers
	MapperRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "mapper",
			Name:      "rows_total",
			Help:      "Total number of to-sheet rows produced",
		},
		[]string{"source"},
	)

	// MapperErrorsTotal tracks failed executions by error code
	MapperErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "mapper",
			Name:      "errors_total",
			Help:      "Total number of mapper errors by code",
		},
		[]string{"source", "code"},
	)

	// MapperCacheLookups tracks compiled mapper cache hits and misses
	MapperCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of compiled mapper cache lookups",
		},
		[]string{"result"},
	)

	// KafkaPublishTotal tracks Kafka publish operations
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "publish_total",
			Help:      "Total number of Kafka publish operations",
		},
		[]string{"topic", "status"},
	)

	// KafkaConsumedTotal tracks consumed requests by outcome (accepted, invalid)
	KafkaConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "consumed_total",
			Help:      "Total number of consumed Kafka messages",
		},
		[]string{"topic", "status"},
	)

	// WorkerJobsInFlight tracks requests currently being processed
	WorkerJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clover",
			Subsystem: "processor",
			Name:      "jobs_in_flight",
			Help:      "Number of mapping requests currently being processed",
		},
	)
)

// RecordMapperRun records a finished mapper execution
func RecordMapperRun(tenantID, source, status string, rows int, durationSeconds float64) {
	MapperRunsTotal.WithLabelValues(tenantID, source, status).Inc()
	MapperRunDuration.WithLabelValues(source).Observe(durationSeconds)
	if rows > 0 {
		MapperRowsTotal.WithLabelValues(source).Add(float64(rows))
	}
}

func RecordMapperError(source, code string) {
	if code == "" {
		code = "unknown"
	}
	MapperErrorsTotal.WithLabelValues(source, code).Inc()
}

func RecordCacheLookup(hit bool) {
	if hit {
		MapperCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	MapperCacheLookups.WithLabelValues("miss").Inc()
}

func RecordKafkaPublish(topic, status string) {
	KafkaPublishTotal.WithLabelValues(topic, status).Inc()
}

func RecordKafkaConsume(topic, status string) {
	KafkaConsumedTotal.WithLabelValues(topic, status).Inc()
}
