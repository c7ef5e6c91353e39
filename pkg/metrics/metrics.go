package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RelayMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Total number of inbound messages by pipeline outcome (count)",
		},
		[]string{"outcome"},
	)

	RelayRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rejections_total",
			Help: "Total number of messages rejected by the relay filter, by reason (count)",
		},
		[]string{"reason"},
	)

	RelayProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_processing_duration_ms",
			Help:    "End-to-end processing duration per inbound message in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
		},
		[]string{"outcome"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_dispatch_duration_ms",
			Help:    "Webhook dispatch duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
		},
		[]string{"status"},
	)

	AttachmentSizeBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_attachment_size_bytes",
			Help:    "Size of attachments materialized for relay in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	RecencyCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_recency_cache_size",
			Help: "Number of message IDs held in the recency cache (count)",
		},
	)

	InflightMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_inflight_messages",
			Help: "Number of message IDs reserved by an in-progress relay (count)",
		},
	)

	SourceEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_source_events_total",
			Help: "Total number of message events received from a source (count)",
		},
		[]string{"source"},
	)

	RuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rule_evaluations_total",
			Help: "Total number of relay rule evaluations (count)",
		},
		[]string{"result"},
	)

	OutcomeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_outcome_events_total",
			Help: "Total number of outcome events published to the broker (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"operation"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of admin requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic"},
	)
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RelayMessagesTotal,
			RelayRejectionsTotal,
			RelayProcessingDuration,
			DispatchDuration,
			AttachmentSizeBytes,
			RecencyCacheSize,
			InflightMessages,
			SourceEventsTotal,
			RuleEvaluationsTotal,
			OutcomeEventsTotal,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			RetryAttemptsTotal,
			RateLimitRequestsTotal,
			KafkaMessagesReadTotal,
			KafkaMessagesWrittenTotal,
		)
	})
}

func ObserveProcessing(duration time.Duration, outcome string) {
	RelayMessagesTotal.WithLabelValues(outcome).Inc()
	RelayProcessingDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func IncRejection(reason string) {
	RelayRejectionsTotal.WithLabelValues(reason).Inc()
}

func ObserveDispatch(duration time.Duration, status string) {
	DispatchDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveAttachmentSize(sizeBytes int) {
	AttachmentSizeBytes.Observe(float64(sizeBytes))
}

func SetRecencyCacheSize(size int) {
	RecencyCacheSize.Set(float64(size))
}

func SetInflight(count int) {
	InflightMessages.Set(float64(count))
}

func IncSourceEvent(source string) {
	SourceEventsTotal.WithLabelValues(source).Inc()
}

func IncRuleEvaluation(result string) {
	RuleEvaluationsTotal.WithLabelValues(result).Inc()
}

func IncOutcomeEvent(status string) {
	OutcomeEventsTotal.WithLabelValues(status).Inc()
}

func IncKafkaMessagesRead(topic string) {
	KafkaMessagesReadTotal.WithLabelValues(topic).Inc()
}

func IncKafkaMessagesWritten(topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(topic).Inc()
}
