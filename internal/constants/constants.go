package constants

import "time"

const (
	ServiceName = "relay-service"
)

const (
	SourceTypeDiscord = "discord"
	SourceTypeKafka   = "kafka"
)

const (
	DefaultCacheCapacity      = 2000
	DefaultWorkers            = 1
	DefaultSourceBuffer       = 256
	DefaultDispatchTimeout    = 15 * time.Second
	DefaultAttachmentTimeout  = 30 * time.Second
	DefaultMaxAttachmentBytes = 25 << 20
	DefaultMaxRestRetries     = 3
)

const (
	DefaultServerPort = 8080
	ShutdownTimeout   = 5 * time.Second
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaFetchBackoff = time.Second
)

const (
	DefaultHTTPTimeout = 30 * time.Second
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	OutcomeRejected       = "rejected"
	OutcomeAdaptFailed    = "adapt_failed"
	OutcomeDeliveryFailed = "delivery_failed"
	OutcomeRecorded       = "recorded"
)

const (
	EventTypeRelayOutcome = "relay_outcome"
)

const (
	SamplerAlwaysOn                = "always_on"
	SamplerAlwaysOff               = "always_off"
	SamplerTraceIDRatio            = "traceidratio"
	SamplerParentBasedAlwaysOn     = "parentbased_always_on"
	SamplerParentBasedTraceIDRatio = "parentbased_traceidratio"
)
