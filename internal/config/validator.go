package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"duplicator/internal/constants"
	apperrors "duplicator/pkg/errors"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks the loaded configuration. Any failure is a
// CONFIG_ERROR and must stop the process before the relay loop starts.
func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateSource(cfg.Source, cfg.Broker); err != nil {
		errs = append(errs, err)
	}

	if err := validateRelay(cfg.Relay); err != nil {
		errs = append(errs, err)
	}

	if err := validateDelivery(cfg.Delivery); err != nil {
		errs = append(errs, err)
	}

	if cfg.Server.Enabled {
		if err := validateServer(cfg.Server); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.CircuitBreaker.Enabled {
		if err := validateCircuitBreaker(cfg.CircuitBreaker); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Tracing.Enabled {
		if err := validateTracing(cfg.Tracing); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return apperrors.ErrConfig.WithCause(errors.Join(errs...))
	}

	return nil
}

func validateSource(cfg SourceConfig, broker BrokerConfig) error {
	switch cfg.Type {
	case constants.SourceTypeDiscord:
		if cfg.Discord.Token == "" {
			return &ValidationError{
				Field:   "source.discord.token",
				Message: "Discord bot token is required (TOKEN)",
			}
		}
	case constants.SourceTypeKafka:
		if err := validateKafka(broker.Kafka); err != nil {
			return err
		}
	case "":
		return &ValidationError{
			Field:   "source.type",
			Message: "source type is required",
		}
	default:
		return &ValidationError{
			Field:   "source.type",
			Message: fmt.Sprintf("unknown source type: %s (supported: discord, kafka)", cfg.Type),
		}
	}

	if cfg.Buffer < 0 {
		return &ValidationError{
			Field:   "source.buffer",
			Message: "buffer must be non-negative",
		}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.InputTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.input_topic",
			Message: "Kafka input topic is required",
		}
	}

	return nil
}

func validateRelay(cfg RelayConfig) error {
	if cfg.TargetChannelID == "" {
		return &ValidationError{
			Field:   "relay.target_channel_id",
			Message: "target channel ID is required (TARGET_CHANNEL_ID)",
		}
	}

	if cfg.CacheCapacity < 1 {
		return &ValidationError{
			Field:   "relay.cache_capacity",
			Message: fmt.Sprintf("cache capacity must be positive, got %d", cfg.CacheCapacity),
		}
	}

	if cfg.Workers < 1 {
		return &ValidationError{
			Field:   "relay.workers",
			Message: fmt.Sprintf("workers must be at least 1, got %d", cfg.Workers),
		}
	}

	if cfg.DispatchTimeout <= 0 {
		return &ValidationError{
			Field:   "relay.dispatch_timeout",
			Message: "dispatch timeout must be positive",
		}
	}

	if cfg.AttachmentTimeout <= 0 {
		return &ValidationError{
			Field:   "relay.attachment_timeout",
			Message: "attachment timeout must be positive",
		}
	}

	if cfg.MaxAttachmentBytes <= 0 {
		return &ValidationError{
			Field:   "relay.max_attachment_bytes",
			Message: "max attachment size must be positive",
		}
	}

	for i, rule := range cfg.Rules {
		if strings.TrimSpace(rule) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("relay.rules[%d]", i),
				Message: "rule expression cannot be empty",
			}
		}
	}

	return nil
}

func validateDelivery(cfg DeliveryConfig) error {
	if cfg.WebhookURL == "" {
		return &ValidationError{
			Field:   "delivery.webhook_url",
			Message: "webhook URL is required (WEBHOOK_URL)",
		}
	}

	u, err := url.Parse(cfg.WebhookURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return &ValidationError{
			Field:   "delivery.webhook_url",
			Message: "webhook URL must be an absolute http(s) URL",
		}
	}

	if cfg.MaxRestRetries < 0 {
		return &ValidationError{
			Field:   "delivery.max_rest_retries",
			Message: "max_rest_retries must be non-negative",
		}
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateCircuitBreaker(cfg CircuitBreakerConfig) error {
	if cfg.FailureRatio < 0 || cfg.FailureRatio > 1 {
		return &ValidationError{
			Field:   "circuit_breaker.failure_ratio",
			Message: fmt.Sprintf("failure ratio must be within [0, 1], got %v", cfg.FailureRatio),
		}
	}

	if cfg.Timeout < 0 || cfg.Interval < 0 {
		return &ValidationError{
			Field:   "circuit_breaker.timeout",
			Message: "timeout and interval must be non-negative",
		}
	}

	return nil
}

func validateTracing(cfg TracingConfig) error {
	if cfg.OTLP.Endpoint == "" {
		return &ValidationError{
			Field:   "tracing.otlp.endpoint",
			Message: "OTLP endpoint is required when tracing is enabled",
		}
	}

	switch cfg.Sampler.Type {
	case "", constants.SamplerAlwaysOn, constants.SamplerAlwaysOff, constants.SamplerParentBasedAlwaysOn:
	case constants.SamplerTraceIDRatio, constants.SamplerParentBasedTraceIDRatio:
		if cfg.Sampler.Param < 0 || cfg.Sampler.Param > 1 {
			return &ValidationError{
				Field:   "tracing.sampler.param",
				Message: fmt.Sprintf("sampling ratio must be within [0, 1], got %v", cfg.Sampler.Param),
			}
		}
	default:
		return &ValidationError{
			Field:   "tracing.sampler.type",
			Message: fmt.Sprintf("unknown sampler type: %s", cfg.Sampler.Type),
		}
	}

	return nil
}
