package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Source         SourceConfig         `mapstructure:"source"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Relay          RelayConfig          `mapstructure:"relay"`
	Delivery       DeliveryConfig       `mapstructure:"delivery"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Admin          AdminConfig          `mapstructure:"admin"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SourceConfig selects where inbound chat messages come from.
type SourceConfig struct {
	Type    string        `mapstructure:"type"` // "discord" or "kafka"
	Buffer  int           `mapstructure:"buffer"`
	Discord DiscordConfig `mapstructure:"discord"`
}

type DiscordConfig struct {
	Token   string      `mapstructure:"token"`
	Connect RetryConfig `mapstructure:"connect"`
}

type BrokerConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	GroupID      string   `mapstructure:"group_id"`
	InputTopic   string   `mapstructure:"input_topic"`
	OutcomeTopic string   `mapstructure:"outcome_topic"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type RelayConfig struct {
	TargetChannelID    string        `mapstructure:"target_channel_id"`
	CacheCapacity      int           `mapstructure:"cache_capacity"`
	Workers            int           `mapstructure:"workers"`
	DispatchTimeout    time.Duration `mapstructure:"dispatch_timeout"`
	AttachmentTimeout  time.Duration `mapstructure:"attachment_timeout"`
	MaxAttachmentBytes int64         `mapstructure:"max_attachment_bytes"`
	Rules              []string      `mapstructure:"rules"`
}

type DeliveryConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	MaxRestRetries int    `mapstructure:"max_rest_retries"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type AdminConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
