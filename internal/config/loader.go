package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"duplicator/internal/constants"
)

// LoadConfig reads configFile (optional; empty means environment only),
// applies environment overrides and validates the result.
func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.port", constants.DefaultServerPort)
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("source.type", constants.SourceTypeDiscord)
	viper.SetDefault("source.buffer", constants.DefaultSourceBuffer)
	viper.SetDefault("source.discord.token", "")
	viper.SetDefault("source.discord.connect.max_attempts", 5)
	viper.SetDefault("source.discord.connect.initial_interval", "1s")
	viper.SetDefault("source.discord.connect.max_interval", "30s")
	viper.SetDefault("source.discord.connect.multiplier", 2.0)
	viper.SetDefault("source.discord.connect.max_elapsed_time", "5m")

	viper.SetDefault("broker.kafka.brokers", []string{})
	viper.SetDefault("broker.kafka.group_id", "")
	viper.SetDefault("broker.kafka.input_topic", "")
	viper.SetDefault("broker.kafka.outcome_topic", "")

	viper.SetDefault("relay.target_channel_id", "")
	viper.SetDefault("relay.cache_capacity", constants.DefaultCacheCapacity)
	viper.SetDefault("relay.workers", constants.DefaultWorkers)
	viper.SetDefault("relay.dispatch_timeout", constants.DefaultDispatchTimeout)
	viper.SetDefault("relay.attachment_timeout", constants.DefaultAttachmentTimeout)
	viper.SetDefault("relay.max_attachment_bytes", constants.DefaultMaxAttachmentBytes)
	viper.SetDefault("relay.rules", []string{})

	viper.SetDefault("delivery.webhook_url", "")
	viper.SetDefault("delivery.max_rest_retries", constants.DefaultMaxRestRetries)

	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 5)

	viper.SetDefault("admin.rate_limit.enabled", false)
	viper.SetDefault("admin.rate_limit.rps", 10.0)
	viper.SetDefault("admin.rate_limit.burst", 20)
	viper.SetDefault("admin.rate_limit.cleanup_interval", 300)
	viper.SetDefault("admin.rate_limit.max_age", 600)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.service_name", constants.ServiceName)
	viper.SetDefault("tracing.sampler.type", constants.SamplerParentBasedAlwaysOn)
	viper.SetDefault("tracing.sampler.param", 1.0)
}

func bindEnvVariables() {
	// Bare names are accepted for .env files written for earlier deployments.
	viper.BindEnv("source.discord.token", "SOURCE_DISCORD_TOKEN", "DISCORD_TOKEN", "TOKEN")
	viper.BindEnv("delivery.webhook_url", "DELIVERY_WEBHOOK_URL", "WEBHOOK_URL")
	viper.BindEnv("relay.target_channel_id", "RELAY_TARGET_CHANNEL_ID", "TARGET_CHANNEL_ID")

	viper.BindEnv("source.type", "SOURCE_TYPE")
	viper.BindEnv("source.buffer", "SOURCE_BUFFER")

	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.input_topic", "BROKER_KAFKA_INPUT_TOPIC")
	viper.BindEnv("broker.kafka.outcome_topic", "BROKER_KAFKA_OUTCOME_TOPIC")

	viper.BindEnv("relay.cache_capacity", "RELAY_CACHE_CAPACITY")
	viper.BindEnv("relay.workers", "RELAY_WORKERS")
	viper.BindEnv("relay.dispatch_timeout", "RELAY_DISPATCH_TIMEOUT")
	viper.BindEnv("relay.attachment_timeout", "RELAY_ATTACHMENT_TIMEOUT")
	viper.BindEnv("relay.max_attachment_bytes", "RELAY_MAX_ATTACHMENT_BYTES")

	viper.BindEnv("delivery.max_rest_retries", "DELIVERY_MAX_REST_RETRIES")

	viper.BindEnv("server.enabled", "SERVER_ENABLED")
	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
	viper.BindEnv("tracing.sampler.type", "TRACING_SAMPLER_TYPE")
	viper.BindEnv("tracing.sampler.param", "TRACING_SAMPLER_PARAM")
}

func applyEnvOverrides(cfg *Config) {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		if brokers := splitList(brokersEnv); len(brokers) > 0 {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	// Rules contain commas of their own, so the env form is newline separated.
	if rulesEnv := viper.GetString("RELAY_RULES"); rulesEnv != "" {
		var rules []string
		for _, rule := range strings.Split(rulesEnv, "\n") {
			if rule = strings.TrimSpace(rule); rule != "" {
				rules = append(rules, rule)
			}
		}
		cfg.Relay.Rules = rules
	}

	cfg.Source.Type = strings.ToLower(strings.TrimSpace(cfg.Source.Type))
	cfg.Source.Discord.Token = strings.TrimSpace(cfg.Source.Discord.Token)
	cfg.Delivery.WebhookURL = strings.TrimSpace(cfg.Delivery.WebhookURL)
	cfg.Relay.TargetChannelID = strings.TrimSpace(cfg.Relay.TargetChannelID)
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
