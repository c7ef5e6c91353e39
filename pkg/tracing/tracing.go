package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"duplicator/internal/config"
	"duplicator/internal/constants"
)

// Resource attribute keys describing which relay a trace came from.
const (
	AttrSourceType      = attribute.Key("relay.source.type")
	AttrTargetChannelID = attribute.Key("relay.target_channel_id")
	AttrWebhookID       = attribute.Key("relay.webhook.id")
	AttrWebhookThreadID = attribute.Key("relay.webhook.thread_id")
)

const exporterInitTimeout = 5 * time.Second

type TracerProvider struct {
	tp       *sdktrace.TracerProvider
	resource *resource.Resource
}

func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	return tp.tp.Tracer(name)
}

// Resource is nil when tracing is disabled.
func (tp *TracerProvider) Resource() *resource.Resource {
	return tp.resource
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.tp != nil {
		return tp.tp.Shutdown(ctx)
	}
	return nil
}

// RelayTarget identifies the relay instance in resource attributes. Empty
// fields are left out.
type RelayTarget struct {
	SourceType      string
	TargetChannelID string
	WebhookID       string
	WebhookThreadID string
}

func (t RelayTarget) Attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	add := func(key attribute.Key, value string) {
		if value != "" {
			attrs = append(attrs, key.String(value))
		}
	}
	add(AttrSourceType, t.SourceType)
	add(AttrTargetChannelID, t.TargetChannelID)
	add(AttrWebhookID, t.WebhookID)
	add(AttrWebhookThreadID, t.WebhookThreadID)
	return attrs
}

// Init installs the global propagator and, when tracing is enabled, an OTLP
// tracer provider. The propagator is installed either way so trace context
// read from Kafka headers reaches outcome events unchanged.
func Init(cfg config.TracingConfig, serviceName string, target RelayTarget) (*TracerProvider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return &TracerProvider{tp: sdktrace.NewTracerProvider()}, nil
	}

	sampler, err := newSampler(cfg.Sampler)
	if err != nil {
		return nil, err
	}

	res, err := newResource(cfg, serviceName, target)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), exporterInitTimeout)
	defer cancel()

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLP.Endpoint),
	}
	if cfg.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp, resource: res}, nil
}

func newResource(cfg config.TracingConfig, serviceName string, target RelayTarget) (*resource.Resource, error) {
	if cfg.ServiceName != "" {
		serviceName = cfg.ServiceName
	}
	if serviceName == "" {
		serviceName = constants.ServiceName
	}

	attrs := append([]attribute.KeyValue{semconv.ServiceNameKey.String(serviceName)}, target.Attributes()...)
	return resource.New(
		context.Background(),
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithProcessRuntimeName(),
		resource.WithProcessRuntimeVersion(),
	)
}

// newSampler maps the configured sampler. An empty type means parent-based
// always-on, so upstream sampling decisions carried over Kafka are honored.
func newSampler(cfg config.SamplerConfig) (sdktrace.Sampler, error) {
	switch cfg.Type {
	case constants.SamplerAlwaysOn:
		return sdktrace.AlwaysSample(), nil
	case constants.SamplerAlwaysOff:
		return sdktrace.NeverSample(), nil
	case constants.SamplerTraceIDRatio:
		return sdktrace.TraceIDRatioBased(cfg.Param), nil
	case constants.SamplerParentBasedTraceIDRatio:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Param)), nil
	case constants.SamplerParentBasedAlwaysOn, "":
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	default:
		return nil, fmt.Errorf("unknown sampler type: %s", cfg.Type)
	}
}

func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
