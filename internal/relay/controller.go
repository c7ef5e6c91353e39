package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"duplicator/internal/config"
	"duplicator/internal/constants"
	"duplicator/internal/logger"
	apperrors "duplicator/pkg/errors"
	"duplicator/pkg/logging"
	"duplicator/pkg/metrics"
	"duplicator/pkg/models"
	"duplicator/pkg/tracing"
)

const (
	reasonInFlight  = "in_flight"
	reasonRule      = "rule"
	reasonRuleError = "rule_error"

	outcomePublishTimeout = 5 * time.Second
)

// Dispatcher pushes a payload to the destination. Implementations must not
// retry on their own.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload Payload) error
}

// OutcomePublisher receives an event for every message that passed the
// filter. Failures are logged and otherwise ignored.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, event models.RelayOutcomeEvent) error
}

type Config struct {
	TargetChannelID    string
	CacheCapacity      int
	Workers            int
	DispatchTimeout    time.Duration
	AttachmentTimeout  time.Duration
	MaxAttachmentBytes int64
	Rules              []string
}

func NewConfig(cfg config.RelayConfig) Config {
	return Config{
		TargetChannelID:    cfg.TargetChannelID,
		CacheCapacity:      cfg.CacheCapacity,
		Workers:            cfg.Workers,
		DispatchTimeout:    cfg.DispatchTimeout,
		AttachmentTimeout:  cfg.AttachmentTimeout,
		MaxAttachmentBytes: cfg.MaxAttachmentBytes,
		Rules:              cfg.Rules,
	}
}

func (c Config) withDefaults() Config {
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = constants.DefaultCacheCapacity
	}
	if c.Workers <= 0 {
		c.Workers = constants.DefaultWorkers
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = constants.DefaultDispatchTimeout
	}
	if c.AttachmentTimeout <= 0 {
		c.AttachmentTimeout = constants.DefaultAttachmentTimeout
	}
	if c.MaxAttachmentBytes <= 0 {
		c.MaxAttachmentBytes = constants.DefaultMaxAttachmentBytes
	}
	return c
}

// Stats is a point-in-time view of the controller for the admin API.
type Stats struct {
	CacheSize      int   `json:"cache_size"`
	CacheCapacity  int   `json:"cache_capacity"`
	InFlight       int   `json:"in_flight"`
	Received       int64 `json:"received"`
	Rejected       int64 `json:"rejected"`
	AdaptFailed    int64 `json:"adapt_failed"`
	DeliveryFailed int64 `json:"delivery_failed"`
	Recorded       int64 `json:"recorded"`
	Panics         int64 `json:"panics"`
}

type counters struct {
	received       atomic.Int64
	rejected       atomic.Int64
	adaptFailed    atomic.Int64
	deliveryFailed atomic.Int64
	recorded       atomic.Int64
	panics         atomic.Int64
}

type Option func(*Controller)

func WithOutcomePublisher(p OutcomePublisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// Controller runs filter, adapt, dispatch and record for each inbound
// message. It owns the recency cache.
//
// The filter check and the reservation of a message ID happen under one
// lock, so two overlapping events for the same ID cannot both reach
// dispatch. A reserved ID is moved into the cache after a successful
// dispatch, or released on any failure so a later event may retry it.
type Controller struct {
	cfg        Config
	filterCfg  FilterConfig
	adapter    *Adapter
	dispatcher Dispatcher
	rules      *RuleSet
	publisher  OutcomePublisher
	logger     logger.Logger

	mu       sync.Mutex
	cache    *RecencyCache
	inflight map[string]struct{}

	stats counters
}

func NewController(cfg Config, dispatcher Dispatcher, log logger.Logger, opts ...Option) (*Controller, error) {
	cfg = cfg.withDefaults()
	if cfg.TargetChannelID == "" {
		return nil, apperrors.ErrConfig.WithMessage("target channel id is required")
	}
	if dispatcher == nil {
		return nil, apperrors.ErrConfig.WithMessage("dispatcher is required")
	}

	rules, err := CompileRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:        cfg,
		filterCfg:  FilterConfig{TargetChannelID: cfg.TargetChannelID},
		adapter:    NewAdapter(AdapterConfig{MaxAttachmentBytes: cfg.MaxAttachmentBytes, AttachmentTimeout: cfg.AttachmentTimeout}),
		dispatcher: dispatcher,
		rules:      rules,
		logger:     log,
		cache:      NewRecencyCache(cfg.CacheCapacity),
		inflight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run consumes events until ctx is done or the channel is closed. With a
// single worker messages are dispatched in arrival order.
func (c *Controller) Run(ctx context.Context, events <-chan InboundMessage) error {
	c.logger.Infow("Relay controller started",
		"workers", c.cfg.Workers,
		"cache_capacity", c.cfg.CacheCapacity,
		"target_channel_id", c.cfg.TargetChannelID,
		"rules", c.rules.Len(),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case msg, ok := <-events:
					if !ok {
						return nil
					}
					c.safeHandle(gctx, msg)
				}
			}
		})
	}

	err := g.Wait()
	c.logger.Infow("Relay controller stopped")
	return err
}

func (c *Controller) safeHandle(ctx context.Context, msg InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.panics.Add(1)
			err := apperrors.RecoverPanic(r)
			c.logger.ErrorwCtx(logging.WithMessageID(ctx, msg.ID), "Panic recovered while relaying message",
				"error", err,
				"message_id", msg.ID,
			)
		}
	}()
	c.Handle(ctx, msg)
}

// Handle runs one message through the pipeline and returns its terminal
// state. Panics propagate to the caller after the reservation is released.
func (c *Controller) Handle(ctx context.Context, msg InboundMessage) Outcome {
	start := time.Now()
	c.stats.received.Add(1)

	traceID := msg.TraceID
	if traceID == "" {
		traceID = logging.GetTraceID(ctx)
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	ctx = logging.WithTraceID(ctx, traceID)
	ctx = logging.WithMessageID(ctx, msg.ID)
	ctx = logging.WithChannelID(ctx, msg.ChannelID)

	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "relay.handle")
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("channel.id", msg.ChannelID),
	)
	defer span.End()

	if reason, ok := c.reserve(msg); !ok {
		c.reject(ctx, start, reason)
		return OutcomeRejected
	}

	recorded := false
	defer func() {
		if !recorded {
			c.release(msg.ID)
		}
	}()

	allowed, expr, err := c.rules.Allow(ctx, msg)
	if err != nil {
		metrics.IncRuleEvaluation("error")
		c.logger.WarnwCtx(ctx, "Relay rule evaluation failed, skipping message",
			"error", err,
			"expression", expr,
		)
		c.reject(ctx, start, reasonRuleError)
		return OutcomeRejected
	}
	if !allowed {
		metrics.IncRuleEvaluation("rejected")
		c.logger.DebugwCtx(ctx, "Message rejected by relay rule", "expression", expr)
		c.reject(ctx, start, reasonRule)
		return OutcomeRejected
	}
	if c.rules.Len() > 0 {
		metrics.IncRuleEvaluation("allowed")
	}

	payload, err := c.adapter.Adapt(ctx, msg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.stats.adaptFailed.Add(1)
		c.logger.ErrorwCtx(ctx, "Failed to adapt message, dropping",
			"error", err,
			"message_id", msg.ID,
		)
		c.finish(ctx, msg, start, OutcomeAdaptFailed, err)
		return OutcomeAdaptFailed
	}

	if err := c.dispatch(ctx, payload); err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.stats.deliveryFailed.Add(1)
		c.logger.ErrorwCtx(ctx, "Failed to deliver message, dropping",
			"error", err,
			"message_id", msg.ID,
		)
		c.finish(ctx, msg, start, OutcomeDeliveryFailed, err)
		return OutcomeDeliveryFailed
	}

	c.record(msg.ID)
	recorded = true
	c.stats.recorded.Add(1)
	c.logger.InfowCtx(ctx, "Message relayed",
		"message_id", msg.ID,
		"files", len(payload.Files),
		"embeds", len(payload.Embeds),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	c.finish(ctx, msg, start, OutcomeRecorded, nil)
	return OutcomeRecorded
}

func (c *Controller) dispatch(ctx context.Context, payload Payload) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DispatchTimeout)
	defer cancel()

	start := time.Now()
	err := c.dispatcher.Dispatch(ctx, payload)
	status := "success"
	if err != nil {
		status = "failure"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !apperrors.IsTimeout(err) {
			err = apperrors.ErrTimeout.WithCause(err)
		} else if !apperrors.IsDelivery(err) {
			err = apperrors.ErrDelivery.WithCause(err)
		}
	}
	metrics.ObserveDispatch(time.Since(start), status)
	return err
}

func (c *Controller) reserve(msg InboundMessage) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !ShouldForward(msg, c.filterCfg, c.cache) {
		return RejectReason(msg, c.filterCfg, c.cache), false
	}
	if _, busy := c.inflight[msg.ID]; busy {
		return reasonInFlight, false
	}
	c.inflight[msg.ID] = struct{}{}
	metrics.SetInflight(len(c.inflight))
	return "", true
}

func (c *Controller) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
	metrics.SetInflight(len(c.inflight))
}

func (c *Controller) record(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
	c.cache.Insert(id)
	metrics.SetInflight(len(c.inflight))
	metrics.SetRecencyCacheSize(c.cache.Len())
}

func (c *Controller) reject(ctx context.Context, start time.Time, reason string) {
	c.stats.rejected.Add(1)
	metrics.IncRejection(reason)
	metrics.ObserveProcessing(time.Since(start), OutcomeRejected.String())
	c.logger.DebugwCtx(ctx, "Message not forwarded", "reason", reason)
}

func (c *Controller) finish(ctx context.Context, msg InboundMessage, start time.Time, outcome Outcome, cause error) {
	elapsed := time.Since(start)
	metrics.ObserveProcessing(elapsed, outcome.String())

	if c.publisher == nil {
		return
	}

	event := models.RelayOutcomeEvent{
		EventType:  constants.EventTypeRelayOutcome,
		TraceID:    logging.GetTraceID(ctx),
		MessageID:  msg.ID,
		ChannelID:  msg.ChannelID,
		Outcome:    outcome.String(),
		DurationMs: float64(elapsed.Microseconds()) / 1000,
		Timestamp:  time.Now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomePublishTimeout)
	defer cancel()
	if err := c.publisher.PublishOutcome(pubCtx, event); err != nil {
		metrics.IncOutcomeEvent("failed")
		c.logger.WarnwCtx(ctx, "Failed to publish relay outcome", "error", err)
		return
	}
	metrics.IncOutcomeEvent("published")
}

// Forwarded reports whether id is in the recency cache.
func (c *Controller) Forwarded(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Contains(id)
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	size, inflight := c.cache.Len(), len(c.inflight)
	c.mu.Unlock()

	return Stats{
		CacheSize:      size,
		CacheCapacity:  c.cfg.CacheCapacity,
		InFlight:       inflight,
		Received:       c.stats.received.Load(),
		Rejected:       c.stats.rejected.Load(),
		AdaptFailed:    c.stats.adaptFailed.Load(),
		DeliveryFailed: c.stats.deliveryFailed.Load(),
		Recorded:       c.stats.recorded.Load(),
		Panics:         c.stats.panics.Load(),
	}
}
