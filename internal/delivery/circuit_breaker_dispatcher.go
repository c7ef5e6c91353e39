package delivery

import (
	"context"

	"github.com/sony/gobreaker"

	"duplicator/internal/config"
	"duplicator/internal/logger"
	"duplicator/internal/relay"
	"duplicator/pkg/circuitbreaker"
	"duplicator/pkg/health"
	apperrors "duplicator/pkg/errors"
)

// CircuitBreakerDispatcher stops calling the webhook after repeated
// failures and fails fast with CIRCUIT_OPEN until the breaker half-opens.
type CircuitBreakerDispatcher struct {
	next    relay.Dispatcher
	breaker *circuitbreaker.Wrapper
}

func NewCircuitBreakerDispatcher(next relay.Dispatcher, cfg config.CircuitBreakerConfig, log logger.Logger) *CircuitBreakerDispatcher {
	cbCfg := circuitbreaker.DefaultConfig("webhook")
	if cfg.MaxRequests > 0 {
		cbCfg.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbCfg.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbCfg.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 || cfg.MinRequests > 0 {
		ratio, minRequests := cfg.FailureRatio, cfg.MinRequests
		cbCfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		}
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warnw("Circuit breaker state changed",
			"name", name,
			"from", from.String(),
			"to", to.String(),
		)
	}

	return &CircuitBreakerDispatcher{
		next:    next,
		breaker: circuitbreaker.NewWrapper(cbCfg),
	}
}

func (d *CircuitBreakerDispatcher) Dispatch(ctx context.Context, payload relay.Payload) error {
	err := d.breaker.Run(ctx, func(ctx context.Context) error {
		return d.next.Dispatch(ctx, payload)
	})
	if err != nil && circuitbreaker.IsRejection(err) {
		return apperrors.ErrCircuitOpen.WithCause(err)
	}
	return err
}

func (d *CircuitBreakerDispatcher) Name() string {
	return "delivery_circuit_breaker"
}

// Check reports a degraded state while the breaker is open.
func (d *CircuitBreakerDispatcher) Check(context.Context) error {
	if d.breaker.IsOpen() {
		return apperrors.ErrCircuitOpen.WithCause(health.ErrDegraded)
	}
	return nil
}

func (d *CircuitBreakerDispatcher) State() string {
	return d.breaker.State().String()
}
