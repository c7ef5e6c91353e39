package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"duplicator/internal/admin"
	"duplicator/internal/broker"
	"duplicator/internal/config"
	"duplicator/internal/constants"
	"duplicator/internal/delivery"
	"duplicator/internal/logger"
	"duplicator/internal/relay"
	"duplicator/internal/source"
	"duplicator/pkg/health"
	"duplicator/pkg/metrics"
	"duplicator/pkg/tracing"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	source         source.Source
	dispatcher     relay.Dispatcher
	breaker        *delivery.CircuitBreakerDispatcher
	target         delivery.WebhookTarget
	producer       broker.Producer
	controller     *relay.Controller
	health         *health.CheckerRegistry
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
		health: health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.Register()

	if err := a.initDelivery(); err != nil {
		return fmt.Errorf("failed to initialize delivery: %w", err)
	}

	tp, err := tracing.Init(a.config.Tracing, constants.ServiceName, a.relayTarget())
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initController(ctx); err != nil {
		return fmt.Errorf("failed to initialize relay controller: %w", err)
	}

	src, err := source.New(a.config, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize source: %w", err)
	}
	a.source = src
	a.health.Register(src)

	if a.config.Server.Enabled {
		a.initServer(ctx)
	}

	return nil
}

func (a *App) initDelivery() error {
	webhook, err := delivery.NewWebhookDispatcher(a.config.Delivery, a.logger)
	if err != nil {
		return err
	}
	a.dispatcher = webhook
	a.target = webhook.Target()
	a.logger.Infow("Webhook dispatcher ready", "target", webhook.Target().String())

	if a.config.CircuitBreaker.Enabled {
		a.breaker = delivery.NewCircuitBreakerDispatcher(webhook, a.config.CircuitBreaker, a.logger)
		a.dispatcher = a.breaker
		a.health.Register(a.breaker)
	}
	return nil
}

func (a *App) relayTarget() tracing.RelayTarget {
	sourceType := a.config.Source.Type
	if sourceType == "" {
		sourceType = constants.SourceTypeDiscord
	}
	return tracing.RelayTarget{
		SourceType:      sourceType,
		TargetChannelID: a.config.Relay.TargetChannelID,
		WebhookID:       a.target.ID,
		WebhookThreadID: a.target.ThreadID,
	}
}

func (a *App) initController(ctx context.Context) error {
	var opts []relay.Option

	kafkaCfg := a.config.Broker.Kafka
	if kafkaCfg.OutcomeTopic != "" {
		producer, err := broker.NewProducer(kafkaCfg, a.logger)
		if err != nil {
			a.logger.WarnwCtx(ctx, "Failed to create outcome producer, outcome events disabled", "error", err)
		} else {
			a.producer = producer
			opts = append(opts, relay.WithOutcomePublisher(broker.NewOutcomePublisher(producer, kafkaCfg.OutcomeTopic)))
			a.logger.InfowCtx(ctx, "Outcome events enabled", "topic", kafkaCfg.OutcomeTopic)
		}
	}

	controller, err := relay.NewController(relay.NewConfig(a.config.Relay), a.dispatcher, a.logger, opts...)
	if err != nil {
		return err
	}
	a.controller = controller
	return nil
}

func (a *App) initServer(ctx context.Context) {
	var opts []admin.Option
	if a.breaker != nil {
		opts = append(opts, admin.WithBreakerState(a.breaker.State))
	}

	handler := admin.NewHandler(a.controller, a.health, a.source.Name(), a.logger, opts...)
	router := admin.NewRouter(ctx, a.config, handler, a.logger)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}
}

// Run blocks until ctx is canceled or a component fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	events := make(chan relay.InboundMessage, a.config.Source.Buffer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(gctx, "Source starting", "source", a.source.Name())
		if err := a.source.Start(gctx, events); err != nil {
			return fmt.Errorf("source %s: %w", a.source.Name(), err)
		}
		return nil
	})

	g.Go(func() error {
		return a.controller.Run(gctx, events)
	})

	if a.server != nil {
		g.Go(func() error {
			a.logger.InfowCtx(gctx, "Admin server listening", "port", a.config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	if err := a.Shutdown(ctx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down relay service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.source != nil {
		if err := a.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source close error: %w", err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Relay service exited successfully")
	return nil
}
