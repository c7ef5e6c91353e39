package source

import (
	"context"
	"fmt"

	"duplicator/internal/broker"
	"duplicator/internal/config"
	"duplicator/internal/constants"
	"duplicator/internal/logger"
	"duplicator/internal/relay"
)

// Source observes message-arrived events and hands them to the relay.
// Start blocks until ctx is done; events are sent on sink in arrival order.
type Source interface {
	Name() string
	Start(ctx context.Context, sink chan<- relay.InboundMessage) error
	Check(ctx context.Context) error
	Close() error
}

func New(cfg *config.Config, log logger.Logger) (Source, error) {
	switch cfg.Source.Type {
	case constants.SourceTypeDiscord, "":
		return NewDiscord(cfg.Source.Discord, log), nil
	case constants.SourceTypeKafka:
		consumer, err := broker.NewConsumer(cfg.Broker.Kafka, log)
		if err != nil {
			return nil, err
		}
		consumer.SetServiceName(constants.ServiceName)
		return NewKafka(consumer, cfg.Broker.Kafka.InputTopic, log), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Source.Type)
	}
}

func emit(ctx context.Context, sink chan<- relay.InboundMessage, msg relay.InboundMessage) error {
	select {
	case sink <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
