package broker

import (
	"context"

	"duplicator/pkg/models"
)

// OutcomePublisher writes relay outcome events keyed by message id.
type OutcomePublisher struct {
	producer Producer
	topic    string
}

func NewOutcomePublisher(producer Producer, topic string) *OutcomePublisher {
	return &OutcomePublisher{producer: producer, topic: topic}
}

func (p *OutcomePublisher) PublishOutcome(ctx context.Context, event models.RelayOutcomeEvent) error {
	return p.producer.Publish(ctx, p.topic, event.MessageID, event)
}
