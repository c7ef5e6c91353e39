package source

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"duplicator/internal/broker"
	"duplicator/internal/constants"
	"duplicator/internal/logger"
	"duplicator/internal/relay"
	"duplicator/pkg/metrics"
	"duplicator/pkg/models"
)

// Kafka reads ChatMessage JSON published by an external gateway bridge.
type Kafka struct {
	consumer broker.Consumer
	topic    string
	logger   logger.Logger
	client   *http.Client
	running  atomic.Bool
}

func NewKafka(consumer broker.Consumer, topic string, log logger.Logger) *Kafka {
	return &Kafka{
		consumer: consumer,
		topic:    topic,
		logger:   log,
		client:   newHTTPClient(),
	}
}

func (k *Kafka) Name() string { return constants.SourceTypeKafka }

func (k *Kafka) Start(ctx context.Context, sink chan<- relay.InboundMessage) error {
	k.running.Store(true)
	defer k.running.Store(false)

	err := k.consumer.Consume(ctx, k.topic, func(ctx context.Context, msg models.ChatMessage) error {
		metrics.IncSourceEvent(constants.SourceTypeKafka)
		return emit(ctx, sink, FromChatMessage(msg, k.client))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (k *Kafka) Check(context.Context) error {
	if !k.running.Load() {
		return errors.New("kafka consumer not running")
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.consumer.Close()
}

// FromChatMessage maps a broker message to the relay's inbound model.
// Inline attachment data wins over the URL.
func FromChatMessage(msg models.ChatMessage, client *http.Client) relay.InboundMessage {
	in := relay.InboundMessage{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
		Author: relay.Author{
			ID:          msg.Author.ID,
			DisplayName: msg.Author.DisplayName,
			AvatarURL:   msg.Author.AvatarURL,
			Bot:         msg.Author.Bot,
		},
		Content:     msg.Content,
		Attachments: make([]relay.Attachment, 0, len(msg.Attachments)),
		Embeds:      make([]relay.Embed, 0, len(msg.Embeds)),
		Timestamp:   msg.Timestamp,
		TraceID:     msg.TraceID,
	}

	for _, a := range msg.Attachments {
		var content relay.ContentSource
		if a.Data != nil {
			content = relay.BytesContent(a.Data)
		} else {
			content = NewHTTPContent(a.URL, client)
		}
		in.Attachments = append(in.Attachments, relay.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			Content:     content,
		})
	}

	for _, e := range msg.Embeds {
		in.Embeds = append(in.Embeds, relay.Embed(e))
	}

	return in
}
