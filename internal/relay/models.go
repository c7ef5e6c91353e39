package relay

import (
	"bytes"
	"context"
	"io"
	"time"

	"duplicator/internal/constants"
)

// InboundMessage is a message observed on the source platform. It is
// read-only input: the relay never mutates it.
type InboundMessage struct {
	ID          string
	ChannelID   string
	GuildID     string
	Author      Author
	Content     string
	Attachments []Attachment
	Embeds      []Embed
	Timestamp   time.Time
	// TraceID correlates logs across hops when the source carries one.
	TraceID string
}

type Author struct {
	ID string
	// DisplayName is the rendered, unique-ish name used as the webhook username.
	DisplayName string
	AvatarURL   string
	Bot         bool
}

type Attachment struct {
	Filename    string
	ContentType string
	// Size is the size announced by the platform; 0 means unknown.
	Size    int64
	Content ContentSource
}

// ContentSource gives access to attachment bytes resolved by the source.
type ContentSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// BytesContent is an in-memory ContentSource.
type BytesContent []byte

func (b BytesContent) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Embed is an opaque rich-content document. Its keys follow the platform's
// embed schema and are not interpreted by the relay.
type Embed map[string]interface{}

// Payload is what gets pushed to the webhook for one relayed message.
type Payload struct {
	// Content is nil when the source message had no text.
	Content   *string
	Files     []File
	Embeds    []Embed
	Username  string
	AvatarURL string
}

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Outcome is the terminal state of one pass through the pipeline.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeAdaptFailed
	OutcomeDeliveryFailed
	OutcomeRecorded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return constants.OutcomeRejected
	case OutcomeAdaptFailed:
		return constants.OutcomeAdaptFailed
	case OutcomeDeliveryFailed:
		return constants.OutcomeDeliveryFailed
	case OutcomeRecorded:
		return constants.OutcomeRecorded
	default:
		return "unknown"
	}
}
