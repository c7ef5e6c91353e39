package relay

import (
	"context"
	"fmt"
	"io"
	"time"

	"duplicator/internal/constants"
	apperrors "duplicator/pkg/errors"
	"duplicator/pkg/metrics"
	"duplicator/pkg/tracing"
)

type AdapterConfig struct {
	MaxAttachmentBytes int64
	AttachmentTimeout  time.Duration
}

// Adapter turns an InboundMessage into a webhook Payload. Attachment bytes
// are read eagerly so that a payload is complete before dispatch starts.
type Adapter struct {
	cfg AdapterConfig
}

func NewAdapter(cfg AdapterConfig) *Adapter {
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = constants.DefaultMaxAttachmentBytes
	}
	if cfg.AttachmentTimeout <= 0 {
		cfg.AttachmentTimeout = constants.DefaultAttachmentTimeout
	}
	return &Adapter{cfg: cfg}
}

// Adapt builds the payload for msg. The only failure mode is an unreadable
// or oversized attachment, reported as an ADAPTATION_ERROR.
func (a *Adapter) Adapt(ctx context.Context, msg InboundMessage) (Payload, error) {
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "relay.adapt")
	defer span.End()

	payload := Payload{
		Files:     make([]File, 0, len(msg.Attachments)),
		Embeds:    make([]Embed, 0, len(msg.Embeds)),
		Username:  msg.Author.DisplayName,
		AvatarURL: msg.Author.AvatarURL,
	}

	if msg.Content != "" {
		content := msg.Content
		payload.Content = &content
	}

	if len(msg.Attachments) > 0 {
		readCtx, cancel := context.WithTimeout(ctx, a.cfg.AttachmentTimeout)
		defer cancel()

		for i, att := range msg.Attachments {
			file, err := a.readAttachment(readCtx, att)
			if err != nil {
				return Payload{}, apperrors.ErrAdaptation.
					WithCause(err).
					WithDetail("attachment", att.Filename).
					WithDetail("index", i)
			}
			payload.Files = append(payload.Files, file)
		}
	}

	for _, embed := range msg.Embeds {
		payload.Embeds = append(payload.Embeds, CopyEmbed(embed))
	}

	return payload, nil
}

func (a *Adapter) readAttachment(ctx context.Context, att Attachment) (File, error) {
	limit := a.cfg.MaxAttachmentBytes
	if att.Content == nil {
		return File{}, fmt.Errorf("attachment %q has no content source", att.Filename)
	}
	if att.Size > limit {
		return File{}, fmt.Errorf("attachment %q is %d bytes, limit is %d", att.Filename, att.Size, limit)
	}

	rc, err := att.Content.Open(ctx)
	if err != nil {
		return File{}, fmt.Errorf("open attachment %q: %w", att.Filename, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return File{}, fmt.Errorf("read attachment %q: %w", att.Filename, err)
	}
	if int64(len(data)) > limit {
		return File{}, fmt.Errorf("attachment %q exceeds limit of %d bytes", att.Filename, limit)
	}
	if att.Size > 0 && int64(len(data)) != att.Size {
		return File{}, fmt.Errorf("attachment %q: read %d bytes, expected %d", att.Filename, len(data), att.Size)
	}

	metrics.ObserveAttachmentSize(len(data))

	return File{
		Name:        att.Filename,
		ContentType: att.ContentType,
		Data:        data,
	}, nil
}

// CopyEmbed returns a deep copy of e.
func CopyEmbed(e Embed) Embed {
	if e == nil {
		return nil
	}
	return Embed(copyMap(e))
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyMap(t)
	case Embed:
		return CopyEmbed(t)
	case []interface{}:
		if t == nil {
			return t
		}
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	case []map[string]interface{}:
		if t == nil {
			return t
		}
		out := make([]map[string]interface{}, len(t))
		for i, item := range t {
			out[i] = copyMap(item)
		}
		return out
	case []string:
		if t == nil {
			return t
		}
		return append([]string{}, t...)
	case []byte:
		if t == nil {
			return t
		}
		return append([]byte{}, t...)
	default:
		return v
	}
}
