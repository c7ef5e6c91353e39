package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"duplicator/internal/config"
	"duplicator/internal/constants"
	"duplicator/internal/logger"
	"duplicator/internal/relay"
	apperrors "duplicator/pkg/errors"
	"duplicator/pkg/tracing"
)

// WebhookTarget identifies a Discord webhook and an optional thread inside
// the webhook's channel.
type WebhookTarget struct {
	ID       string
	Token    string
	ThreadID string
}

// ParseWebhookURL extracts the webhook id and token from a URL of the form
// https://discord.com/api[/vN]/webhooks/{id}/{token}[?thread_id=...].
func ParseWebhookURL(raw string) (WebhookTarget, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return WebhookTarget{}, apperrors.ErrConfig.WithMessage("invalid webhook url").WithCause(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return WebhookTarget{}, apperrors.ErrConfig.WithMessage("webhook url must be http or https")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p != "webhooks" {
			continue
		}
		if i+2 >= len(parts) {
			break
		}
		id, token := parts[i+1], parts[i+2]
		if id == "" || token == "" {
			break
		}
		return WebhookTarget{
			ID:       id,
			Token:    token,
			ThreadID: u.Query().Get("thread_id"),
		}, nil
	}

	return WebhookTarget{}, apperrors.ErrConfig.WithMessage("webhook url must contain /webhooks/{id}/{token}")
}

// WebhookDispatcher executes one webhook request per payload. The payload's
// username and avatar replace the webhook's defaults, and mention parsing is
// always disabled. Transport-level handling of 429 and 502 responses is left
// to discordgo; the dispatcher itself never retries.
type WebhookDispatcher struct {
	session *discordgo.Session
	target  WebhookTarget
	logger  logger.Logger
}

func NewWebhookDispatcher(cfg config.DeliveryConfig, log logger.Logger) (*WebhookDispatcher, error) {
	target, err := ParseWebhookURL(cfg.WebhookURL)
	if err != nil {
		return nil, err
	}

	session, err := discordgo.New("")
	if err != nil {
		return nil, apperrors.ErrConfig.WithMessage("failed to create discord session").WithCause(err)
	}
	session.MaxRestRetries = cfg.MaxRestRetries
	session.Client = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	session.UserAgent = "DiscordBot (relay-service)"

	return &WebhookDispatcher{
		session: session,
		target:  target,
		logger:  log,
	}, nil
}

func (d *WebhookDispatcher) Target() WebhookTarget {
	return d.target
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, payload relay.Payload) error {
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "delivery.webhook_execute")
	span.SetAttributes(
		attribute.Int("payload.files", len(payload.Files)),
		attribute.Int("payload.embeds", len(payload.Embeds)),
	)
	defer span.End()

	params, err := BuildWebhookParams(payload)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	start := time.Now()
	if d.target.ThreadID != "" {
		_, err = d.session.WebhookThreadExecute(d.target.ID, d.target.Token, false, d.target.ThreadID, params, discordgo.WithContext(ctx))
	} else {
		_, err = d.session.WebhookExecute(d.target.ID, d.target.Token, false, params, discordgo.WithContext(ctx))
	}
	if err != nil {
		err = classifyError(ctx, err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	d.logger.DebugwCtx(ctx, "Webhook executed",
		"files", len(params.Files),
		"embeds", len(params.Embeds),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// BuildWebhookParams converts a relay payload into discordgo webhook params.
func BuildWebhookParams(payload relay.Payload) (*discordgo.WebhookParams, error) {
	params := &discordgo.WebhookParams{
		Username:  payload.Username,
		AvatarURL: payload.AvatarURL,
		Files:     make([]*discordgo.File, 0, len(payload.Files)),
		Embeds:    make([]*discordgo.MessageEmbed, 0, len(payload.Embeds)),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}
	if payload.Content != nil {
		params.Content = *payload.Content
	}

	for _, f := range payload.Files {
		params.Files = append(params.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		})
	}

	for i, e := range payload.Embeds {
		embed, err := toMessageEmbed(e)
		if err != nil {
			return nil, apperrors.ErrDelivery.
				WithMessage("embed could not be encoded").
				WithCause(err).
				WithDetail("embed_index", i)
		}
		params.Embeds = append(params.Embeds, embed)
	}

	return params, nil
}

func toMessageEmbed(e relay.Embed) (*discordgo.MessageEmbed, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var embed discordgo.MessageEmbed
	if err := json.Unmarshal(raw, &embed); err != nil {
		return nil, err
	}
	return &embed, nil
}

func classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrTimeout.WithCause(err)
	}

	appErr := apperrors.ErrDelivery.WithCause(err)
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		appErr = appErr.WithDetail("status_code", restErr.Response.StatusCode)
		if restErr.Message != nil && restErr.Message.Message != "" {
			appErr = appErr.WithDetail("discord_message", restErr.Message.Message)
		}
	}
	return appErr
}

func (t WebhookTarget) String() string {
	if t.ThreadID != "" {
		return fmt.Sprintf("webhook %s (thread %s)", t.ID, t.ThreadID)
	}
	return fmt.Sprintf("webhook %s", t.ID)
}
