package models

import "time"

// ChatMessage is the broker representation of a message observed on the
// source platform. Attachments carry either inline Data or a URL to fetch.
type ChatMessage struct {
	ID          string                   `json:"id"`
	ChannelID   string                   `json:"channel_id"`
	GuildID     string                   `json:"guild_id,omitempty"`
	Author      ChatAuthor               `json:"author"`
	Content     string                   `json:"content"`
	Attachments []ChatAttachment         `json:"attachments,omitempty"`
	Embeds      []map[string]interface{} `json:"embeds,omitempty"`
	Timestamp   time.Time                `json:"timestamp"`
	TraceID     string                   `json:"trace_id,omitempty"`
}

type ChatAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Bot         bool   `json:"bot"`
}

type ChatAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	URL         string `json:"url,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// RelayOutcomeEvent is published after a message that passed the filter
// reaches a terminal state.
type RelayOutcomeEvent struct {
	EventType  string    `json:"event_type"`
	TraceID    string    `json:"trace_id,omitempty"`
	MessageID  string    `json:"message_id"`
	ChannelID  string    `json:"channel_id"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	DurationMs float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
