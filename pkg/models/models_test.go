package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMessageBuilder(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := NewChatMessageBuilder().
		WithID("m1").
		WithChannel("c1").
		WithGuild("g1").
		WithAuthor(ChatAuthor{ID: "u1", DisplayName: "alice#0001"}).
		WithContent("hello").
		WithAttachment(ChatAttachment{Filename: "a.txt", Data: []byte("x")}).
		WithEmbed(map[string]interface{}{"title": "t"}).
		WithTimestamp(ts).
		WithTraceID("trace").
		Build()

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "c1", msg.ChannelID)
	assert.Equal(t, "g1", msg.GuildID)
	assert.Equal(t, "alice#0001", msg.Author.DisplayName)
	assert.Len(t, msg.Attachments, 1)
	assert.Len(t, msg.Embeds, 1)
	assert.Equal(t, ts, msg.Timestamp)
	assert.Equal(t, "trace", msg.TraceID)
}

func TestChatMessageBuilder_DefaultTimestamp(t *testing.T) {
	msg := NewChatMessageBuilder().WithID("m1").Build()
	assert.False(t, msg.Timestamp.IsZero())
}

func TestValidateChatMessage(t *testing.T) {
	tests := []struct {
		name  string
		msg   *ChatMessage
		field string
	}{
		{name: "nil", msg: nil, field: "message"},
		{name: "missing id", msg: &ChatMessage{ChannelID: "c"}, field: "id"},
		{name: "missing channel", msg: &ChatMessage{ID: "m"}, field: "channel_id"},
		{
			name:  "attachment without name",
			msg:   &ChatMessage{ID: "m", ChannelID: "c", Attachments: []ChatAttachment{{URL: "http://x"}}},
			field: "attachments[0].filename",
		},
		{
			name:  "attachment without source",
			msg:   &ChatMessage{ID: "m", ChannelID: "c", Attachments: []ChatAttachment{{Filename: "a"}}},
			field: "attachments[0]",
		},
		{
			name: "valid",
			msg:  &ChatMessage{ID: "m", ChannelID: "c", Attachments: []ChatAttachment{{Filename: "a", Data: []byte{}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChatMessage(tt.msg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestChatMessageJSON(t *testing.T) {
	raw := `{"id":"1","channel_id":"2","author":{"id":"3","display_name":"bob","avatar_url":"http://a","bot":true},` +
		`"content":"hi","attachments":[{"filename":"f.bin","data":"AQI="}],"embeds":[{"title":"x"}]}`

	var msg ChatMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.True(t, msg.Author.Bot)
	assert.Equal(t, []byte{1, 2}, msg.Attachments[0].Data)
	assert.Equal(t, "x", msg.Embeds[0]["title"])
}
