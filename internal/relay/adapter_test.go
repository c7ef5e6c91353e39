package relay

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "duplicator/pkg/errors"
)

type failingContent struct{ err error }

func (f failingContent) Open(context.Context) (io.ReadCloser, error) { return nil, f.err }

type blockingContent struct{}

func (blockingContent) Open(ctx context.Context) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAdapter_TextAndIdentity(t *testing.T) {
	a := NewAdapter(AdapterConfig{})
	msg := InboundMessage{
		ID:        "m1",
		ChannelID: "chanA",
		Author:    Author{ID: "u1", DisplayName: "alice#1234", AvatarURL: "https://cdn.example/a.png"},
		Content:   "hello @everyone",
	}

	p, err := a.Adapt(context.Background(), msg)
	require.NoError(t, err)

	require.NotNil(t, p.Content)
	assert.Equal(t, "hello @everyone", *p.Content)
	assert.Equal(t, "alice#1234", p.Username)
	assert.Equal(t, "https://cdn.example/a.png", p.AvatarURL)
	assert.NotNil(t, p.Files)
	assert.Empty(t, p.Files)
	assert.NotNil(t, p.Embeds)
	assert.Empty(t, p.Embeds)
}

func TestAdapter_EmptyTextIsAbsent(t *testing.T) {
	p, err := NewAdapter(AdapterConfig{}).Adapt(context.Background(), InboundMessage{ID: "m1"})
	require.NoError(t, err)
	assert.Nil(t, p.Content)
}

func TestAdapter_AttachmentsInOrder(t *testing.T) {
	first := []byte{0x00, 0x01, 0xff, 0x10}
	second := []byte("second file\n")
	msg := InboundMessage{
		ID: "m1",
		Attachments: []Attachment{
			{Filename: "b.bin", ContentType: "application/octet-stream", Size: int64(len(first)), Content: BytesContent(first)},
			{Filename: "a.txt", ContentType: "text/plain", Content: BytesContent(second)},
		},
	}

	p, err := NewAdapter(AdapterConfig{}).Adapt(context.Background(), msg)
	require.NoError(t, err)

	require.Len(t, p.Files, 2)
	assert.Equal(t, File{Name: "b.bin", ContentType: "application/octet-stream", Data: first}, p.Files[0])
	assert.Equal(t, File{Name: "a.txt", ContentType: "text/plain", Data: second}, p.Files[1])
}

func TestAdapter_EmbedsDeepCopied(t *testing.T) {
	src := Embed{
		"title": "release",
		"color": float64(3447003),
		"fields": []interface{}{
			map[string]interface{}{"name": "a", "value": "1", "inline": true},
		},
		"footer":    map[string]interface{}{"text": "f"},
		"thumbnail": nil,
	}
	msg := InboundMessage{ID: "m1", Embeds: []Embed{src}}

	p, err := NewAdapter(AdapterConfig{}).Adapt(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, p.Embeds, 1)
	assert.Equal(t, src, p.Embeds[0])

	p.Embeds[0]["footer"].(map[string]interface{})["text"] = "changed"
	p.Embeds[0]["fields"].([]interface{})[0].(map[string]interface{})["value"] = "2"
	assert.Equal(t, "f", src["footer"].(map[string]interface{})["text"])
	assert.Equal(t, "1", src["fields"].([]interface{})[0].(map[string]interface{})["value"])
}

func TestAdapter_AttachmentFailures(t *testing.T) {
	tests := []struct {
		name string
		cfg  AdapterConfig
		att  Attachment
	}{
		{
			name: "no content source",
			att:  Attachment{Filename: "x"},
		},
		{
			name: "open fails",
			att:  Attachment{Filename: "x", Content: failingContent{err: errors.New("404")}},
		},
		{
			name: "declared size above limit",
			cfg:  AdapterConfig{MaxAttachmentBytes: 4},
			att:  Attachment{Filename: "x", Size: 5, Content: BytesContent("12345")},
		},
		{
			name: "body above limit",
			cfg:  AdapterConfig{MaxAttachmentBytes: 4},
			att:  Attachment{Filename: "x", Content: BytesContent("12345")},
		},
		{
			name: "size mismatch",
			att:  Attachment{Filename: "x", Size: 10, Content: BytesContent("123")},
		},
		{
			name: "timeout",
			cfg:  AdapterConfig{AttachmentTimeout: 20 * time.Millisecond},
			att:  Attachment{Filename: "x", Content: blockingContent{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := InboundMessage{
				ID: "m1",
				Attachments: []Attachment{
					{Filename: "ok", Content: BytesContent("ok")},
					tt.att,
				},
			}

			_, err := NewAdapter(tt.cfg).Adapt(context.Background(), msg)
			require.Error(t, err)
			assert.True(t, apperrors.IsAdaptation(err))

			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "x", appErr.Details["attachment"])
			assert.Equal(t, 1, appErr.Details["index"])
		})
	}
}

func TestCopyEmbed_Nil(t *testing.T) {
	assert.Nil(t, CopyEmbed(nil))
}
