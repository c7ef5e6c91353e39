package models

import "time"

type ChatMessageBuilder struct {
	msg *ChatMessage
}

func NewChatMessageBuilder() *ChatMessageBuilder {
	return &ChatMessageBuilder{
		msg: &ChatMessage{},
	}
}

func (b *ChatMessageBuilder) WithID(id string) *ChatMessageBuilder {
	b.msg.ID = id
	return b
}

func (b *ChatMessageBuilder) WithChannel(channelID string) *ChatMessageBuilder {
	b.msg.ChannelID = channelID
	return b
}

func (b *ChatMessageBuilder) WithGuild(guildID string) *ChatMessageBuilder {
	b.msg.GuildID = guildID
	return b
}

func (b *ChatMessageBuilder) WithAuthor(author ChatAuthor) *ChatMessageBuilder {
	b.msg.Author = author
	return b
}

func (b *ChatMessageBuilder) WithContent(content string) *ChatMessageBuilder {
	b.msg.Content = content
	return b
}

func (b *ChatMessageBuilder) WithAttachment(att ChatAttachment) *ChatMessageBuilder {
	b.msg.Attachments = append(b.msg.Attachments, att)
	return b
}

func (b *ChatMessageBuilder) WithEmbed(embed map[string]interface{}) *ChatMessageBuilder {
	b.msg.Embeds = append(b.msg.Embeds, embed)
	return b
}

func (b *ChatMessageBuilder) WithTimestamp(timestamp time.Time) *ChatMessageBuilder {
	b.msg.Timestamp = timestamp
	return b
}

func (b *ChatMessageBuilder) WithTraceID(traceID string) *ChatMessageBuilder {
	b.msg.TraceID = traceID
	return b
}

func (b *ChatMessageBuilder) Build() *ChatMessage {
	if b.msg.Timestamp.IsZero() {
		b.msg.Timestamp = time.Now()
	}
	return b.msg
}
