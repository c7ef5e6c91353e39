package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateChatMessage(msg *ChatMessage) error {
	if msg == nil {
		return &ValidationError{
			Field:   "message",
			Message: "chat message cannot be nil",
		}
	}

	if msg.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "message ID is required",
		}
	}

	if msg.ChannelID == "" {
		return &ValidationError{
			Field:   "channel_id",
			Message: "channel ID is required",
		}
	}

	for i, att := range msg.Attachments {
		if att.Filename == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("attachments[%d].filename", i),
				Message: "attachment filename is required",
			}
		}
		if att.URL == "" && att.Data == nil {
			return &ValidationError{
				Field:   fmt.Sprintf("attachments[%d]", i),
				Message: "attachment needs a url or inline data",
			}
		}
	}

	return nil
}
