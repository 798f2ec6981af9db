package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrorReply is appended as the assistant message when the completion backend fails.
const ErrorReply = "Sorry, I encountered an error. Please try again."

// Image is an encoded image payload. Data is standard base64.
type Image struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// DataURL returns the image as a data: URL suitable for display.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Data
}

// StagedImage is an image attached to the draft but not yet sent.
type StagedImage struct {
	Image   Image  `json:"image"`
	Preview string `json:"preview"`
}

// Message is a single immutable transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Image     *Image    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage builds a user message. img may be nil.
func NewUserMessage(content string, img *Image, now time.Time) Message {
	var attached *Image
	if img != nil {
		cp := *img
		attached = &cp
	}
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Image:     attached,
		CreatedAt: now,
	}
}

// NewAssistantMessage builds an assistant message.
func NewAssistantMessage(content string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: now,
	}
}

// Transcript is the ordered message history of one topic, oldest first.
type Transcript []Message

// Clone returns a copy that shares no backing array with t.
func (t Transcript) Clone() Transcript {
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}
