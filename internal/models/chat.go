package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message roles as stored by the assistant backend.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a persisted conversation row as the assistant backend returns it.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Part kinds of a UIMessage.
const (
	PartText    = "text"
	PartThought = "thought"
)

// Thought phases emitted by the assistant backend.
const (
	PhaseAnalysis   = "analysis"
	PhaseSearch     = "search"
	PhaseKnowledge  = "knowledge"
	PhaseVisa       = "visa"
	PhaseValidation = "validation"
	PhaseOther      = "other"
)

// Thought statuses.
const (
	ThoughtPending  = "pending"
	ThoughtComplete = "complete"
)

// ThoughtData is an intermediate reasoning trace emitted mid-generation.
type ThoughtData struct {
	Content string `json:"content"`
	Phase   string `json:"phase"`
	Status  string `json:"status"`
}

// MessagePart is one ordered segment of a UI message, discriminated by Type.
// Text parts hold Text; thought parts hold Thought. Parts are append-only
// while a message streams and never reordered afterwards.
type MessagePart struct {
	Type    string       `json:"type"`
	Text    string       `json:"text,omitempty"`
	Thought *ThoughtData `json:"thought,omitempty"`
}

// UIMessage is the part-structured message shape the web client renders.
type UIMessage struct {
	ID        string        `json:"id"`
	Role      string        `json:"role"`
	Parts     []MessagePart `json:"parts"`
	CreatedAt time.Time     `json:"created_at"`
}

// TextContent flattens the text parts of a message, in order. Thought parts
// are presentation-only and excluded.
func (m *UIMessage) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ConvertToUIMessages maps backend rows to the part-structured UI shape.
func ConvertToUIMessages(messages []Message) []UIMessage {
	out := make([]UIMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, UIMessage{
			ID:        msg.ID.String(),
			Role:      msg.Role,
			Parts:     []MessagePart{{Type: PartText, Text: msg.Content}},
			CreatedAt: msg.CreatedAt,
		})
	}
	return out
}

// ChatSummary is the lightweight chat index entry shown in the sidebar.
type ChatSummary struct {
	ID        uuid.UUID `json:"id"`
	Title     *string   `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatUpdate is the rename payload.
type ChatUpdate struct {
	Title string `json:"title"`
}

// ClaimMessage is one transcript entry submitted when an anonymous
// conversation is claimed after sign-in.
type ClaimMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SendRequest is the browser-facing chat payload.
type SendRequest struct {
	SessionID   string       `json:"session_id,omitempty"`
	ChatID      string       `json:"chat_id,omitempty"`
	Message     string       `json:"message"`
	TripContext *TripContext `json:"trip_context,omitempty"`
}
