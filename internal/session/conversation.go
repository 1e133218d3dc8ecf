// Package session owns the conversation state machine and the identity of
// each chat session: the ordered message list, the single in-flight
// assistant message while a stream is active, and the one-shot guards for
// identity rebinding and anonymous-conversation claiming.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"airmini-gateway/internal/models"
	"airmini-gateway/internal/stream"
)

// State of a conversation's send lifecycle.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrSendActive rejects a send while one is already in flight. The
	// attempt is dropped, never queued.
	ErrSendActive = errors.New("a send is already active")

	// ErrNotStreaming rejects events applied outside an active attempt.
	ErrNotStreaming = errors.New("no active stream")

	// ErrAlreadyClaimed rejects a second claim of the same anonymous session.
	ErrAlreadyClaimed = errors.New("conversation already claimed")

	// ErrClaimWhileStreaming rejects claiming mid-stream.
	ErrClaimWhileStreaming = errors.New("cannot claim while streaming")

	// ErrNothingToClaim rejects claiming an empty or already-persisted session.
	ErrNothingToClaim = errors.New("nothing to claim")
)

// Effect reports the externally visible consequences of applying one event,
// so the caller can relay frames, navigate, and invalidate caches without
// reaching into conversation internals.
type Effect struct {
	// Rebound is set when this event bound the server chat id for the first
	// time. The caller performs the one-time URL update.
	Rebound bool
	ChatID  string
	Title   string

	// Finished is set on the terminal event. NewChat additionally marks that
	// this attempt bound a fresh id, which obligates exactly one chat-list
	// cache invalidation.
	Finished bool
	NewChat  bool

	// Failed is set when the stream delivered an error event. The raw server
	// payload is preserved for the client.
	Failed       bool
	ErrorPayload json.RawMessage
}

// Conversation is one chat session's state machine. All methods are safe for
// concurrent use; events from a single stream must be applied in arrival
// order by a single goroutine.
type Conversation struct {
	mu sync.Mutex

	sessionID string
	chatID    string
	claimed   bool

	state    State
	messages []models.UIMessage
	inFlight int // index of the streaming assistant message, -1 when none

	tripContext *models.TripContext

	// redirected guards identity rebinding; it lives for one stream attempt
	// and resets on the next BeginSend.
	redirected bool
	// boundThisAttempt marks that this attempt produced a fresh server id.
	boundThisAttempt bool

	cancel context.CancelFunc
}

// New creates a conversation. chatID is the server-confirmed id when the
// caller navigated to an existing chat, or empty for a new one; a new
// conversation is addressed by a locally minted session id until the backend
// assigns an identity.
func New(sessionID, chatID string, initial []models.UIMessage) *Conversation {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Conversation{
		sessionID: sessionID,
		chatID:    chatID,
		state:     StateIdle,
		messages:  append([]models.UIMessage(nil), initial...),
		inFlight:  -1,
	}
}

func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// ChatID returns the server-confirmed id, or empty while unbound.
func (c *Conversation) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a copy of the current message list.
func (c *Conversation) Messages() []models.UIMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.UIMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// SetTripContext attaches (or clears, with nil) context for the next send.
// Past messages are never touched.
func (c *Conversation) SetTripContext(tc *models.TripContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tripContext = tc
}

func (c *Conversation) TripContext() *models.TripContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tripContext
}

// BeginSend starts a new attempt: the user message is appended immediately
// (optimistic), the rebind guard resets, and the state moves to Sending. A
// send during Sending/Streaming fails with ErrSendActive and changes
// nothing. Finished and Failed reset to Idle first, so re-sending after a
// failure needs no explicit recovery step.
func (c *Conversation) BeginSend(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateSending, StateStreaming:
		return ErrSendActive
	case StateFinished, StateFailed:
		c.state = StateIdle
	}

	c.messages = append(c.messages, models.UIMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Parts:     []models.MessagePart{{Type: models.PartText, Text: text}},
		CreatedAt: time.Now(),
	})

	c.state = StateSending
	c.redirected = false
	c.boundThisAttempt = false
	return nil
}

// CancelSend rolls back a BeginSend that was never dispatched: the
// optimistic user message comes off the list and the state returns to Idle.
// Only valid before the first stream event; once Streaming, use Stop.
func (c *Conversation) CancelSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSending {
		return
	}
	c.messages = c.messages[:len(c.messages)-1]
	c.state = StateIdle
}

// SetCancel registers the active stream's cancel function so an explicit
// stop can abort it.
func (c *Conversation) SetCancel(cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = cancel
}

// Stop cancels the active stream, if any.
func (c *Conversation) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Apply folds one stream event into the conversation. The first event of an
// attempt creates the in-flight assistant message and moves Sending to
// Streaming.
func (c *Conversation) Apply(ev stream.Event) (Effect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateSending:
		c.messages = append(c.messages, models.UIMessage{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			CreatedAt: time.Now(),
		})
		c.inFlight = len(c.messages) - 1
		c.state = StateStreaming
	case StateStreaming:
		// In-flight message already exists.
	default:
		return Effect{}, ErrNotStreaming
	}

	switch v := ev.(type) {
	case stream.TextDeltaEvent:
		c.appendTextLocked(v.Text)
		return Effect{}, nil

	case stream.ThoughtEvent:
		msg := &c.messages[c.inFlight]
		msg.Parts = append(msg.Parts, models.MessagePart{
			Type: models.PartThought,
			Thought: &models.ThoughtData{
				Content: v.Content,
				Phase:   v.Phase,
				Status:  v.Status,
			},
		})
		return Effect{}, nil

	case stream.MetadataEvent:
		// One rebind per attempt, and only for a still-anonymous session.
		if c.redirected || c.chatID != "" {
			return Effect{}, nil
		}
		c.redirected = true
		if v.ChatID == "" {
			return Effect{}, nil
		}
		c.chatID = v.ChatID
		c.boundThisAttempt = true
		return Effect{Rebound: true, ChatID: v.ChatID, Title: v.Title}, nil

	case stream.ErrorEvent:
		// Partial content stays; the attempt is over.
		c.inFlight = -1
		c.state = StateFailed
		return Effect{Failed: true, ErrorPayload: v.Payload}, nil

	case stream.DoneEvent:
		// An empty assistant message at done is valid.
		c.inFlight = -1
		c.state = StateFinished
		return Effect{Finished: true, NewChat: c.boundThisAttempt}, nil

	default:
		return Effect{}, fmt.Errorf("unknown event %T", ev)
	}
}

// appendTextLocked merges consecutive deltas into the trailing text part so
// rendering stays stable instead of fragmenting one sentence across parts.
func (c *Conversation) appendTextLocked(text string) {
	msg := &c.messages[c.inFlight]
	n := len(msg.Parts)
	if n > 0 && msg.Parts[n-1].Type == models.PartText {
		msg.Parts[n-1].Text += text
		return
	}
	msg.Parts = append(msg.Parts, models.MessagePart{Type: models.PartText, Text: text})
}

// Fail ends the attempt after a transport or decode error. Whatever partial
// content arrived stays in the list.
func (c *Conversation) Fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSending && c.state != StateStreaming {
		return
	}
	c.inFlight = -1
	c.state = StateFailed
	c.cancel = nil
}

// Abort ends the attempt silently after a client-initiated cancellation:
// back to Idle, no notification, appended parts untouched.
func (c *Conversation) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSending && c.state != StateStreaming {
		return
	}
	c.inFlight = -1
	c.state = StateIdle
	c.cancel = nil
}

// Finish clears the cancel hook after a completed attempt.
func (c *Conversation) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = nil
}

// ClaimTranscript validates the claim handoff and returns the flattened
// transcript to submit: text content only, role preserved, receipt order.
// It does not mark the session claimed; call MarkClaimed once the backend
// has issued the persisted id.
func (c *Conversation) ClaimTranscript() ([]models.ClaimMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateSending || c.state == StateStreaming {
		return nil, ErrClaimWhileStreaming
	}
	if c.claimed {
		return nil, ErrAlreadyClaimed
	}
	if c.chatID != "" || len(c.messages) == 0 {
		return nil, ErrNothingToClaim
	}

	out := make([]models.ClaimMessage, 0, len(c.messages))
	for i := range c.messages {
		msg := &c.messages[i]
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		out = append(out, models.ClaimMessage{Role: msg.Role, Content: msg.TextContent()})
	}
	return out, nil
}

// MarkClaimed binds the persisted id issued by the claim. Idempotent claims
// are rejected upstream by ClaimTranscript's guard.
func (c *Conversation) MarkClaimed(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claimed = true
	c.chatID = chatID
}
