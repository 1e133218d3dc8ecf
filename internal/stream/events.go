package stream

import "encoding/json"

// Frame type tags on the wire. Anything else is a decode failure.
const (
	TypeTextDelta = "text-delta"
	TypeThought   = "data-thought"
	TypeMetadata  = "data-metadata"
	TypeError     = "error"
	TypeFinish    = "finish"
)

// Event is one typed unit of the chat stream. The concrete types below are
// the full set; consumers switch exhaustively.
type Event interface {
	isEvent()
}

// TextDeltaEvent carries an incremental slice of assistant text.
type TextDeltaEvent struct {
	Text string
}

// ThoughtEvent carries one reasoning-trace step.
type ThoughtEvent struct {
	Content string
	Phase   string
	Status  string
}

// MetadataEvent binds the server-assigned chat identity. Emitted once per
// persisted conversation, early in the stream.
type MetadataEvent struct {
	ChatID string
	Title  string
}

// ErrorEvent carries the raw server error payload untouched, so rate-limit
// JSON survives the relay.
type ErrorEvent struct {
	Payload json.RawMessage
}

// DoneEvent terminates the stream.
type DoneEvent struct{}

func (TextDeltaEvent) isEvent() {}
func (ThoughtEvent) isEvent()   {}
func (MetadataEvent) isEvent()  {}
func (ErrorEvent) isEvent()     {}
func (DoneEvent) isEvent()      {}
