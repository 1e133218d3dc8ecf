package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Encoder writes typed events back out as SSE frames, mirroring the grammar
// the Decoder consumes. The gateway uses it to relay the assistant stream to
// the browser without re-shaping payloads.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

func NewEncoder(w io.Writer) *Encoder {
	enc := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		enc.flusher = f
	}
	return enc
}

// WriteEvent emits one frame and flushes so deltas reach the client as they
// arrive rather than on buffer boundaries.
func (e *Encoder) WriteEvent(ev Event) error {
	var f frame

	switch v := ev.(type) {
	case TextDeltaEvent:
		f = frame{Type: TypeTextDelta, Delta: v.Text}
	case ThoughtEvent:
		data, err := json.Marshal(thoughtData{Content: v.Content, Phase: v.Phase, Status: v.Status})
		if err != nil {
			return err
		}
		f = frame{Type: TypeThought, Data: data}
	case MetadataEvent:
		data, err := json.Marshal(metadataData{ChatID: v.ChatID, Title: v.Title})
		if err != nil {
			return err
		}
		f = frame{Type: TypeMetadata, Data: data}
	case ErrorEvent:
		f = frame{Type: TypeError, Data: v.Payload}
	case DoneEvent:
		f = frame{Type: TypeFinish}
	default:
		return fmt.Errorf("unknown event %T", ev)
	}

	body, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", body); err != nil {
		return err
	}
	e.flush()
	return nil
}

// WriteDone emits the [DONE] sentinel after the finish frame.
func (e *Encoder) WriteDone() error {
	if _, err := fmt.Fprint(e.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	e.flush()
	return nil
}

func (e *Encoder) flush() {
	if e.flusher != nil {
		e.flusher.Flush()
	}
}
