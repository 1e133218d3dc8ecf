package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxFrameSize caps a single SSE frame (64KB).
const maxFrameSize = 64 * 1024

var doneSentinel = []byte("[DONE]")

// Decoder incrementally parses the raw event stream into typed events. It is
// strictly forward-only and holds no state across streams: restarting means
// opening a new transport call.
type Decoder struct {
	reader *bufio.Reader
	done   bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r)}
}

// frame is the JSON envelope carried on each data line.
type frame struct {
	Type  string          `json:"type"`
	Delta string          `json:"delta,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type thoughtData struct {
	Content string `json:"content"`
	Phase   string `json:"phase"`
	Status  string `json:"status"`
}

type metadataData struct {
	ChatID string `json:"chatId"`
	Title  string `json:"title"`
}

// Next returns the next event in arrival order. The sequence is finite and
// ends with DoneEvent; after that, Next returns io.EOF. A malformed frame or
// unknown type tag fails the stream with *DecodeError, as does the stream
// ending before a terminal event.
func (d *Decoder) Next(ctx context.Context) (Event, error) {
	if d.done {
		return nil, io.EOF
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := d.readFrame()
	if err != nil {
		if err == io.EOF {
			// A well-formed stream closes with finish or [DONE].
			return nil, &DecodeError{Err: fmt.Errorf("stream ended before terminal event")}
		}
		if IsAborted(err) {
			return nil, err
		}
		var derr *DecodeError
		if errors.As(err, &derr) {
			return nil, derr
		}
		return nil, &TransportError{Err: err}
	}

	if bytes.Equal(data, doneSentinel) {
		d.done = true
		return DoneEvent{}, nil
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &DecodeError{Frame: data, Err: err}
	}

	switch f.Type {
	case TypeTextDelta:
		return TextDeltaEvent{Text: f.Delta}, nil

	case TypeThought:
		var td thoughtData
		if err := json.Unmarshal(f.Data, &td); err != nil {
			return nil, &DecodeError{Frame: data, Err: err}
		}
		return ThoughtEvent{Content: td.Content, Phase: td.Phase, Status: td.Status}, nil

	case TypeMetadata:
		var md metadataData
		if err := json.Unmarshal(f.Data, &md); err != nil {
			return nil, &DecodeError{Frame: data, Err: err}
		}
		return MetadataEvent{ChatID: md.ChatID, Title: md.Title}, nil

	case TypeError:
		payload := f.Data
		if len(payload) == 0 {
			payload = data
		}
		return ErrorEvent{Payload: payload}, nil

	case TypeFinish:
		d.done = true
		return DoneEvent{}, nil

	default:
		return nil, &DecodeError{Frame: data, Err: fmt.Errorf("unknown frame type %q", f.Type)}
	}
}

// readFrame reads one SSE event's data payload. Partial frames are buffered
// until the blank-line delimiter arrives; multiple data lines join with \n.
func (d *Decoder) readFrame() ([]byte, error) {
	var dataLines [][]byte
	size := 0

	for {
		line, err := d.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		atEOF := err == io.EOF

		line = bytes.TrimRight(line, "\r\n")
		if atEOF {
			if p, ok := dataPayload(line); ok {
				dataLines = append(dataLines, p)
			}
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			return nil, io.EOF
		}

		// Blank line ends the event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if payload, ok := dataPayload(line); ok {
			size += len(payload)
			if size > maxFrameSize {
				// A runaway frame is a protocol violation, not a transport
				// failure.
				return nil, &DecodeError{Err: fmt.Errorf("frame exceeds %d bytes", maxFrameSize)}
			}
			dataLines = append(dataLines, payload)
		}
		// Other SSE fields (id:, event:, retry:, comments) are ignored.
	}
}

func dataPayload(line []byte) ([]byte, bool) {
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil, false
	}
	return bytes.TrimLeft(bytes.TrimPrefix(line, []byte("data:")), " "), true
}
