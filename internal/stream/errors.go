package stream

import (
	"context"
	"errors"
	"fmt"
)

// TransportError is a non-success response or unreachable backend. Body holds
// the raw server payload when one was readable.
type TransportError struct {
	Status int
	Body   []byte
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chat stream request failed with status %d", e.Status)
	}
	return fmt.Sprintf("chat stream request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is a malformed or unrecognized stream frame. It is fatal for
// the stream; there is no resynchronization.
type DecodeError struct {
	Frame []byte
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed stream frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsAborted reports whether err is a client-initiated cancellation. Aborts
// are expected during navigation and must never surface as user-visible
// failures.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled)
}
