package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"airmini-gateway/internal/models"
)

// Request is one outgoing send to the assistant backend. ChatID is nil for a
// conversation the backend has not persisted yet.
type Request struct {
	ChatID      *string             `json:"chat_id"`
	Message     string              `json:"message"`
	TripContext *models.TripContext `json:"trip_context"`
}

// Transport opens streaming chat requests against the assistant backend.
type Transport struct {
	baseURL string
	client  *http.Client
}

func NewTransport(baseURL string, timeout time.Duration) *Transport {
	return &Transport{
		baseURL: baseURL,
		// Timeout bounds the whole stream, not just dialing. Zero means the
		// caller's context is the only bound.
		client: &http.Client{Timeout: timeout},
	}
}

// Open sends one chat request and returns the raw event stream. The caller
// owns the returned body and may cancel at any point through ctx; that
// cancellation comes back as an abort (IsAborted), not a transport failure.
// A non-2xx response is returned as *TransportError with the server payload
// preserved.
func (t *Transport) Open(ctx context.Context, token string, req Request) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if IsAborted(err) {
			return nil, err
		}
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, &TransportError{Status: resp.StatusCode, Body: payload}
	}

	if resp.Body == nil {
		return nil, &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("response has no body")}
	}

	return resp.Body, nil
}
