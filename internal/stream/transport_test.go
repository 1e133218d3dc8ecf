package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTransport_OpenSuccess(t *testing.T) {
	var gotAuth, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"type\":\"finish\"}\n\n"))
	}))
	defer srv.Close()

	chatID := "11111111-1111-1111-1111-111111111111"
	tr := NewTransport(srv.URL, 10*time.Second)
	body, err := tr.Open(context.Background(), "tok-123", Request{
		ChatID:  &chatID,
		Message: "Do I need a visa for Japan?",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer body.Close()

	if gotAuth != "Bearer tok-123" {
		t.Errorf("Expected bearer token forwarded, got %q", gotAuth)
	}

	var req Request
	if err := json.Unmarshal([]byte(gotBody), &req); err != nil {
		t.Fatalf("Failed to parse forwarded body: %v", err)
	}
	if req.ChatID == nil || *req.ChatID != chatID {
		t.Errorf("Expected chat_id %q, got %v", chatID, req.ChatID)
	}
	if req.Message != "Do I need a visa for Japan?" {
		t.Errorf("Unexpected message: %q", req.Message)
	}

	data, _ := io.ReadAll(body)
	if !strings.Contains(string(data), "finish") {
		t.Errorf("Expected stream body passed through, got %q", data)
	}
}

func TestTransport_NoTokenOmitsHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, 10*time.Second)
	body, err := tr.Open(context.Background(), "", Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	body.Close()

	if gotAuth != "" {
		t.Errorf("Expected no Authorization header for guest, got %q", gotAuth)
	}
}

func TestTransport_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"RATE_LIMIT","resetAt":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL, 10*time.Second)
	_, err := tr.Open(context.Background(), "tok", Request{Message: "hi"})

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if terr.Status != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", terr.Status)
	}
	if !strings.Contains(string(terr.Body), "RATE_LIMIT") {
		t.Errorf("Expected server payload preserved, got %q", terr.Body)
	}
}

func TestTransport_Aborted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect; otherwise the request context never cancels.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	tr := NewTransport(srv.URL, 10*time.Second)
	_, err := tr.Open(ctx, "tok", Request{Message: "hi"})
	if !IsAborted(err) {
		t.Errorf("Expected aborted error on cancellation, got %v", err)
	}

	var terr *TransportError
	if errors.As(err, &terr) {
		t.Errorf("Cancellation must not surface as TransportError")
	}
}

func TestTransport_BackendUnreachable(t *testing.T) {
	tr := NewTransport("http://127.0.0.1:1", time.Second)
	_, err := tr.Open(context.Background(), "tok", Request{Message: "hi"})

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("Expected TransportError for unreachable backend, got %v", err)
	}
	if terr.Status != 0 {
		t.Errorf("Expected no status for connection failure, got %d", terr.Status)
	}
}
