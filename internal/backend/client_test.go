package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"airmini-gateway/internal/models"
)

func TestClient_ListChats(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats" || r.Method != http.MethodGet {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode([]models.ChatSummary{{ID: id}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	chats, err := c.ListChats(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(chats) != 1 || chats[0].ID != id {
		t.Errorf("Unexpected chats: %+v", chats)
	}
}

func TestClient_UpdateChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("Expected PATCH, got %s", r.Method)
		}
		var upd models.ChatUpdate
		json.NewDecoder(r.Body).Decode(&upd)
		if upd.Title != "Renamed" {
			t.Errorf("Expected title 'Renamed', got %q", upd.Title)
		}
		title := upd.Title
		json.NewEncoder(w).Encode(models.ChatSummary{ID: uuid.New(), Title: &title})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	summary, err := c.UpdateChat(context.Background(), "tok", "chat-1", "Renamed")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if summary.Title == nil || *summary.Title != "Renamed" {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestClient_ClaimConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats/claim-conversation" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		var payload struct {
			Messages []models.ClaimMessage `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		if len(payload.Messages) != 3 {
			t.Errorf("Expected 3 transcript messages, got %d", len(payload.Messages))
		}
		json.NewEncoder(w).Encode(models.ChatSummary{ID: uuid.New()})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	transcript := []models.ClaimMessage{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
	}
	summary, err := c.ClaimConversation(context.Background(), "tok", transcript)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if summary.ID == uuid.Nil {
		t.Error("Expected a chat id from the claim")
	}
}

func TestClient_GetTripContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trip-context/chat-1" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"trip_context":{"nationality_country_code":"KR","cabin":"economy"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	tc, err := c.GetTripContext(context.Background(), "tok", "chat-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tc == nil || tc.NationalityCountryCode != "KR" || tc.Cabin != "economy" {
		t.Errorf("Unexpected trip context: %+v", tc)
	}
}

func TestClient_NonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.GetMessages(context.Background(), "tok", "missing")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", apiErr.Status)
	}
}
