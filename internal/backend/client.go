// Package backend is the REST client for the assistant backend's chat
// management surface. Streaming lives in internal/stream; everything here is
// plain request/response JSON.
package backend

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

// APIError is a non-2xx response from the assistant backend.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistant backend returned status %d", e.Status)
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("assistant backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return &APIError{Status: resp.StatusCode, Body: payload}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListChats fetches the caller's chat index.
func (c *Client) ListChats(ctx context.Context, token string) ([]models.ChatSummary, error) {
	var chats []models.ChatSummary
	if err := c.do(ctx, http.MethodGet, "/chats", token, nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// GetMessages fetches the full history of one chat.
func (c *Client) GetMessages(ctx context.Context, token, chatID string) ([]models.Message, error) {
	var messages []models.Message
	if err := c.do(ctx, http.MethodGet, "/chats/"+chatID+"/messages", token, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// UpdateChat renames a chat.
func (c *Client) UpdateChat(ctx context.Context, token, chatID, title string) (*models.ChatSummary, error) {
	var summary models.ChatSummary
	if err := c.do(ctx, http.MethodPatch, "/chats/"+chatID, token, models.ChatUpdate{Title: title}, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// DeleteChat removes a chat and its history.
func (c *Client) DeleteChat(ctx context.Context, token, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/chats/"+chatID, token, nil, nil)
}

// ClaimConversation submits an anonymous transcript for persistence and
// returns the newly issued chat.
func (c *Client) ClaimConversation(ctx context.Context, token string, messages []models.ClaimMessage) (*models.ChatSummary, error) {
	payload := struct {
		Messages []models.ClaimMessage `json:"messages"`
	}{Messages: messages}

	var summary models.ChatSummary
	if err := c.do(ctx, http.MethodPost, "/chats/claim-conversation", token, payload, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetTripContext fetches the stored trip context for a chat, nil when the
// backend has none.
func (c *Client) GetTripContext(ctx context.Context, token, chatID string) (*models.TripContext, error) {
	var resp struct {
		TripContext *models.TripContext `json:"trip_context"`
	}
	if err := c.do(ctx, http.MethodGet, "/trip-context/"+chatID, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.TripContext, nil
}
