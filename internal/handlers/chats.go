package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"airmini-gateway/internal/backend"
	"airmini-gateway/internal/cache"
	"airmini-gateway/internal/middleware"
	"airmini-gateway/internal/models"
	"airmini-gateway/internal/session"
)

// ChatsHandler proxies the chat management surface with read-through
// caching. Mutations invalidate tags; reads re-fetch from the backend.
type ChatsHandler struct {
	backend  *backend.Client
	cache    *cache.Cache
	registry *session.Registry
}

func NewChatsHandler(backendClient *backend.Client, cacheStore *cache.Cache, registry *session.Registry) *ChatsHandler {
	return &ChatsHandler{backend: backendClient, cache: cacheStore, registry: registry}
}

func (h *ChatsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	token := middleware.GetToken(ctx)

	data, err := h.cache.GetOrFetch(ctx, cache.ChatsTag(userID.String()), func(ctx context.Context) ([]byte, error) {
		chats, err := h.backend.ListChats(ctx, token)
		if err != nil {
			return nil, err
		}
		return json.Marshal(chats)
	})
	if err != nil {
		h.backendError(w, r, err, "Failed to list chats")
		return
	}

	writeRaw(w, http.StatusOK, data)
}

func (h *ChatsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")
	token := middleware.GetToken(ctx)

	data, err := h.cache.GetOrFetch(ctx, cache.ChatTag(chatID), func(ctx context.Context) ([]byte, error) {
		messages, err := h.backend.GetMessages(ctx, token, chatID)
		if err != nil {
			return nil, err
		}
		// The client renders part-structured messages; convert before
		// caching so cache hits serve the same shape.
		return json.Marshal(models.ConvertToUIMessages(messages))
	})
	if err != nil {
		h.backendError(w, r, err, "Failed to load messages")
		return
	}

	writeRaw(w, http.StatusOK, data)
}

func (h *ChatsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(ctx)

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Title is required", r))
		return
	}

	summary, err := h.backend.UpdateChat(ctx, middleware.GetToken(ctx), chatID, req.Title)
	if err != nil {
		h.backendError(w, r, err, "Failed to update chat")
		return
	}

	if err := h.cache.Invalidate(ctx, cache.ChatsTag(userID.String())); err != nil {
		log.Printf("cache invalidation failed: %v", err)
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ChatsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(ctx)

	if err := h.backend.DeleteChat(ctx, middleware.GetToken(ctx), chatID); err != nil {
		h.backendError(w, r, err, "Failed to delete chat")
		return
	}

	if err := h.cache.Invalidate(ctx, cache.ChatsTag(userID.String()), cache.ChatTag(chatID)); err != nil {
		log.Printf("cache invalidation failed: %v", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Claim converts a guest session's locally-held transcript into a persisted
// conversation for the now-authenticated caller. At most once per session;
// never while streaming.
func (h *ChatsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "session_id is required", r))
		return
	}

	conv, err := h.registry.Lookup(ctx, req.SessionID)
	if err != nil {
		log.Printf("session lookup failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to load session", r))
		return
	}
	if conv == nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Nothing to claim for this session", r))
		return
	}

	transcript, err := conv.ClaimTranscript()
	if err != nil {
		switch {
		case errors.Is(err, session.ErrClaimWhileStreaming):
			writeJSON(w, http.StatusConflict, errorResp("STREAM_ACTIVE", "Cannot claim while a message is streaming", r))
		case errors.Is(err, session.ErrAlreadyClaimed):
			writeJSON(w, http.StatusConflict, errorResp("ALREADY_CLAIMED", "Conversation was already claimed", r))
		default:
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Nothing to claim for this session", r))
		}
		return
	}

	summary, err := h.backend.ClaimConversation(ctx, middleware.GetToken(ctx), transcript)
	if err != nil {
		h.backendError(w, r, err, "Failed to claim conversation")
		return
	}

	conv.MarkClaimed(summary.ID.String())
	if err := h.registry.Drop(ctx, req.SessionID); err != nil {
		log.Printf("failed to drop claimed session %s: %v", req.SessionID, err)
	}
	if err := h.cache.Invalidate(ctx, cache.ChatsTag(userID.String())); err != nil {
		log.Printf("cache invalidation failed: %v", err)
	}

	writeJSON(w, http.StatusCreated, summary)
}

func (h *ChatsHandler) backendError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat not found", r))
			return
		case http.StatusForbidden:
			writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
			return
		}
	}
	log.Printf("%s: %v", msg, err)
	writeJSON(w, http.StatusBadGateway, errorResp("BACKEND_ERROR", msg, r))
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
