package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"airmini-gateway/internal/backend"
	"airmini-gateway/internal/cache"
	"airmini-gateway/internal/middleware"
	"airmini-gateway/internal/models"
)

// TripContextHandler proxies stored trip context, cached per chat.
type TripContextHandler struct {
	backend *backend.Client
	cache   *cache.Cache
}

func NewTripContextHandler(backendClient *backend.Client, cacheStore *cache.Cache) *TripContextHandler {
	return &TripContextHandler{backend: backendClient, cache: cacheStore}
}

func (h *TripContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatId")
	token := middleware.GetToken(ctx)

	data, err := h.cache.GetOrFetch(ctx, cache.TripContextTag(chatID), func(ctx context.Context) ([]byte, error) {
		tc, err := h.backend.GetTripContext(ctx, token, chatID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			TripContext *models.TripContext `json:"trip_context"`
		}{TripContext: tc})
	})
	if err != nil {
		// A missing context is not an error for the client; it just has
		// nothing to prefill.
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			writeJSON(w, http.StatusOK, map[string]interface{}{"trip_context": nil})
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResp("BACKEND_ERROR", "Failed to load trip context", r))
		return
	}

	writeRaw(w, http.StatusOK, data)
}
