package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"airmini-gateway/internal/cache"
	"airmini-gateway/internal/credits"
	"airmini-gateway/internal/middleware"
)

// CreditsHandler reports the caller's quota so the client can disable input
// pre-emptively. The server-side gate in the chat path stays authoritative.
type CreditsHandler struct {
	credits   *credits.Manager
	guestGate *credits.GuestGate
	cache     *cache.Cache
}

func NewCreditsHandler(creditManager *credits.Manager, guestGate *credits.GuestGate, cacheStore *cache.Cache) *CreditsHandler {
	return &CreditsHandler{credits: creditManager, guestGate: guestGate, cache: cacheStore}
}

func (h *CreditsHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if middleware.IsAuthenticated(ctx) {
		userID := middleware.GetUserID(ctx).String()
		data, err := h.cache.GetOrFetch(ctx, cache.CreditsTag(userID), func(ctx context.Context) ([]byte, error) {
			status, err := h.credits.Status(ctx, userID)
			if err != nil {
				return nil, err
			}
			return json.Marshal(status)
		})
		if err != nil {
			log.Printf("credit status failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to load credits", r))
			return
		}
		writeRaw(w, http.StatusOK, data)
		return
	}

	guestID := middleware.GetGuestID(ctx)
	if guestID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Guest ID is required", r))
		return
	}

	status, err := h.guestGate.Status(ctx, guestID)
	if err != nil {
		log.Printf("guest credit status failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to load credits", r))
		return
	}
	writeJSON(w, http.StatusOK, status)
}
