package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"airmini-gateway/internal/cache"
	"airmini-gateway/internal/credits"
	"airmini-gateway/internal/middleware"
	"airmini-gateway/internal/models"
	"airmini-gateway/internal/session"
	"airmini-gateway/internal/stream"
)

// ChatHandler drives the streaming send path: credit gate, state machine,
// upstream transport, and the SSE relay back to the browser.
type ChatHandler struct {
	registry  *session.Registry
	transport *stream.Transport
	credits   *credits.Manager
	guestGate *credits.GuestGate
	cache     *cache.Cache
}

func NewChatHandler(
	registry *session.Registry,
	transport *stream.Transport,
	creditManager *credits.Manager,
	guestGate *credits.GuestGate,
	cacheStore *cache.Cache,
) *ChatHandler {
	return &ChatHandler{
		registry:  registry,
		transport: transport,
		credits:   creditManager,
		guestGate: guestGate,
		cache:     cacheStore,
	}
}

// Stream handles POST /api/v1/chat. One accepted send drives exactly one
// pass through the conversation state machine and relays the assistant
// stream to the caller as server-sent events.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req models.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	guestID := middleware.GetGuestID(ctx)
	isAuth := middleware.IsAuthenticated(ctx)

	if !isAuth && guestID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Guest ID is required for anonymous chat", r))
		return
	}

	conv, err := h.registry.Acquire(ctx, req.SessionID, req.ChatID)
	if err != nil {
		log.Printf("session acquire failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to load session", r))
		return
	}

	if req.TripContext != nil {
		conv.SetTripContext(req.TripContext)
	}

	// The state machine is consulted before the credit gate: a send dropped
	// for an active stream must not cost a credit.
	if err := conv.BeginSend(req.Message); err != nil {
		// An active send wins; this attempt is dropped, not queued.
		writeJSON(w, http.StatusConflict, errorResp("SEND_ACTIVE", "A message is already streaming for this session", r))
		return
	}

	// The gate is consulted before anything reaches the backend; the
	// backend's own rejection still passes through below as the source of
	// truth for stale client state. A gate rejection rolls the optimistic
	// message back so the attempt changes nothing.
	if isAuth {
		if _, err := h.credits.Consume(ctx, userID.String()); err != nil {
			conv.CancelSend()
			var rle *credits.RateLimitError
			if errors.As(err, &rle) {
				writeJSON(w, http.StatusTooManyRequests, rateLimitResp(rle.ResetAt, r))
				return
			}
			log.Printf("credit consume failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to check credits", r))
			return
		}
		h.cache.Invalidate(ctx, cache.CreditsTag(userID.String()))
	} else {
		if err := h.guestGate.Consume(ctx, guestID); err != nil {
			conv.CancelSend()
			if errors.Is(err, credits.ErrGuestLimitReached) {
				writeJSON(w, http.StatusTooManyRequests, errorResp("FREE_LIMIT_REACHED", "You've reached your free message limit. Sign in to continue.", r))
				return
			}
			log.Printf("guest gate failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to check credits", r))
			return
		}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	conv.SetCancel(cancel)

	var chatID *string
	if id := conv.ChatID(); id != "" {
		chatID = &id
	}

	body, err := h.transport.Open(streamCtx, middleware.GetToken(ctx), stream.Request{
		ChatID:      chatID,
		Message:     req.Message,
		TripContext: conv.TripContext(),
	})
	if err != nil {
		h.handleOpenError(w, r, conv, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.relay(streamCtx, w, r, conv, body, userIdentity{userID: userID.String(), isAuth: isAuth})

	if !isAuth {
		// Guest transcripts survive reloads until claimed or expired. The
		// request context may already be cancelled here.
		if err := h.registry.Save(context.Background(), conv); err != nil {
			log.Printf("failed to save guest session %s: %v", conv.SessionID(), err)
		}
	}

	// The stream is over; drop the in-memory entry. The next send rebuilds
	// the conversation from the snapshot (guests) or the backend (users).
	h.registry.Release(conv.SessionID())
}

type userIdentity struct {
	userID string
	isAuth bool
}

// relay folds decoded events through the state machine and mirrors them to
// the client. Failure emits exactly one error frame; aborts emit nothing.
func (h *ChatHandler) relay(ctx context.Context, w http.ResponseWriter, r *http.Request, conv *session.Conversation, body io.Reader, who userIdentity) {
	enc := stream.NewEncoder(w)
	dec := stream.NewDecoder(body)

	for {
		ev, err := dec.Next(ctx)
		if err != nil {
			if err == io.EOF {
				return
			}
			if stream.IsAborted(err) {
				conv.Abort()
				return
			}
			// Transport or decode failure: partial content stays, one
			// user-visible error.
			conv.Fail()
			log.Printf("stream failed for session %s: %v", conv.SessionID(), err)
			enc.WriteEvent(stream.ErrorEvent{Payload: json.RawMessage(`{"type":"STREAM_ERROR","message":"Something went wrong. Please try again."}`)})
			return
		}

		eff, err := conv.Apply(ev)
		if err != nil {
			conv.Fail()
			log.Printf("apply failed for session %s: %v", conv.SessionID(), err)
			enc.WriteEvent(stream.ErrorEvent{Payload: json.RawMessage(`{"type":"STREAM_ERROR","message":"Something went wrong. Please try again."}`)})
			return
		}

		if err := enc.WriteEvent(ev); err != nil {
			// Client went away mid-stream; treat as navigation.
			conv.Abort()
			return
		}

		switch {
		case eff.Failed:
			return

		case eff.Finished:
			conv.Finish()
			if eff.NewChat && who.isAuth {
				// Exactly once per completed stream that bound a new id.
				if err := h.cache.Invalidate(ctx, cache.ChatsTag(who.userID)); err != nil {
					log.Printf("chats cache invalidation failed: %v", err)
				}
			}
			enc.WriteDone()
			return
		}
	}
}

// handleOpenError maps a failed transport open before any bytes were
// relayed. The backend's own error payload (e.g. rate-limit JSON) passes
// through untouched.
func (h *ChatHandler) handleOpenError(w http.ResponseWriter, r *http.Request, conv *session.Conversation, err error) {
	if stream.IsAborted(err) {
		conv.Abort()
		return
	}

	conv.Fail()

	var terr *stream.TransportError
	if errors.As(err, &terr) && terr.Status != 0 && len(terr.Body) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(terr.Status)
		w.Write(terr.Body)
		return
	}

	log.Printf("failed to open chat stream: %v", err)
	writeJSON(w, http.StatusBadGateway, errorResp("AI_ERROR", "Failed to reach the assistant. Please try again.", r))
}

// Stop handles POST /api/v1/chat/stop: explicit cancellation of the active
// stream. Silent for the stream consumer, per the abort contract.
func (h *ChatHandler) Stop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "session_id is required", r))
		return
	}

	conv, ok := h.registry.Get(req.SessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Unknown session", r))
		return
	}

	conv.Stop()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}
