package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"airmini-gateway/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func rateLimitResp(resetAt time.Time, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      "RATE_LIMIT",
			Message:   "Message limit reached. Please wait for it to reset.",
			ResetAt:   resetAt.UTC().Format(time.RFC3339),
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}
