package models

// APIError is the error body shape shared across all endpoints.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	ResetAt   string            `json:"reset_at,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// ErrorResponse wraps an APIError for JSON encoding.
type ErrorResponse struct {
	Error APIError `json:"error"`
}
