package models

import "time"

// CreditLimits is the stored fixed-window counter for an authenticated user.
type CreditLimits struct {
	WindowStartedAt time.Time `json:"window_started_at"`
	UsedRequests    int       `json:"used_requests"`
}

// CreditStatus is the derived view returned to the client. Remaining and
// ResetAt are recomputed lazily on every read.
type CreditStatus struct {
	Limits      CreditLimits `json:"limits"`
	Remaining   int          `json:"remaining"`
	MaxRequests int          `json:"max_requests"`
	ResetAt     time.Time    `json:"reset_at"`
}

// GuestCreditStatus is the degraded view for unauthenticated users: a
// monotonic counter against a fixed ceiling, no reset window.
type GuestCreditStatus struct {
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}
