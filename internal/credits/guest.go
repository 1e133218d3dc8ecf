package credits

import (
	"context"
	"fmt"
	"sync"

	"airmini-gateway/internal/models"
)

// DefaultFreeMessageLimit is the guest send ceiling.
const DefaultFreeMessageLimit = 10

// ErrGuestLimitReached blocks a guest send before any backend call is made.
var ErrGuestLimitReached = fmt.Errorf("free message limit reached")

// GuestStore persists per-guest message counters. Counters survive reloads
// and are never decremented; clearing the stored key is the only reset.
type GuestStore interface {
	GetGuestCount(ctx context.Context, guestID string) (int, error)
	SetGuestCount(ctx context.Context, guestID string, count int) error
}

// GuestGate is the degraded credit gate for unauthenticated users: a
// monotonic counter against a fixed ceiling, no window.
type GuestGate struct {
	mu    sync.Mutex
	store GuestStore
	limit int
}

func NewGuestGate(store GuestStore, limit int) *GuestGate {
	if limit <= 0 {
		limit = DefaultFreeMessageLimit
	}
	return &GuestGate{store: store, limit: limit}
}

// Consume counts one guest send, or fails with ErrGuestLimitReached at the
// ceiling without incrementing.
func (g *GuestGate) Consume(ctx context.Context, guestID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	count, err := g.store.GetGuestCount(ctx, guestID)
	if err != nil {
		return fmt.Errorf("failed to load guest count: %w", err)
	}

	if count >= g.limit {
		return ErrGuestLimitReached
	}

	if err := g.store.SetGuestCount(ctx, guestID, count+1); err != nil {
		return fmt.Errorf("failed to save guest count: %w", err)
	}
	return nil
}

// Status reports the guest counter without consuming.
func (g *GuestGate) Status(ctx context.Context, guestID string) (*models.GuestCreditStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	count, err := g.store.GetGuestCount(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guest count: %w", err)
	}

	remaining := g.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &models.GuestCreditStatus{
		Used:      count,
		Remaining: remaining,
		Limit:     g.limit,
	}, nil
}
