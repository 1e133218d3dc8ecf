package credits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"airmini-gateway/internal/models"
)

// Defaults for the authenticated fixed window: 30 requests per 2 hours.
const (
	DefaultWindowHours = 2
	DefaultMaxRequests = 30
)

// RateLimitError rejects a send that would exceed the window cap. ResetAt is
// when the window rolls over; the rejected send does not count.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit reached, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// Store holds per-user credit counters with read-modify-write semantics. The
// zero value for a missing user is a fresh window.
type Store interface {
	GetCredits(ctx context.Context, userID string) (*models.CreditLimits, error)
	SetCredits(ctx context.Context, userID string, limits models.CreditLimits) error
}

// Manager is the authoritative credit gate for authenticated users: a fixed
// window counter reset lazily on read, incremented atomically on each
// accepted send.
type Manager struct {
	mu    sync.Mutex
	store Store

	window      time.Duration
	maxRequests int
	now         func() time.Time
}

func NewManager(store Store, window time.Duration, maxRequests int) *Manager {
	if window <= 0 {
		window = DefaultWindowHours * time.Hour
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	return &Manager{
		store:       store,
		window:      window,
		maxRequests: maxRequests,
		now:         time.Now,
	}
}

// load fetches the counter and rolls the window forward if it has elapsed.
// The caller holds m.mu.
func (m *Manager) load(ctx context.Context, userID string) (models.CreditLimits, error) {
	now := m.now()

	stored, err := m.store.GetCredits(ctx, userID)
	if err != nil {
		return models.CreditLimits{}, fmt.Errorf("failed to load credits: %w", err)
	}

	limits := models.CreditLimits{WindowStartedAt: now}
	if stored != nil {
		limits = *stored
	}

	if now.Sub(limits.WindowStartedAt) >= m.window {
		limits = models.CreditLimits{WindowStartedAt: now, UsedRequests: 0}
	}

	return limits, nil
}

// Consume accepts one send, incrementing the counter, or fails with
// *RateLimitError once the cap is reached. A rejected send never increments.
func (m *Manager) Consume(ctx context.Context, userID string) (*models.CreditLimits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limits, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if limits.UsedRequests >= m.maxRequests {
		return nil, &RateLimitError{ResetAt: limits.WindowStartedAt.Add(m.window)}
	}

	limits.UsedRequests++
	if err := m.store.SetCredits(ctx, userID, limits); err != nil {
		return nil, fmt.Errorf("failed to save credits: %w", err)
	}

	return &limits, nil
}

// Status reports the current window without consuming. A lapsed window is
// persisted as reset so repeated reads agree.
func (m *Manager) Status(ctx context.Context, userID string) (*models.CreditStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limits, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := m.store.SetCredits(ctx, userID, limits); err != nil {
		return nil, fmt.Errorf("failed to save credits: %w", err)
	}

	remaining := m.maxRequests - limits.UsedRequests
	if remaining < 0 {
		remaining = 0
	}

	return &models.CreditStatus{
		Limits:      limits,
		Remaining:   remaining,
		MaxRequests: m.maxRequests,
		ResetAt:     limits.WindowStartedAt.Add(m.window),
	}, nil
}
