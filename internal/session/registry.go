package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"airmini-gateway/internal/models"
)

// Snapshot is the persistable view of a conversation. Guest sessions are
// snapshotted so an anonymous transcript survives gateway restarts and page
// reloads until it is claimed or expires.
type Snapshot struct {
	SessionID string             `json:"session_id"`
	ChatID    string             `json:"chat_id,omitempty"`
	Claimed   bool               `json:"claimed"`
	Messages  []models.UIMessage `json:"messages"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// SnapshotStore persists conversation snapshots keyed by session id.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, sessionID string) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	DeleteSnapshot(ctx context.Context, sessionID string) error
}

// Snapshot captures the conversation for persistence.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]models.UIMessage, len(c.messages))
	copy(msgs, c.messages)

	return Snapshot{
		SessionID: c.sessionID,
		ChatID:    c.chatID,
		Claimed:   c.claimed,
		Messages:  msgs,
		UpdatedAt: time.Now(),
	}
}

func fromSnapshot(snap *Snapshot) *Conversation {
	c := New(snap.SessionID, snap.ChatID, snap.Messages)
	c.claimed = snap.Claimed
	return c
}

// Registry holds live conversations keyed by session id. Active streams need
// in-process state (the cancel hook, the in-flight message); everything else
// round-trips through the snapshot store.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Conversation
	store  SnapshotStore
}

func NewRegistry(store SnapshotStore) *Registry {
	return &Registry{
		active: make(map[string]*Conversation),
		store:  store,
	}
}

// Acquire returns the live conversation for sessionID, restoring it from the
// snapshot store or creating it if unknown. For a caller navigating to an
// existing chat, chatID binds the server identity up front and is immutable
// from then on.
func (r *Registry) Acquire(ctx context.Context, sessionID, chatID string) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessionID != "" {
		if conv, ok := r.active[sessionID]; ok {
			return conv, nil
		}
		snap, err := r.store.LoadSnapshot(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		if snap != nil {
			conv := fromSnapshot(snap)
			r.active[sessionID] = conv
			return conv, nil
		}
	}

	conv := New(sessionID, chatID, nil)
	r.active[conv.SessionID()] = conv
	return conv, nil
}

// Lookup returns the conversation for sessionID only if one already exists,
// in memory or in the snapshot store. Unlike Acquire it never creates one,
// so probing an unknown id leaves the registry untouched.
func (r *Registry) Lookup(ctx context.Context, sessionID string) (*Conversation, error) {
	if sessionID == "" {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if conv, ok := r.active[sessionID]; ok {
		return conv, nil
	}

	snap, err := r.store.LoadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if snap == nil {
		return nil, nil
	}

	conv := fromSnapshot(snap)
	r.active[sessionID] = conv
	return conv, nil
}

// Get returns the live conversation, if any.
func (r *Registry) Get(sessionID string) (*Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.active[sessionID]
	return conv, ok
}

// Save persists the conversation's snapshot.
func (r *Registry) Save(ctx context.Context, conv *Conversation) error {
	return r.store.SaveSnapshot(ctx, conv.Snapshot())
}

// Release evicts the in-memory entry, keeping any stored snapshot. Called
// once a stream ends so finished conversations don't accumulate; the next
// Acquire restores from the snapshot or starts fresh.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	delete(r.active, sessionID)
	r.mu.Unlock()
}

// Drop removes a session from the registry and the store, used after a
// successful claim hands the transcript to the backend.
func (r *Registry) Drop(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.active, sessionID)
	r.mu.Unlock()
	return r.store.DeleteSnapshot(ctx, sessionID)
}
