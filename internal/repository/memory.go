package repository

import (
	"context"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
)

type memoryEntry struct {
	snapshot  entity.Snapshot
	expiresAt time.Time
}

type memorySession struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionRepository keeps snapshots in process memory with the same expiry rules as the
// redis repository.
func NewMemorySessionRepository(ttl time.Duration) SessionRepository {
	return &memorySession{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (that *memorySession) CreateOrUpdate(_ context.Context, snapshot entity.Snapshot) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	entry := memoryEntry{snapshot: snapshot}
	if that.ttl > 0 {
		entry.expiresAt = that.now().Add(that.ttl)
	}

	that.sessions[snapshot.SessionID] = entry

	return nil
}

func (that *memorySession) GetByID(_ context.Context, id string) (*entity.Snapshot, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	entry, ok := that.sessions[id]
	if !ok || that.expired(entry) {
		return nil, ErrSessionNotFound
	}

	snapshot := entry.snapshot

	return &snapshot, nil
}

func (that *memorySession) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	entry, ok := that.sessions[id]
	delete(that.sessions, id)

	if !ok || that.expired(entry) {
		return ErrSessionNotFound
	}

	return nil
}

func (that *memorySession) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && that.now().After(entry.expiresAt)
}
