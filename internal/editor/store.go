package editor

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// SessionStore keeps serialized editor sessions with an expiry. Get returns
// ErrSessionNotFound for unknown or expired keys. Swap replaces the value
// only while it still equals old and returns ErrSessionConflict otherwise.
type SessionStore interface {
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Swap(ctx context.Context, key string, old, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is a process-local SessionStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.liveLocked(key)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]byte(nil), entry.data...), nil
}

func (m *MemoryStore) Swap(ctx context.Context, key string, old, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.liveLocked(key)
	if !ok {
		return ErrSessionNotFound
	}
	if !bytes.Equal(entry.data, old) {
		return ErrSessionConflict
	}
	next := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		next.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = next
	return nil
}

func (m *MemoryStore) liveLocked(key string) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
