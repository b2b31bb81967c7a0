package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Sessions are lost on restart,
// which is acceptable for single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

type memoryEntry struct {
	values  map[string]string
	expires time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]memoryEntry{},
		now:      time.Now,
	}
}

func (m *MemoryStore) Load(ctx context.Context, id string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expires.After(m.now()) {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	return copyValues(entry.values), nil
}

func (m *MemoryStore) Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[id] = memoryEntry{
		values:  copyValues(values),
		expires: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// PurgeExpired drops every expired session and returns how many were removed
func (m *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var purged int64
	for id, entry := range m.sessions {
		if !entry.expires.After(now) {
			delete(m.sessions, id)
			purged++
		}
	}
	return purged, nil
}

func copyValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
