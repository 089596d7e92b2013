package lockcache

import (
	"context"
	"sync"
	"time"
)

// Memory is a mutex-guarded expiring map implementing Cache for tests.
// Expiry is checked lazily on access.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

type memoryItem struct {
	value     string
	expiresAt time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryItem)}
}

// SetIfAbsent implements Cache.
func (m *Memory) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[key]; ok && time.Now().Before(item.expiresAt) {
		return false, nil
	}
	m.items[key] = memoryItem{value: value, expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// Delete implements Cache.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
