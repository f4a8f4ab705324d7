package cache

import (
	"sync"
	"time"
)

// MockCache is a map-backed ResponseCache for tests. It ignores TTLs.
type MockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits uint64
	miss uint64
}

// NewMockCache creates an empty MockCache.
func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string][]byte),
	}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, found := m.data[key]
	if found {
		m.hits++
	} else {
		m.miss++
	}
	return val, found
}

func (m *MockCache) Set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *MockCache) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
}

func (m *MockCache) Stats() ResponseStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ResponseStats{
		Hits:   m.hits,
		Misses: m.miss,
		Items:  int64(len(m.data)),
	}
}
