package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// LRUCache is a size-bounded ResponseCache backed by ristretto.
type LRUCache struct {
	cache      *ristretto.Cache
	defaultTTL time.Duration
}

type cacheItem struct {
	data      []byte
	expiresAt time.Time
}

// NewLRU creates a response cache bounded to maxSizeMB megabytes of bodies.
// maxEntries sizes ristretto's admission counters; defaultTTL applies when
// Set is called with a zero TTL.
func NewLRU(maxSizeMB int64, maxEntries int64, defaultTTL time.Duration) (*LRUCache, error) {
	// ristretto recommends ~10 counters per expected entry
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 1
	}

	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxSizeMB << 20,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &LRUCache{
		cache:      rc,
		defaultTTL: defaultTTL,
	}, nil
}

// Get returns the body for key.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}

	item, ok := val.(*cacheItem)
	if !ok {
		c.cache.Del(key)
		return nil, false
	}

	if time.Now().After(item.expiresAt) {
		c.cache.Del(key)
		return nil, false
	}

	return item.data, true
}

// Set stores a body under key.
func (c *LRUCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	item := &cacheItem{
		data:      value,
		expiresAt: time.Now().Add(ttl),
	}

	// A rejected Set is not an error; the next request simply misses.
	_ = c.cache.Set(key, item, int64(len(value)))
	c.cache.Wait()
}

func (c *LRUCache) Delete(key string) {
	c.cache.Del(key)
}

func (c *LRUCache) Clear() {
	c.cache.Clear()
}

// Stats reports ristretto metrics. Counts lag slightly behind because
// ristretto applies writes asynchronously.
func (c *LRUCache) Stats() ResponseStats {
	m := c.cache.Metrics
	if m == nil {
		return ResponseStats{}
	}
	return ResponseStats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Size:      int64(m.CostAdded() - m.CostEvicted()),
		Items:     int64(m.KeysAdded() - m.KeysEvicted()),
	}
}

// Close stops ristretto's background goroutines.
func (c *LRUCache) Close() {
	c.cache.Close()
}
