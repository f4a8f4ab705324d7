// Package cache holds the in-process caches used by the API: the TTL Store
// that fronts GitHub reads and a size-bounded response cache for rendered
// JSON payloads.
package cache

import "time"

// ResponseCache caches serialized HTTP response bodies with a TTL.
type ResponseCache interface {
	// Get returns the body stored under key if present and not expired.
	Get(key string) ([]byte, bool)

	// Set stores a body under key. A zero TTL uses the cache default.
	Set(key string, value []byte, ttl time.Duration)

	// Delete removes a single body.
	Delete(key string)

	// Clear removes all bodies.
	Clear()

	// Stats returns counters for the response cache.
	Stats() ResponseStats
}

// ResponseStats represents response cache counters.
type ResponseStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	KeysAdded uint64 `json:"keysAdded"`
	Evictions uint64 `json:"evictions"`
	Size      int64  `json:"sizeBytes"` // approximate
	Items     int64  `json:"items"`
}
