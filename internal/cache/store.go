package cache

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrInvalidTTL is returned by Set when the TTL is zero or negative.
var ErrInvalidTTL = errors.New("cache: ttl must be positive")

// entry is a stored value with its absolute expiry.
type entry struct {
	value     any
	storedAt  time.Time
	expiresAt time.Time
}

// Stats is a point-in-time view of a Store.
// Size may include entries that have expired but were not touched since.
type Stats struct {
	Size   int      `json:"size"`
	Keys   []string `json:"keys"`
	Hits   uint64   `json:"hits"`
	Misses uint64   `json:"misses"`
}

// Store is an in-process key/value store with per-entry TTL.
// Expired entries are removed lazily on the next Get or Has for their key;
// there is no background sweep. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	hits    uint64
	misses  uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value stored under key.
// An expired entry is deleted and reported as absent.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookupLocked(key)
	if !ok {
		s.misses++
		return nil, false
	}
	s.hits++
	return e.value, true
}

// Has reports whether a live entry exists for key, with the same lazy
// expiry as Get. It does not count towards hits or misses.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.lookupLocked(key)
	return ok
}

// lookupLocked must be called with mu held.
func (s *Store) lookupLocked(key string) (*entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return e, true
}

// Set stores value under key for ttl, replacing any existing entry.
func (s *Store) Set(key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.entries[key] = &entry{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Delete removes key. Missing keys are ignored.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry)
}

// ExpiresAt returns the absolute expiry of key if it is present.
func (s *Store) ExpiresAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.expiresAt, true
}

// Stats returns the entry count and the sorted list of stored keys.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return Stats{
		Size:   len(s.entries),
		Keys:   keys,
		Hits:   s.hits,
		Misses: s.misses,
	}
}

// Typed is a view of a Store that stores and returns values of a single type.
type Typed[T any] struct {
	store *Store
}

// NewTyped wraps store.
func NewTyped[T any](store *Store) Typed[T] {
	return Typed[T]{store: store}
}

// Get returns the value for key. A value of another type is dropped and
// treated as a miss.
func (t Typed[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := t.store.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		t.store.Delete(key)
		return zero, false
	}
	return typed, true
}

// Set stores value under key for ttl.
func (t Typed[T]) Set(key string, value T, ttl time.Duration) error {
	return t.store.Set(key, value, ttl)
}
