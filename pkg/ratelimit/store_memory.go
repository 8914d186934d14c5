package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// InMemoryWindowStore is a thread-safe in-memory WindowStore.
//
// Memory is bounded by MaxKeys. When a new identity arrives and the store is
// full, the least recently touched identity is evicted first, so a flood of
// distinct callers can only reset the oldest counters rather than grow the
// map without limit. Expired windows are also removed by Cleanup.
type InMemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*list.Element
	lru     *list.List // front = most recently touched
	maxKeys int
	onEvict func(count int)
}

type windowEntry struct {
	key    string
	window RateWindow
}

// InMemoryStoreConfig holds configuration for InMemoryWindowStore.
type InMemoryStoreConfig struct {
	// MaxKeys is the maximum number of identities kept in memory.
	// Default: 10000
	MaxKeys int

	// OnEvict is called (under the store lock) with the number of evicted
	// identities. Optional.
	OnEvict func(count int)
}

// DefaultInMemoryStoreConfig returns the default configuration.
func DefaultInMemoryStoreConfig() InMemoryStoreConfig {
	return InMemoryStoreConfig{MaxKeys: 10000}
}

// NewInMemoryWindowStore creates a new bounded in-memory store.
func NewInMemoryWindowStore(config InMemoryStoreConfig) *InMemoryWindowStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	return &InMemoryWindowStore{
		windows: make(map[string]*list.Element),
		lru:     list.New(),
		maxKeys: config.MaxKeys,
		onEvict: config.OnEvict,
	}
}

// Increment implements WindowStore.
func (s *InMemoryWindowStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (RateWindow, error) {
	if err := ctx.Err(); err != nil {
		return RateWindow{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.windows[key]; ok {
		entry := el.Value.(*windowEntry)
		if entry.window.Expired(now, window) {
			entry.window = RateWindow{WindowStart: now, Count: 1}
		} else {
			entry.window.Count++
		}
		s.lru.MoveToFront(el)
		return entry.window, nil
	}

	if len(s.windows) >= s.maxKeys {
		s.evictOldest()
	}

	entry := &windowEntry{key: key, window: RateWindow{WindowStart: now, Count: 1}}
	s.windows[key] = s.lru.PushFront(entry)
	return entry.window, nil
}

// Get implements WindowStore.
func (s *InMemoryWindowStore) Get(ctx context.Context, key string) (RateWindow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.windows[key]
	if !ok {
		return RateWindow{}, false, nil
	}
	return el.Value.(*windowEntry).window, true, nil
}

// Cleanup implements WindowStore.
func (s *InMemoryWindowStore) Cleanup(ctx context.Context, cutoff time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, el := range s.windows {
		entry := el.Value.(*windowEntry)
		if entry.window.ExpiresAt(window).Before(cutoff) {
			s.lru.Remove(el)
			delete(s.windows, key)
			removed++
		}
	}
	return removed, nil
}

// KeyCount implements WindowStore.
func (s *InMemoryWindowStore) KeyCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows), nil
}

// evictOldest must be called with the lock held.
func (s *InMemoryWindowStore) evictOldest() {
	el := s.lru.Back()
	if el == nil {
		return
	}
	s.lru.Remove(el)
	delete(s.windows, el.Value.(*windowEntry).key)
	if s.onEvict != nil {
		s.onEvict(1)
	}
}
