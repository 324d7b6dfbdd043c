package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the memory store when no limit is configured.
const DefaultMaxEntries = 1024

// MemoryStore is a bounded in-process cache with TTL expiry and
// approximate LRU eviction. All operations are guarded by a single
// mutex, which keeps get/set/evict safe under concurrent requests.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	items      map[string]*list.Element
	order      *list.List // front = most recently used
}

type memoryItem struct {
	key   string
	entry *Entry
}

// NewMemoryStore creates a memory store holding at most maxEntries
// entries. Inserting past the bound evicts the least-recently-used
// entry first.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry has expired.
// Expired entries are removed on lookup.
func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	cacheKey := key.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[cacheKey]
	if !ok {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	item := elem.Value.(*memoryItem)
	if item.entry.IsExpired() {
		s.removeLocked(elem)
		CacheEvictions.WithLabelValues("expired").Inc()
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	s.order.MoveToFront(elem)
	CacheHits.WithLabelValues("memory").Inc()
	return item.entry, nil
}

// Set stores an entry under key, overwriting any existing entry and
// resetting its expiry to now + ttl. Entries with ttl <= 0 are not stored.
func (s *MemoryStore) Set(_ context.Context, key Key, entry *Entry, ttl time.Duration) error {
	if entry == nil {
		return ErrInvalidEntry
	}
	if ttl <= 0 {
		return nil
	}

	cacheKey := key.String()
	now := time.Now()
	entry.Expires = now.Add(ttl)
	if entry.CachedAt.IsZero() {
		entry.CachedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[cacheKey]; ok {
		elem.Value.(*memoryItem).entry = entry
		s.order.MoveToFront(elem)
		return nil
	}

	elem := s.order.PushFront(&memoryItem{key: cacheKey, entry: entry})
	s.items[cacheKey] = elem

	if s.order.Len() > s.maxEntries {
		if oldest := s.order.Back(); oldest != nil {
			s.removeLocked(oldest)
			CacheEvictions.WithLabelValues("lru").Inc()
		}
	}

	CacheEntries.WithLabelValues("memory").Set(float64(len(s.items)))
	return nil
}

// Delete removes a cache entry.
func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	cacheKey := key.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[cacheKey]; ok {
		s.removeLocked(elem)
	}
	return nil
}

// EvictExpired removes all expired entries and reports how many were removed.
func (s *MemoryStore) EvictExpired(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for elem := s.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryItem).entry.IsExpired() {
			s.removeLocked(elem)
			removed++
		}
		elem = prev
	}

	if removed > 0 {
		CacheEvictions.WithLabelValues("expired").Add(float64(removed))
	}
	return removed
}

// Len returns the current number of entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// removeLocked unlinks an element from both the map and the LRU list.
// Callers must hold s.mu.
func (s *MemoryStore) removeLocked(elem *list.Element) {
	item := elem.Value.(*memoryItem)
	s.order.Remove(elem)
	delete(s.items, item.key)
	CacheEntries.WithLabelValues("memory").Set(float64(len(s.items)))
}
