package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the contract shared by all cache backends.
//
// Implementations must be safe for concurrent use from multiple
// request-handling goroutines.
type Store interface {
	// Get retrieves a cache entry by key.
	// Returns ErrCacheMiss if the key doesn't exist or the entry has
	// expired; expired entries are removed on lookup.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Set stores an entry under key with the given TTL, overwriting any
	// existing entry and resetting its expiry. Entries with ttl <= 0 are
	// not stored.
	Set(ctx context.Context, key Key, entry *Entry, ttl time.Duration) error

	// Delete removes a cache entry.
	Delete(ctx context.Context, key Key) error

	// EvictExpired removes all expired entries and reports how many
	// were removed.
	EvictExpired(ctx context.Context) int
}
