// Package cache provides TTL caching for proxied upstream responses.
//
// The cache is keyed by a deterministic, canonical request signature so that
// equivalent inbound queries map to the same entry regardless of parameter
// order, case, or surrounding whitespace.
//
// Two backends implement the Store contract:
//
//   - MemoryStore: bounded in-process store with approximate LRU eviction.
//     Expired entries are removed lazily on lookup and by the Sweeper.
//   - RedisStore: entries are JSON-marshalled into Redis with a native TTL,
//     so Redis handles expiry server-side.
//
// # Basic Usage
//
//	store := cache.NewMemoryStore(1024)
//
//	key := cache.Key{
//		Path:   "/weather",
//		Params: cache.Canonicalize(r.URL.Query()),
//	}
//
//	entry, err := store.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from upstream, then:
//		store.Set(ctx, key, entry, 5*time.Minute)
//	}
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - proxy_cache_hits_total{backend} - Cache hits
//   - proxy_cache_misses_total - Cache misses
//   - proxy_cache_evictions_total{reason} - Evictions (expired, lru)
//   - proxy_cache_entries{backend} - Current entry count
//   - proxy_cache_errors_total{operation} - Cache operation errors
package cache
