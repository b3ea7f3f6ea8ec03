// Package cache provides the response cache used by the CMS content client.
//
// The package is split into three concerns:
//
//   - Providers: a keyed store of Entry values with TTL expiry. MemoryProvider
//     is the in-process default; RedisProvider shares the cache across
//     processes.
//   - Keys: CreateKey derives a deterministic key from method, path and query.
//   - Strategies: CacheFirst, NetworkFirst and the stale-while-revalidate
//     Revalidator decide whether a request is served from cache, network or
//     both.
//
// # Basic Usage
//
//	provider := cache.NewMemoryProvider[Response](cache.WithMaxEntries(500))
//
//	key := cache.CreateKey("GET", "cdn/stories/home", map[string]any{
//		"version": "published",
//	})
//
//	entry, ok, err := provider.Get(ctx, key)
//	if err != nil {
//		return err
//	}
//	if !ok {
//		// Cache miss - fetch from the API
//	}
//
// # Liveness
//
// An entry is live while now-StoredAt <= TTL. The boundary is inclusive: an
// entry read exactly TTL after it was stored is still served. Dead entries are
// removed by the read that observes them.
//
// # Eviction
//
// MemoryProvider orders entries by write time. Re-writing a key moves it to
// the back of the queue; reading it does not. When the provider holds more
// than its capacity the oldest written key is dropped.
//
// # Metrics
//
//   - cms_cache_hits_total{provider} - Cache hits
//   - cms_cache_misses_total{provider} - Cache misses (absent or expired)
//   - cms_cache_evictions_total{reason} - Entries dropped (capacity, expired)
//   - cms_cache_flushes_total{provider} - Full cache flushes
//   - cms_cache_errors_total{operation} - Provider errors
//   - cms_cache_revalidations_total{result} - Background revalidations
package cache
