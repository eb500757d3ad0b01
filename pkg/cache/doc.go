// Package cache provides an optional shared HTTP response cache with a Redis
// backend.
//
// The on-disk artifacts written by the jobs are the primary cache; this
// package sits below the fetch client and lets repeated runs (or several
// operators sharing one Redis) avoid re-downloading API responses that
// are not persisted as artifacts, such as SDG dimension lists.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 24*time.Hour)
//
//	key := cache.KeyForURL("https://unstats.un.org/SDGAPI/v1/sdg/Series/SI_POV_NAHC/Dimensions")
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then
//		_ = manager.Set(ctx, key, cache.NewEntry(200, "application/json", body, manager.TTL()))
//	}
//
// Entries are JSON documents compressed with snappy before they are stored.
//
// # Metrics
//
//   - devdata_cache_hits_total{layer="redis"} - Cache hits
//   - devdata_cache_misses_total - Cache misses
//   - devdata_cache_stored_bytes_total{layer="redis"} - Compressed bytes written
//   - devdata_cache_errors_total{operation} - Cache operation errors
package cache
