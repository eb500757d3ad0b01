package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts URL lookups answered from Redis.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devdata_cache_hits_total",
			Help: "Fetched URLs served from the response cache instead of the network",
		},
		[]string{"layer"}, // redis
	)

	// CacheMisses counts URLs with nothing stored, or an entry past its TTL.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devdata_cache_misses_total",
			Help: "Fetched URLs with no stored response",
		},
	)

	CacheStoredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devdata_cache_stored_bytes_total",
			Help: "Response body bytes written to the cache",
		},
		[]string{"layer"},
	)

	// CacheErrors counts Redis failures; the fetch proceeds without the cache.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devdata_cache_errors_total",
			Help: "Response cache operations that failed against Redis",
		},
		[]string{"operation"}, // get, set, delete
	)
)
