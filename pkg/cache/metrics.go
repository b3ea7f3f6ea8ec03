package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by provider
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_cache_hits_total",
			Help: "Total number of CMS cache hits",
		},
		[]string{"provider"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by provider
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_cache_misses_total",
			Help: "Total number of CMS cache misses",
		},
		[]string{"provider"},
	)

	// CacheEvictions tracks entries dropped by the cache
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
		[]string{"reason"}, // "capacity", "expired"
	)

	// CacheFlushes tracks full cache flushes
	CacheFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_cache_flushes_total",
			Help: "Total number of full cache flushes",
		},
		[]string{"provider"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "flush"
	)

	// Revalidations tracks stale-while-revalidate background refreshes
	Revalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_cache_revalidations_total",
			Help: "Total number of background cache revalidations by result",
		},
		[]string{"result"}, // "success", "error", "skipped"
	)
)
