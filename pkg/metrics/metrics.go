// Package metrics provides the Prometheus registry and handler for the CMS
// content client. All metrics are defined in their respective packages
// (cache, throttle, transport, relations, pagination, client) to keep them
// modular and avoid circular dependencies.
//
// This package documents every available metric.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the CMS client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer exposes the metrics registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - cms_cache_hits_total{provider} (Counter): Cache hits by provider (memory, redis)
//   - cms_cache_misses_total{provider} (Counter): Cache misses by provider
//   - cms_cache_evictions_total{reason} (Counter): Entries dropped (capacity, expired)
//   - cms_cache_flushes_total{provider} (Counter): Full cache flushes
//   - cms_cache_errors_total{operation} (Counter): Provider errors (get, set, flush)
//   - cms_cache_revalidations_total{result} (Counter): Stale-while-revalidate refreshes
//
// Throttle Metrics (pkg/throttle):
//   - cms_throttle_limit{throttle} (Gauge): Current starts per interval
//   - cms_throttle_queue_depth{throttle} (Gauge): Jobs waiting for a slot
//   - cms_throttle_admissions_total{throttle} (Counter): Jobs started
//   - cms_throttle_server_limit_updates_total (Counter): Limits narrowed from X-RateLimit-Policy
//
// Request Metrics (pkg/transport):
//   - cms_requests_total{endpoint, status} (Counter): HTTP attempts by endpoint and status
//   - cms_request_duration_seconds{endpoint} (Histogram): Request duration including retries
//   - cms_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/transport):
//   - cms_retries_total{error_class} (Counter): Retry attempts by error class
//   - cms_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - cms_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pipeline Metrics (pkg/client, pkg/relations, pkg/pagination):
//   - cms_pipeline_requests_total{mode} (Counter): Pipeline calls (cached, direct)
//   - cms_content_version_changes_total (Counter): cv changes that flushed the cache
//   - cms_relation_chunks_total{result} (Counter): Relation fetch chunks
//   - cms_pages_fetched_total{result} (Counter): List pages fetched by GetAll
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(cms_cache_hits_total[5m])) /
//   (sum(rate(cms_cache_hits_total[5m])) + sum(rate(cms_cache_misses_total[5m])))
//
//   # Throttle Backlog
//   max(cms_throttle_queue_depth) > 0
//
//   # Request Error Rate
//   rate(cms_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(cms_request_duration_seconds_bucket[5m]))
//
//   # Content Publishes
//   increase(cms_content_version_changes_total[1h])
