package throttle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for request throttling.
var (
	throttleLimit = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cms_throttle_limit",
		Help: "Current starts-per-interval limit by throttle",
	}, []string{"throttle"})

	throttleQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cms_throttle_queue_depth",
		Help: "Number of calls waiting for a throttle slot",
	}, []string{"throttle"})

	throttleAdmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cms_throttle_admissions_total",
		Help: "Total number of calls admitted by throttle",
	}, []string{"throttle"})

	serverLimitUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cms_throttle_server_limit_updates_total",
		Help: "Total number of limit changes driven by X-RateLimit-Policy",
	})
)
