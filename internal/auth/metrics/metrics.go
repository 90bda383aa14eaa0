package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for authentication operations.
type Metrics struct {
	Resolutions  *prometheus.CounterVec
	Failures     *prometheus.CounterVec
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	StoreLatency prometheus.Histogram
}

// New registers and returns auth metrics collectors.
func New() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paygate_auth_resolutions_total",
			Help: "Successful authentications by resolution path",
		}, []string{"path"}),
		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paygate_auth_failures_total",
			Help: "Authentication failures by error code",
		}, []string{"code"}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paygate_auth_cache_hits_total",
			Help: "API key cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "paygate_auth_cache_misses_total",
			Help: "API key cache misses",
		}),
		StoreLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "paygate_auth_credential_store_seconds",
			Help:    "Credential store lookup latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
