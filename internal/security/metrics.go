package security

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// StoreLatency can be used by store implementations to record operation latency.
	StoreLatency *prometheus.HistogramVec

	// HistoryDegradedTotal counts chat requests served without history
	// because the store was unreachable.
	HistoryDegradedTotal prometheus.Counter

	JourneyLookupsTotal *prometheus.CounterVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// CompletionDuration tracks model runtime latency.
	CompletionDuration prometheus.Histogram
)

var validLabelKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseMetricsLabels parses a comma-separated list of key=value pairs into
// Prometheus labels. Values support ${VAR} / $VAR environment variable expansion.
// Label values may not contain commas. Returns nil for an empty string.
func ParseMetricsLabels(s string) (prometheus.Labels, error) {
	s = os.Expand(s, os.Getenv)
	if s == "" {
		return nil, nil
	}
	labels := prometheus.Labels{}
	for _, pair := range strings.Split(s, ",") {
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			return nil, fmt.Errorf("invalid label %q: expected key=value", pair)
		}
		k, v := pair[:idx], pair[idx+1:]
		if !validLabelKey.MatchString(k) {
			return nil, fmt.Errorf("invalid label key %q: must match [a-zA-Z_][a-zA-Z0-9_]*", k)
		}
		labels[k] = v
	}
	return labels, nil
}

var initMetricsOnce sync.Once

// InitMetrics registers all Prometheus metrics with the given constant labels.
// Must be called before starting the HTTP server. Safe to call multiple
// times; only the first call registers.
func InitMetrics(constLabels prometheus.Labels) {
	initMetricsOnce.Do(func() {
		initMetricsInner(constLabels)
	})
}

func initMetricsInner(constLabels prometheus.Labels) {
	reg := prometheus.WrapRegistererWith(constLabels, prometheus.DefaultRegisterer)
	f := promauto.With(reg)

	httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_service_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "travel_service_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	StoreLatency = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "travel_service_store_latency_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	HistoryDegradedTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "travel_service_history_degraded_total",
		Help: "Chat requests served without stored history",
	})

	JourneyLookupsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travel_service_journey_lookups_total",
			Help: "Journey lookups by outcome",
		},
		[]string{"outcome"},
	)

	CacheHitsTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "travel_service_cache_hits_total",
		Help: "Total cache hits",
	})

	CacheMissesTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "travel_service_cache_misses_total",
		Help: "Total cache misses",
	})

	CompletionDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "travel_service_completion_duration_seconds",
		Help:    "Model completion latency in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
}

// ObserveStoreLatency records the duration of one store operation.
// Safe to call before InitMetrics.
func ObserveStoreLatency(operation string, d time.Duration) {
	if StoreLatency != nil {
		StoreLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// RecordCacheHit counts a cache hit. Safe to call before InitMetrics.
func RecordCacheHit() {
	if CacheHitsTotal != nil {
		CacheHitsTotal.Inc()
	}
}

// RecordCacheMiss counts a cache miss. Safe to call before InitMetrics.
func RecordCacheMiss() {
	if CacheMissesTotal != nil {
		CacheMissesTotal.Inc()
	}
}

// MetricsMiddleware records HTTP request metrics for Prometheus.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpRequestsTotal == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		httpRequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method).Observe(duration.Seconds())
	}
}
