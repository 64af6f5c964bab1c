// Package metrics exposes Prometheus collectors for the crawl and cache subsystems.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal          *prometheus.CounterVec
	fetchInFlight         prometheus.Gauge
	fetchDurationSeconds  prometheus.Histogram
	rateLimitDelaySeconds prometheus.Histogram
	checkpointFlushTotal  prometheus.Counter
	cacheRequestsTotal    *prometheus.CounterVec
	cacheEvictionsTotal   prometheus.Counter

	once sync.Once
)

// Init registers the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "osgenome_fetches_total",
				Help: "Total SNPedia fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "osgenome_fetch_inflight",
				Help: "Number of SNPedia requests currently in flight.",
			},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "osgenome_fetch_duration_seconds",
				Help:    "Histogram of SNPedia fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "osgenome_rate_limit_delay_seconds",
				Help:    "Histogram of time spent waiting on the dispatch rate limiter.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
		)

		checkpointFlushTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "osgenome_checkpoint_flushes_total",
				Help: "Total checkpoint flushes written to disk.",
			},
		)

		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "osgenome_cache_requests_total",
				Help: "Total cache lookups, labeled by result (hit or miss).",
			},
			[]string{"result"},
		)

		cacheEvictionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "osgenome_cache_evictions_total",
				Help: "Total cache entries evicted by the LRU policy.",
			},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch counts one fetch outcome.
func ObserveFetch(outcome string) {
	if fetchesTotal != nil {
		fetchesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveFetchDuration records the latency of one fetch attempt.
func ObserveFetchDuration(duration time.Duration) {
	if fetchDurationSeconds != nil {
		fetchDurationSeconds.Observe(duration.Seconds())
	}
}

// IncInFlight increments the in-flight request gauge.
func IncInFlight() {
	if fetchInFlight != nil {
		fetchInFlight.Inc()
	}
}

// DecInFlight decrements the in-flight request gauge.
func DecInFlight() {
	if fetchInFlight != nil {
		fetchInFlight.Dec()
	}
}

// ObserveRateLimitDelay records a wait introduced by the rate limiter.
func ObserveRateLimitDelay(duration time.Duration) {
	if rateLimitDelaySeconds != nil {
		rateLimitDelaySeconds.Observe(duration.Seconds())
	}
}

// ObserveCheckpointFlush counts one checkpoint write.
func ObserveCheckpointFlush() {
	if checkpointFlushTotal != nil {
		checkpointFlushTotal.Inc()
	}
}

// ObserveCacheRequest counts one cache lookup.
func ObserveCacheRequest(hit bool) {
	if cacheRequestsTotal == nil {
		return
	}
	if hit {
		cacheRequestsTotal.WithLabelValues("hit").Inc()
	} else {
		cacheRequestsTotal.WithLabelValues("miss").Inc()
	}
}

// ObserveCacheEviction counts one LRU eviction.
func ObserveCacheEviction() {
	if cacheEvictionsTotal != nil {
		cacheEvictionsTotal.Inc()
	}
}
