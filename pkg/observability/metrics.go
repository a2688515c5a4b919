package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports hook and listener events as Prometheus metrics. It
// implements PipelineHooks, CacheHooks, HTTPHooks and Listener.
type Metrics struct {
	events       *prometheus.CounterVec
	cache        *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec
	collections  *prometheus.HistogramVec
	renders      *prometheus.HistogramVec
}

// NewMetrics registers the resolver metrics with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mvnresolve",
			Name:      "events_total",
			Help:      "Resolution diagnostic and transfer events by type",
		}, []string{"type"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mvnresolve",
			Name:      "cache_operations_total",
			Help:      "Cache hits, misses and writes by cache",
		}, []string{"cache", "op"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mvnresolve",
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "HTTP responses by host and status code",
		}, []string{"host", "code"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mvnresolve",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by host",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
		httpErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mvnresolve",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP requests that failed without a response",
		}, []string{"host"}),
		collections: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mvnresolve",
			Name:      "collect_duration_seconds",
			Help:      "Dependency graph collection latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		renders: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mvnresolve",
			Name:      "render_duration_seconds",
			Help:      "Output rendering latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
}

func (m *Metrics) OnEvent(_ context.Context, e Event) {
	m.events.WithLabelValues(string(e.Type)).Inc()
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cache.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cache.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, _ int) {
	m.cache.WithLabelValues(keyType, "set").Inc()
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, statusCode int, d time.Duration) {
	m.httpRequests.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
	m.httpLatency.WithLabelValues(host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.httpErrors.WithLabelValues(host).Inc()
}

func (m *Metrics) OnCollectStart(context.Context, string) {}

func (m *Metrics) OnCollectComplete(_ context.Context, _ string, _ int, d time.Duration, err error) {
	m.collections.WithLabelValues(status(err)).Observe(d.Seconds())
}

func (m *Metrics) OnRenderStart(context.Context, []string) {}

func (m *Metrics) OnRenderComplete(_ context.Context, _ []string, d time.Duration, err error) {
	m.renders.WithLabelValues(status(err)).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
