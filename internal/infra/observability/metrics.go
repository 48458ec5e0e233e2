package observability

import (
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the CRM backend.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	realtimeEvents  *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_aggregation_fallbacks_total",
				Help: "Aggregations that returned their default shape after a backend error.",
			},
			[]string{"operation"},
		),
		webhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_webhook_events_total",
				Help: "Automation webhook deliveries by event and outcome.",
			},
			[]string{"event", "outcome"},
		),
		realtimeEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_realtime_events_total",
				Help: "Realtime change notifications received.",
			},
			[]string{"type"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrFallback counts an aggregation that degraded to its default value.
func (m *Metrics) IncrFallback(operation string) {
	m.fallbacks.WithLabelValues(operation).Inc()
}

// IncrWebhook counts a webhook delivery; outcome is "delivered" or "failed".
func (m *Metrics) IncrWebhook(event, outcome string) {
	m.webhookEvents.WithLabelValues(event, outcome).Inc()
}

// IncrRealtimeEvent counts a realtime notification by change type.
func (m *Metrics) IncrRealtimeEvent(changeType string) {
	m.realtimeEvents.WithLabelValues(changeType).Inc()
}

// Fallbacks returns the fallback count for one operation.
func (m *Metrics) Fallbacks(operation string) float64 {
	return getCounterValue(m.fallbacks.WithLabelValues(operation))
}

// GetServiceSnapshot returns a snapshot suitable for GET /v1/metrics/service.
func (m *Metrics) GetServiceSnapshot() *domain.ServiceMetrics {
	hits := sumCounterVec(m.cacheHits)
	misses := sumCounterVec(m.cacheMisses)

	var delivered, failed float64
	for _, metric := range collect(m.webhookEvents) {
		for _, lp := range metric.GetLabel() {
			if lp.GetName() != "outcome" {
				continue
			}
			switch lp.GetValue() {
			case "delivered":
				delivered += metric.GetCounter().GetValue()
			case "failed":
				failed += metric.GetCounter().GetValue()
			}
		}
	}

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.ServiceMetrics{
		AggregationFallbacks: sumCounterVec(m.fallbacks),
		ExternalErrors:       sumCounterVec(m.externalErrors),
		WebhookDelivered:     delivered,
		WebhookFailed:        failed,
		RealtimeEvents:       sumCounterVec(m.realtimeEvents),
		CacheHitRate:         hitRate,
		Period:               "all_time",
	}
}

// getCounterValue extracts the current float64 value of a counter.
func getCounterValue(counter prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func sumCounterVec(cv *prometheus.CounterVec) float64 {
	var total float64
	for _, m := range collect(cv) {
		total += m.GetCounter().GetValue()
	}
	return total
}

func collect(cv *prometheus.CounterVec) []*dto.Metric {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var out []*dto.Metric
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err == nil {
			out = append(out, m)
		}
	}
	return out
}
