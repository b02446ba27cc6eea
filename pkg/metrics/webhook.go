package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records outcomes for ingested payment events.
type WebhookMetrics struct {
	duration          *prometheus.HistogramVec
	processed         *prometheus.CounterVec
	inventoryFailures *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_event_duration_seconds",
		Help:    "Duration of webhook event processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Processed webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	inventoryFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_decrement_failures",
		Help: "Inventory decrements that could not be applied.",
	}, []string{"reason"})
	reg.MustRegister(duration, processed, inventoryFailures)
	return &WebhookMetrics{
		duration:          duration,
		processed:         processed,
		inventoryFailures: inventoryFailures,
	}
}

// ObserveDuration records how long an event of the given type took to process.
func (m *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncProcessed increments the processed counter for the event type and outcome.
func (m *WebhookMetrics) IncProcessed(eventType, outcome string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncInventoryFailure increments the inventory failure counter for the given reason.
func (m *WebhookMetrics) IncInventoryFailure(reason string) {
	if m == nil || m.inventoryFailures == nil {
		return
	}
	m.inventoryFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
