package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutboxPublished  = "published"
	OutboxRetry      = "retry"
	OutboxDeadLetter = "dead_letter"
)

// OutboxMetrics tracks what the publisher did with each drained event.
type OutboxMetrics struct {
	Events  *prometheus.CounterVec
	publish *prometheus.HistogramVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_total",
		Help:      "Outbox events handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	publish := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbox_publish_duration_seconds",
		Help:      "Time spent waiting for Pub/Sub to acknowledge a publish.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
	}, []string{"topic"})
	reg.MustRegister(events, publish)
	return &OutboxMetrics{Events: events, publish: publish}
}

func (o *OutboxMetrics) IncEvent(eventType, outcome string) {
	if o == nil || o.Events == nil {
		return
	}
	o.Events.WithLabelValues(labelOrUnknown(eventType), labelOrUnknown(outcome)).Inc()
}

func (o *OutboxMetrics) ObservePublish(topic string, d time.Duration) {
	if o == nil || o.publish == nil {
		return
	}
	o.publish.WithLabelValues(labelOrUnknown(topic)).Observe(d.Seconds())
}
