package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts gateway webhook deliveries by outcome and the events
// parked after exhausting their retries.
type WebhookMetrics struct {
	outcomes    *prometheus.CounterVec
	deadLetters *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Gateway webhook deliveries by event type and outcome.",
	}, []string{"event", "outcome"})
	deadLetters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_dead_letter_total",
		Help:      "Webhook events moved to dead letter after exhausting retries.",
	}, []string{"event"})
	reg.MustRegister(outcomes, deadLetters)
	return &WebhookMetrics{outcomes: outcomes, deadLetters: deadLetters}
}

func (w *WebhookMetrics) IncOutcome(event, outcome string) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(labelOrUnknown(event), labelOrUnknown(outcome)).Inc()
}

func (w *WebhookMetrics) IncDeadLetter(event string) {
	if w == nil || w.deadLetters == nil {
		return
	}
	w.deadLetters.WithLabelValues(labelOrUnknown(event)).Inc()
}
