package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckoutMetrics counts checkout confirmations and per-vendor order failures.
type CheckoutMetrics struct {
	confirmed      *prometheus.CounterVec
	vendorFailures *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	confirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_confirmed_total",
		Help:      "Confirmed checkouts by payment method and shape (single or split).",
	}, []string{"payment_method", "shape"})
	vendorFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_vendor_failures_total",
		Help:      "Vendor orders that failed to persist during checkout.",
	}, []string{"policy"})
	reg.MustRegister(confirmed, vendorFailures)
	return &CheckoutMetrics{confirmed: confirmed, vendorFailures: vendorFailures}
}

func (c *CheckoutMetrics) IncConfirmed(paymentMethod, shape string) {
	if c == nil || c.confirmed == nil {
		return
	}
	c.confirmed.WithLabelValues(labelOrUnknown(paymentMethod), labelOrUnknown(shape)).Inc()
}

func (c *CheckoutMetrics) IncVendorFailure(policy string) {
	if c == nil || c.vendorFailures == nil {
		return
	}
	c.vendorFailures.WithLabelValues(labelOrUnknown(policy)).Inc()
}
