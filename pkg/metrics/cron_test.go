package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "webhook-replay"
	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)
	m.IncFailure("")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.success.WithLabelValues(job)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.failure.WithLabelValues(job)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.failure.WithLabelValues("unknown")))

	count, err := testutil.GatherAndCount(reg, "storefront_cron_job_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWebhookMetricsCountsOutcomesAndDeadLetters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)
	m.IncOutcome("payment.captured", "processed")
	m.IncOutcome("payment.captured", "processed")
	m.IncOutcome("payment.captured", "duplicate")
	m.IncDeadLetter("refund.processed")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.outcomes.WithLabelValues("payment.captured", "processed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.deadLetters.WithLabelValues("refund.processed")))

	count, err := testutil.GatherAndCount(reg, "storefront_webhook_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCheckoutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)
	m.IncConfirmed("cod", "split")
	m.IncVendorFailure("abort")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.confirmed.WithLabelValues("cod", "split")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.vendorFailures.WithLabelValues("abort")))
}

func TestNilRecordersAreNoops(t *testing.T) {
	var cron *CronJobMetrics
	cron.IncSuccess("x")
	cron.ObserveDuration("x", time.Second)
	NewWebhookMetrics(nil).IncOutcome("", "")
	NewCheckoutMetrics(nil).IncConfirmed("cod", "single")
}
