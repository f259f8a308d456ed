package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-orders/pkg/logger"
)

const (
	defaultPaymentExpiry      = 24 * time.Hour
	defaultPaymentExpiryBatch = 100
)

type stalePaymentExpirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type PaymentExpiryJobParams struct {
	Logger    *logger.Logger
	Payments  stalePaymentExpirer
	Expiry    time.Duration
	BatchSize int
}

// NewPaymentExpiryJob fails gateway orders the customer never completed.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	expiry := params.Expiry
	if expiry <= 0 {
		expiry = defaultPaymentExpiry
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPaymentExpiryBatch
	}
	return &paymentExpiryJob{logg: params.Logger, payments: params.Payments, expiry: expiry, batch: batch}, nil
}

type paymentExpiryJob struct {
	logg     *logger.Logger
	payments stalePaymentExpirer
	expiry   time.Duration
	batch    int
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	expired, err := j.payments.ExpireStale(ctx, j.expiry, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired":    expired,
		"expiry":     j.expiry.String(),
		"batch_size": j.batch,
	})
	if err != nil {
		return fmt.Errorf("expire stale payments: %w", err)
	}
	j.logg.Info(logCtx, "payment expiry complete")
	return nil
}
