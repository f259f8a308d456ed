package cron

import (
	"context"
	"fmt"

	razorpaywebhook "github.com/angelmondragon/storefront-orders/internal/webhooks/razorpay"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
)

const (
	defaultWebhookMaxRetries  = 5
	defaultWebhookReplayBatch = 50
)

type webhookReplayer interface {
	ReplayFailed(ctx context.Context, maxRetries, limit int) (razorpaywebhook.ReplayReport, error)
}

type WebhookReplayJobParams struct {
	Logger     *logger.Logger
	Replayer   webhookReplayer
	MaxRetries int
	BatchSize  int
}

// NewWebhookReplayJob retries failed gateway webhook deliveries and parks the
// ones that ran out of attempts.
func NewWebhookReplayJob(params WebhookReplayJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Replayer == nil {
		return nil, fmt.Errorf("webhook replayer required")
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultWebhookMaxRetries
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultWebhookReplayBatch
	}
	return &webhookReplayJob{
		logg:       params.Logger,
		replayer:   params.Replayer,
		maxRetries: maxRetries,
		batch:      batch,
	}, nil
}

type webhookReplayJob struct {
	logg       *logger.Logger
	replayer   webhookReplayer
	maxRetries int
	batch      int
}

func (j *webhookReplayJob) Name() string { return "webhook-replay" }

func (j *webhookReplayJob) Run(ctx context.Context) error {
	report, err := j.replayer.ReplayFailed(ctx, j.maxRetries, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":       report.Scanned,
		"processed":     report.Processed,
		"failed":        report.Failed,
		"dead_lettered": report.DeadLettered,
		"max_retries":   j.maxRetries,
	})
	if err != nil {
		return fmt.Errorf("webhook replay: %w", err)
	}
	j.logg.Info(logCtx, "webhook replay complete")
	return nil
}
