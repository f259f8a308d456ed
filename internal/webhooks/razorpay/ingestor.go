package razorpaywebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/internal/payments"
	"github.com/angelmondragon/storefront-orders/pkg/db"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
	"github.com/angelmondragon/storefront-orders/pkg/metrics"
	"github.com/angelmondragon/storefront-orders/pkg/signature"
)

// Outcome is what happened to one delivery. Every outcome is acknowledged to
// the gateway with 200.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

var (
	// errNotApplicable marks deliveries that carry no reference to act on.
	errNotApplicable = errors.New("webhook carries no payment reference")
	// errPaymentUnknown is retried: the record may be committed after the
	// gateway sends its first delivery.
	errPaymentUnknown = errors.New("payment record not found")
)

type IngestorParams struct {
	Tx         db.TxRunner
	Repo       Repository
	Payments   payments.Repository
	Reconciler *payments.Reconciler
	Guard      *IdempotencyGuard
	Secret     string
	Metrics    *metrics.WebhookMetrics
	Logger     *logger.Logger
}

// Ingestor logs, verifies, dedupes and dispatches gateway webhooks.
type Ingestor struct {
	tx         db.TxRunner
	repo       Repository
	payments   payments.Repository
	reconciler *payments.Reconciler
	guard      *IdempotencyGuard
	secret     string
	metrics    *metrics.WebhookMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewIngestor(p IngestorParams) (*Ingestor, error) {
	switch {
	case p.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case p.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook repository required")
	case p.Payments == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repository required")
	case p.Reconciler == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	case p.Guard == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	case p.Secret == "":
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret required")
	}
	return &Ingestor{
		tx:         p.Tx,
		repo:       p.Repo,
		payments:   p.Payments,
		reconciler: p.Reconciler,
		guard:      p.Guard,
		secret:     p.Secret,
		metrics:    p.Metrics,
		logg:       p.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Ingest handles one delivery. An error is returned only when the delivery
// could not be logged; the caller should then answer 500 so the gateway retries.
func (i *Ingestor) Ingest(ctx context.Context, body []byte, sig, eventIDHeader string) (Outcome, error) {
	env, decodeErr := decodeEnvelope(body)
	entityType, entityID := env.describe()
	row := &models.WebhookEvent{
		EventID:    eventID(eventIDHeader, env, body),
		EventType:  env.Event,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    string(body),
		Signature:  sig,
		Status:     enums.WebhookStatusReceived,
	}
	if err := i.repo.Create(ctx, row); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "log webhook event")
	}
	logCtx := i.logg.WithFields(ctx, map[string]any{
		"webhook_log_id": row.ID,
		"event_id":       row.EventID,
		"event_type":     row.EventType,
	})

	if !signature.Verify(body, sig, i.secret) {
		if err := i.repo.Update(ctx, row.ID, map[string]any{"status": enums.WebhookStatusRejected}); err != nil {
			i.logg.Error(logCtx, "mark webhook rejected", err)
		}
		i.logg.Warn(logCtx, "webhook signature rejected")
		i.metrics.IncOutcome(row.EventType, string(OutcomeRejected))
		return OutcomeRejected, nil
	}
	if err := i.repo.Update(ctx, row.ID, map[string]any{"signature_verified": true}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark webhook verified")
	}
	row.SignatureVerified = true

	if decodeErr != nil {
		return i.finish(logCtx, row, false, OutcomeIgnored, fmt.Sprintf("decode payload: %v", decodeErr)), nil
	}
	return i.process(logCtx, row, env), nil
}

// Replay re-runs dedupe and dispatch for a stored, verified delivery.
func (i *Ingestor) Replay(ctx context.Context, logID uint64) (Outcome, error) {
	row, err := i.repo.Find(ctx, logID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.Newf(pkgerrors.CodeNotFound, "webhook event %d not found", logID)
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load webhook event")
	}
	if !row.SignatureVerified {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "webhook event %d has no verified signature", logID)
	}
	switch row.Status {
	case enums.WebhookStatusProcessed:
		return OutcomeProcessed, nil
	case enums.WebhookStatusDuplicate:
		return OutcomeDuplicate, nil
	}
	env, err := decodeEnvelope([]byte(row.Payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode stored payload")
	}
	logCtx := i.logg.WithFields(ctx, map[string]any{
		"webhook_log_id": row.ID,
		"event_id":       row.EventID,
		"event_type":     row.EventType,
		"retry_count":    row.RetryCount,
	})
	return i.process(logCtx, row, env), nil
}

// ReplayReport summarises one replay sweep.
type ReplayReport struct {
	Scanned      int
	Processed    int
	Failed       int
	DeadLettered int
}

// ReplayFailed retries failed deliveries. Rows that already used maxRetries
// attempts are parked as dead letters instead.
func (i *Ingestor) ReplayFailed(ctx context.Context, maxRetries, limit int) (ReplayReport, error) {
	var report ReplayReport
	rows, err := i.repo.ListFailed(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("list failed webhooks: %w", err)
	}
	var errs error
	for _, row := range rows {
		report.Scanned++
		if maxRetries > 0 && row.RetryCount >= maxRetries {
			if err := i.repo.Update(ctx, row.ID, map[string]any{"status": enums.WebhookStatusDeadLetter}); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("dead letter webhook %d: %w", row.ID, err))
				continue
			}
			report.DeadLettered++
			i.metrics.IncDeadLetter(row.EventType)
			lastErr := errors.New("retries exhausted")
			if row.LastError != nil {
				lastErr = errors.New(*row.LastError)
			}
			logCtx := i.logg.WithFields(ctx, map[string]any{
				"webhook_log_id": row.ID,
				"event_id":       row.EventID,
				"event_type":     row.EventType,
				"retry_count":    row.RetryCount,
			})
			i.logg.Error(logCtx, "webhook event moved to dead letter", lastErr)
			continue
		}
		outcome, err := i.Replay(ctx, row.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("replay webhook %d: %w", row.ID, err))
			continue
		}
		switch outcome {
		case OutcomeFailed:
			report.Failed++
		default:
			report.Processed++
		}
	}
	return report, errs
}

func (i *Ingestor) process(ctx context.Context, row *models.WebhookEvent, env *envelope) Outcome {
	if !enums.GatewayEvent(env.Event).IsHandled() {
		return i.finish(ctx, row, false, OutcomeIgnored, "")
	}

	done, err := i.repo.HasProcessed(ctx, row.EventID)
	if err != nil {
		return i.fail(ctx, row, false, fmt.Errorf("check processed: %w", err))
	}
	if done {
		return i.finish(ctx, row, false, OutcomeDuplicate, "")
	}

	claimed, err := i.guard.Claim(ctx, row.EventID)
	if err != nil {
		// The partial unique index still guards against double processing.
		i.logg.Warn(i.logg.WithField(ctx, "error", err.Error()), "webhook claim unavailable")
	} else if !claimed {
		return i.finish(ctx, row, false, OutcomeDuplicate, "")
	}

	err = i.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := i.dispatch(ctx, tx, env); err != nil {
			return err
		}
		return i.repo.WithTx(tx).MarkProcessed(ctx, row.ID, i.now())
	})
	switch {
	case err == nil:
		row.Processed = true
		row.Status = enums.WebhookStatusProcessed
		i.logg.Info(ctx, "webhook processed")
		i.metrics.IncOutcome(row.EventType, string(OutcomeProcessed))
		return OutcomeProcessed
	case errors.Is(err, errNotApplicable):
		return i.finish(ctx, row, claimed, OutcomeIgnored, err.Error())
	case db.IsUniqueViolation(err, ""):
		// Another delivery of the event committed first.
		return i.finish(ctx, row, claimed, OutcomeDuplicate, "")
	default:
		return i.fail(ctx, row, claimed, err)
	}
}

func (i *Ingestor) dispatch(ctx context.Context, tx *gorm.DB, env *envelope) error {
	repo := i.payments.WithTx(tx)
	switch enums.GatewayEvent(env.Event) {
	case enums.GatewayEventPaymentCaptured, enums.GatewayEventOrderPaid:
		record, err := lockByOrder(ctx, repo, env.orderID())
		if err != nil {
			return err
		}
		capture := payments.Capture{Source: payments.SourceWebhook}
		if p := env.payment(); p != nil {
			capture.GatewayPaymentID = p.ID
			capture.Method = p.Method
			capture.Amount = p.Amount
		}
		_, err = i.reconciler.MarkPaidTx(ctx, tx, record, capture)
		return err

	case enums.GatewayEventPaymentFailed:
		record, err := lockByOrder(ctx, repo, env.orderID())
		if err != nil {
			return err
		}
		paymentID := ""
		if p := env.payment(); p != nil {
			paymentID = p.ID
		}
		_, err = i.reconciler.MarkFailedTx(ctx, tx, record, paymentID, payments.SourceWebhook)
		return err

	case enums.GatewayEventPaymentRefunded, enums.GatewayEventRefundProcessed:
		refund := env.refund()
		if refund == nil || refund.ID == "" {
			return errNotApplicable
		}
		record, err := repo.FindByGatewayPaymentIDForUpdate(ctx, refund.PaymentID)
		if errors.Is(err, gorm.ErrRecordNotFound) && env.orderID() != "" {
			record, err = lockByOrder(ctx, repo, env.orderID())
		}
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: payment %s", errPaymentUnknown, refund.PaymentID)
			}
			return err
		}
		_, _, err = i.reconciler.ApplyRefundTx(ctx, tx, record, payments.AppliedRefund{
			GatewayRefundID: refund.ID,
			Amount:          refund.Amount,
			Currency:        refund.Currency,
			Status:          enums.ParseRefundStatus(refund.Status),
			Source:          payments.SourceWebhook,
		})
		return err
	}
	return errNotApplicable
}

func lockByOrder(ctx context.Context, repo payments.Repository, gatewayOrderID string) (*models.PaymentRecord, error) {
	if gatewayOrderID == "" {
		return nil, errNotApplicable
	}
	record, err := repo.FindByGatewayOrderIDForUpdate(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: gateway order %s", errPaymentUnknown, gatewayOrderID)
		}
		return nil, err
	}
	return record, nil
}

// finish acknowledges a delivery that applied nothing. A claim taken by this
// delivery is released so a later delivery of the event is not mistaken for
// an already processed one.
func (i *Ingestor) finish(ctx context.Context, row *models.WebhookEvent, claimed bool, outcome Outcome, note string) Outcome {
	if claimed {
		if err := i.guard.Release(ctx, row.EventID); err != nil {
			i.logg.Warn(i.logg.WithField(ctx, "error", err.Error()), "release webhook claim")
		}
	}
	status := enums.WebhookStatusIgnored
	if outcome == OutcomeDuplicate {
		status = enums.WebhookStatusDuplicate
	}
	updates := map[string]any{"status": status}
	if note != "" {
		updates["last_error"] = note
	}
	if err := i.repo.Update(ctx, row.ID, updates); err != nil {
		i.logg.Error(ctx, "update webhook status", err)
	}
	row.Status = status
	i.logg.Info(i.logg.WithField(ctx, "outcome", string(outcome)), "webhook acknowledged without processing")
	i.metrics.IncOutcome(row.EventType, string(outcome))
	return outcome
}

func (i *Ingestor) fail(ctx context.Context, row *models.WebhookEvent, claimed bool, cause error) Outcome {
	if claimed {
		if err := i.guard.Release(ctx, row.EventID); err != nil {
			i.logg.Warn(i.logg.WithField(ctx, "error", err.Error()), "release webhook claim")
		}
	}
	if err := i.repo.MarkFailed(ctx, row.ID, cause.Error()); err != nil {
		i.logg.Error(ctx, "mark webhook failed", err)
	}
	row.Status = enums.WebhookStatusFailed
	row.RetryCount++
	i.logg.Error(ctx, "webhook processing failed", cause)
	i.metrics.IncOutcome(row.EventType, string(OutcomeFailed))
	return OutcomeFailed
}
