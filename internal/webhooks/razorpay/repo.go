package razorpaywebhook

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
)

// Repository persists the webhook delivery log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.WebhookEvent) error
	Find(ctx context.Context, id uint64) (*models.WebhookEvent, error)
	HasProcessed(ctx context.Context, eventID string) (bool, error)
	Update(ctx context.Context, id uint64, updates map[string]any) error
	MarkProcessed(ctx context.Context, id uint64, at time.Time) error
	MarkFailed(ctx context.Context, id uint64, lastError string) error
	ListFailed(ctx context.Context, limit int) ([]models.WebhookEvent, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) Find(ctx context.Context, id uint64) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("event_id = ? AND processed = ?", eventID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) Update(ctx context.Context, id uint64, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// MarkProcessed flips the processed flag. A second processed row for the same
// event id violates ux_webhook_processed.
func (r *repository) MarkProcessed(ctx context.Context, id uint64, at time.Time) error {
	return r.Update(ctx, id, map[string]any{
		"processed":    true,
		"status":       enums.WebhookStatusProcessed,
		"processed_at": at,
		"last_error":   nil,
	})
}

func (r *repository) MarkFailed(ctx context.Context, id uint64, lastError string) error {
	return r.Update(ctx, id, map[string]any{
		"status":      enums.WebhookStatusFailed,
		"retry_count": gorm.Expr("retry_count + 1"),
		"last_error":  lastError,
	})
}

// ListFailed returns verified deliveries awaiting replay, oldest first.
func (r *repository) ListFailed(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	var rows []models.WebhookEvent
	query := r.db.WithContext(ctx).
		Where("status = ? AND signature_verified = ?", enums.WebhookStatusFailed, true).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}
