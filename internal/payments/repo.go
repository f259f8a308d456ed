package payments

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/pkg/db"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
)

// Repository persists gateway orders and refunds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePayment(ctx context.Context, record *models.PaymentRecord) error
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentRecord, error)
	FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*models.PaymentRecord, error)
	FindByGatewayPaymentIDForUpdate(ctx context.Context, gatewayPaymentID string) (*models.PaymentRecord, error)
	UpdatePayment(ctx context.Context, id uint64, updates map[string]any) error
	ListStaleCreated(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentRecord, error)
	CreateRefund(ctx context.Context, refund *models.RefundRecord) error
	FindRefund(ctx context.Context, gatewayRefundID string) (*models.RefundRecord, error)
	UpdateRefund(ctx context.Context, id uint64, updates map[string]any) error
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

func (r *repository) CreatePayment(ctx context.Context, record *models.PaymentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	if err := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByGatewayPaymentIDForUpdate(ctx context.Context, gatewayPaymentID string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) UpdatePayment(ctx context.Context, id uint64, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListStaleCreated(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentRecord, error) {
	var rows []models.PaymentRecord
	query := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PaymentRecordCreated, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

func (r *repository) CreateRefund(ctx context.Context, refund *models.RefundRecord) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *repository) FindRefund(ctx context.Context, gatewayRefundID string) (*models.RefundRecord, error) {
	var refund models.RefundRecord
	if err := r.db.WithContext(ctx).Where("gateway_refund_id = ?", gatewayRefundID).First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) UpdateRefund(ctx context.Context, id uint64, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.RefundRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}
