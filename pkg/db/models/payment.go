package models

import (
	"time"

	"github.com/angelmondragon/storefront-orders/pkg/enums"
)

// PaymentRecord tracks one gateway order from creation to settlement.
type PaymentRecord struct {
	ID               uint64                    `gorm:"column:id;primaryKey;autoIncrement"`
	GatewayOrderID   string                    `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	CustomerID       uint64                    `gorm:"column:customer_id;not null;index"`
	Amount           int64                     `gorm:"column:amount;not null"`
	RefundedAmount   int64                     `gorm:"column:refunded_amount;not null;default:0"`
	Currency         string                    `gorm:"column:currency;not null"`
	Receipt          string                    `gorm:"column:receipt;not null"`
	Status           enums.PaymentRecordStatus `gorm:"column:status;not null;default:'created'"`
	GatewayPaymentID *string                   `gorm:"column:gateway_payment_id;index"`
	Method           *string                   `gorm:"column:method"`
	OrderID          *uint64                   `gorm:"column:order_id;index"`
	ParentOrderID    *string                   `gorm:"column:parent_order_id"`
	CreatedAt        time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentRecord) TableName() string { return "oc_payment_order" }

// Remaining returns the refundable balance in minor units.
func (p PaymentRecord) Remaining() int64 {
	return p.Amount - p.RefundedAmount
}

// WebhookEvent is the verbatim log of an inbound gateway webhook delivery.
type WebhookEvent struct {
	ID                uint64              `gorm:"column:id;primaryKey;autoIncrement"`
	EventID           string              `gorm:"column:event_id;not null;index;uniqueIndex:ux_webhook_processed,where:processed = true"`
	EventType         string              `gorm:"column:event_type;not null;default:''"`
	EntityType        string              `gorm:"column:entity_type;not null;default:''"`
	EntityID          string              `gorm:"column:entity_id;not null;default:''"`
	Payload           string              `gorm:"column:payload;type:text;not null"`
	Signature         string              `gorm:"column:signature;not null;default:''"`
	SignatureVerified bool                `gorm:"column:signature_verified;not null;default:false"`
	Processed         bool                `gorm:"column:processed;not null;default:false"`
	RetryCount        int                 `gorm:"column:retry_count;not null;default:0"`
	Status            enums.WebhookStatus `gorm:"column:status;not null;default:'received'"`
	LastError         *string             `gorm:"column:last_error"`
	ProcessedAt       *time.Time          `gorm:"column:processed_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (WebhookEvent) TableName() string { return "oc_payment_webhook_log" }

// RefundRecord is a refund issued against a captured gateway payment.
type RefundRecord struct {
	ID               uint64             `gorm:"column:id;primaryKey;autoIncrement"`
	GatewayRefundID  string             `gorm:"column:gateway_refund_id;not null;uniqueIndex"`
	GatewayPaymentID string             `gorm:"column:gateway_payment_id;not null;index"`
	OrderID          *uint64            `gorm:"column:order_id"`
	Amount           int64              `gorm:"column:amount;not null"`
	Currency         string             `gorm:"column:currency;not null"`
	Status           enums.RefundStatus `gorm:"column:status;not null"`
	RefundType       enums.RefundType   `gorm:"column:refund_type;not null"`
	Reason           string             `gorm:"column:reason;not null;default:''"`
	Receipt          string             `gorm:"column:receipt;not null;default:''"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (RefundRecord) TableName() string { return "oc_payment_refund" }
