package outbox

import "github.com/angelmondragon/storefront-orders/pkg/enums"

// OrderCreatedEvent is emitted for every persisted vendor order.
type OrderCreatedEvent struct {
	OrderID       uint64            `json:"order_id"`
	ParentOrderID *string           `json:"parent_order_id,omitempty"`
	CustomerID    uint64            `json:"customer_id"`
	VendorID      uint64            `json:"vendor_id"`
	PaymentCode   enums.PaymentCode `json:"payment_code"`
	Total         string            `json:"total"`
}

// OrderStatusChangedEvent is emitted by every effective status transition.
type OrderStatusChangedEvent struct {
	OrderID    uint64            `json:"order_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	Comment    string            `json:"comment,omitempty"`
}

// CheckoutCompletedEvent summarises a checkout that produced several orders.
type CheckoutCompletedEvent struct {
	ParentOrderID string   `json:"parent_order_id"`
	OrderIDs      []uint64 `json:"order_ids"`
	CustomerID    uint64   `json:"customer_id"`
	Total         string   `json:"total"`
}

// PaymentEvent covers captured and failed gateway payments.
type PaymentEvent struct {
	GatewayOrderID   string   `json:"gateway_order_id"`
	GatewayPaymentID string   `json:"gateway_payment_id,omitempty"`
	Amount           int64    `json:"amount"`
	Currency         string   `json:"currency"`
	OrderIDs         []uint64 `json:"order_ids,omitempty"`
	Source           string   `json:"source"`
}

// RefundCreatedEvent is emitted once a refund is recorded.
type RefundCreatedEvent struct {
	GatewayRefundID  string           `json:"gateway_refund_id"`
	GatewayPaymentID string           `json:"gateway_payment_id"`
	Amount           int64            `json:"amount"`
	RefundType       enums.RefundType `json:"refund_type"`
}
