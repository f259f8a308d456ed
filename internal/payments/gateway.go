package payments

import (
	"context"

	"github.com/angelmondragon/storefront-orders/pkg/razorpay"
)

// Gateway is the payment provider surface. *razorpay.Client satisfies it.
type Gateway interface {
	KeyID() string
	KeySecret() string
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	Refund(ctx context.Context, req razorpay.RefundRequest) (*razorpay.Refund, error)
}

var _ Gateway = (*razorpay.Client)(nil)
