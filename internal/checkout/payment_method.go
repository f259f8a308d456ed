package checkout

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/internal/orders"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

// PaymentMethod is one way a checkout can be paid. Settle runs inside the
// checkout transaction once every order is written.
type PaymentMethod interface {
	Code() enums.PaymentCode
	Title() string
	RequiresGateway() bool
	Settle(ctx context.Context, tx *gorm.DB, orderIDs []uint64) error
}

// CashOnDelivery confirms orders immediately.
type CashOnDelivery struct {
	machine orders.Transitioner
}

func NewCashOnDelivery(machine orders.Transitioner) (*CashOnDelivery, error) {
	if machine == nil {
		return nil, fmt.Errorf("state machine required")
	}
	return &CashOnDelivery{machine: machine}, nil
}

func (CashOnDelivery) Code() enums.PaymentCode { return enums.PaymentCodeCOD }
func (CashOnDelivery) Title() string           { return "Cash On Delivery" }
func (CashOnDelivery) RequiresGateway() bool   { return false }

func (c *CashOnDelivery) Settle(ctx context.Context, tx *gorm.DB, orderIDs []uint64) error {
	for _, id := range orderIDs {
		if _, err := c.machine.TransitionTx(ctx, tx, id, enums.OrderStatusProcessing, "Cash on delivery order confirmed"); err != nil {
			return err
		}
	}
	return nil
}

// Gateway leaves orders pending until the gateway confirms payment through
// verify or a webhook.
type Gateway struct{}

func (Gateway) Code() enums.PaymentCode { return enums.PaymentCodeRazorpay }
func (Gateway) Title() string           { return "Razorpay" }
func (Gateway) RequiresGateway() bool   { return true }

func (Gateway) Settle(context.Context, *gorm.DB, []uint64) error { return nil }

// Registry resolves payment method codes.
type Registry struct {
	methods map[enums.PaymentCode]PaymentMethod
}

func NewRegistry(methods ...PaymentMethod) *Registry {
	r := &Registry{methods: make(map[enums.PaymentCode]PaymentMethod, len(methods))}
	for _, m := range methods {
		if m != nil {
			r.methods[m.Code()] = m
		}
	}
	return r
}

func (r *Registry) Lookup(code string) (PaymentMethod, error) {
	parsed, err := enums.ParsePaymentCode(code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method").
			WithDetails(map[string]any{"payment_method": code})
	}
	method, ok := r.methods[parsed]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is not available").
			WithDetails(map[string]any{"payment_method": code})
	}
	return method, nil
}
