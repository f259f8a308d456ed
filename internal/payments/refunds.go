package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/pkg/db"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/idgen"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
	"github.com/angelmondragon/storefront-orders/pkg/money"
	"github.com/angelmondragon/storefront-orders/pkg/razorpay"
)

// RefundInput requests a refund against a captured payment. A nil Amount
// refunds the remaining balance.
type RefundInput struct {
	PaymentID string
	Amount    *decimal.Decimal
	Reason    string
	Receipt   string
}

// RefundResult reports the recorded refund. Amount is in minor units.
type RefundResult struct {
	RefundID   string           `json:"refund_id"`
	Amount     int64            `json:"amount"`
	Status     string           `json:"status"`
	RefundType enums.RefundType `json:"refund_type"`
}

type RefundManager struct {
	tx         db.TxRunner
	repo       Repository
	gateway    Gateway
	reconciler *Reconciler
	ids        *idgen.Generator
	logg       *logger.Logger
}

func NewRefundManager(tx db.TxRunner, repo Repository, gateway Gateway, reconciler *Reconciler, ids *idgen.Generator, logg *logger.Logger) (*RefundManager, error) {
	switch {
	case tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case repo == nil:
		return nil, fmt.Errorf("payments repository required")
	case gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case reconciler == nil:
		return nil, fmt.Errorf("reconciler required")
	case ids == nil:
		return nil, fmt.Errorf("id generator required")
	}
	return &RefundManager{tx: tx, repo: repo, gateway: gateway, reconciler: reconciler, ids: ids, logg: logg}, nil
}

// CreateRefund locks the payment record for the whole operation so concurrent
// refunds cannot exceed the captured amount. The balance is checked before
// the gateway is called.
func (m *RefundManager) CreateRefund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_id is required")
	}
	var requested *int64
	if input.Amount != nil {
		minor, err := money.ToMinor(*input.Amount)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
		}
		if minor <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
		}
		requested = &minor
	}
	receipt := strings.TrimSpace(input.Receipt)
	if receipt == "" {
		receipt = m.ids.Receipt()
	}

	var result *RefundResult
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		record, err := m.repo.WithTx(tx).FindByGatewayPaymentIDForUpdate(ctx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "payment %s not found", paymentID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock payment record")
		}
		if record.Status != enums.PaymentRecordPaid {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment %s is %s and cannot be refunded", paymentID, record.Status)
		}

		amount := record.Remaining()
		refundType := enums.RefundTypeFull
		if requested != nil {
			amount = *requested
			if amount != record.Amount {
				refundType = enums.RefundTypePartial
			}
		}
		if amount <= 0 || record.RefundedAmount+amount > record.Amount {
			return pkgerrors.Newf(pkgerrors.CodeBusinessRule, "refund of %d exceeds refundable balance %d", amount, record.Remaining()).
				WithDetails(map[string]any{
					"amount":          amount,
					"refunded_amount": record.RefundedAmount,
					"payment_amount":  record.Amount,
				})
		}

		notes := map[string]string{}
		if input.Reason != "" {
			notes["reason"] = input.Reason
		}
		refund, err := m.gateway.Refund(ctx, razorpay.RefundRequest{
			PaymentID: paymentID,
			Amount:    amount,
			Receipt:   receipt,
			Notes:     notes,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create gateway refund")
		}
		refunded := refund.Amount
		if refunded == 0 {
			refunded = amount
		}

		row, _, err := m.reconciler.ApplyRefundTx(ctx, tx, record, AppliedRefund{
			GatewayRefundID: refund.ID,
			Amount:          refunded,
			Currency:        refund.Currency,
			Status:          enums.ParseRefundStatus(refund.Status),
			Type:            refundType,
			Reason:          input.Reason,
			Receipt:         receipt,
			Source:          SourceRefund,
		})
		if err != nil {
			return err
		}
		result = &RefundResult{
			RefundID:   row.GatewayRefundID,
			Amount:     row.Amount,
			Status:     string(row.Status),
			RefundType: row.RefundType,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := m.logg.WithFields(ctx, map[string]any{
		"gateway_payment_id": paymentID,
		"refund_id":          result.RefundID,
		"amount":             result.Amount,
		"refund_type":        string(result.RefundType),
	})
	m.logg.Info(logCtx, "refund created")
	return result, nil
}
