package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/pkg/db"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
	"github.com/angelmondragon/storefront-orders/pkg/outbox"
)

// TransitionResult describes what a transition did.
type TransitionResult struct {
	OrderID uint64
	From    enums.OrderStatus
	To      enums.OrderStatus
	Changed bool
}

// Transitioner is the status mutation surface used by checkout, payments and webhooks.
type Transitioner interface {
	Transition(ctx context.Context, orderID uint64, target enums.OrderStatus, comment string) (*TransitionResult, error)
	TransitionTx(ctx context.Context, tx *gorm.DB, orderID uint64, target enums.OrderStatus, comment string) (*TransitionResult, error)
}

// StateMachine is the only writer of order_status_id. Every effective
// transition updates the order, both history logs and the vendor mirrors together.
type StateMachine struct {
	tx     db.TxRunner
	repo   Repository
	outbox outbox.Emitter
	logg   *logger.Logger
	now    func() time.Time
}

func NewStateMachine(tx db.TxRunner, repo Repository, emitter outbox.Emitter, logg *logger.Logger) (*StateMachine, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &StateMachine{
		tx:     tx,
		repo:   repo,
		outbox: emitter,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Transition runs TransitionTx in its own transaction.
func (m *StateMachine) Transition(ctx context.Context, orderID uint64, target enums.OrderStatus, comment string) (*TransitionResult, error) {
	var result *TransitionResult
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = m.TransitionTx(ctx, tx, orderID, target, comment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransitionTx moves the order to target inside tx. Re-applying the current
// status writes nothing and reports Changed=false.
func (m *StateMachine) TransitionTx(ctx context.Context, tx *gorm.DB, orderID uint64, target enums.OrderStatus, comment string) (*TransitionResult, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %d", int(target))
	}
	repo := m.repo.WithTx(tx)

	var (
		order *models.Order
		err   error
	)
	if target.IsTerminal() {
		order, err = repo.FindOrderForUpdate(ctx, orderID)
	} else {
		order, err = repo.FindOrder(ctx, orderID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %d not found", orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}

	from := order.OrderStatusID
	result := &TransitionResult{OrderID: orderID, From: from, To: target}
	if from == target {
		return result, nil
	}
	if !enums.CanTransition(from, target) {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order %d cannot move from %s to %s", orderID, from, target).
			WithDetails(map[string]any{
				"order_id":    orderID,
				"from_status": int(from),
				"to_status":   int(target),
			})
	}

	now := m.now()
	if err := repo.UpdateOrderStatus(ctx, orderID, target, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	if err := repo.CreateHistory(ctx, &models.OrderHistory{
		OrderID:       orderID,
		OrderStatusID: target,
		Notify:        true,
		Comment:       comment,
		DateAdded:     now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append order history")
	}
	if err := repo.UpdateVendorLineStatus(ctx, orderID, target, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update vendor line status")
	}

	vendorIDs, err := repo.VendorIDsForOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order vendors")
	}
	entries := make([]models.OrderVendorHistory, 0, len(vendorIDs))
	for _, vendorID := range vendorIDs {
		entries = append(entries, models.OrderVendorHistory{
			OrderID:       orderID,
			VendorID:      vendorID,
			OrderStatusID: target,
			Comment:       comment,
			DateAdded:     now,
		})
	}
	if err := repo.CreateVendorHistory(ctx, entries); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append vendor history")
	}

	if err := m.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   strconv.FormatUint(orderID, 10),
		OccurredAt:    now,
		Data: outbox.OrderStatusChangedEvent{
			OrderID:    orderID,
			FromStatus: from,
			ToStatus:   target,
			Comment:    comment,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit status change")
	}

	result.Changed = true
	logCtx := m.logg.WithFields(m.logg.WithOrderID(ctx, orderID), map[string]any{
		"from_status": from.String(),
		"to_status":   target.String(),
	})
	m.logg.Info(logCtx, "order status changed")
	return result, nil
}
