package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/pkg/db"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

const customerCancelComment = "Cancelled by customer"

// HistoryEntry is one row of the customer-facing status log.
type HistoryEntry struct {
	StatusID  int       `json:"order_status_id"`
	Status    string    `json:"status"`
	Comment   string    `json:"comment"`
	DateAdded time.Time `json:"date_added"`
}

// TotalLine is one financial row of the order.
type TotalLine struct {
	Code      string `json:"code"`
	Title     string `json:"title"`
	Value     string `json:"value"`
	SortOrder int    `json:"sort_order"`
}

// OrderHistoryView is returned by the order history endpoint.
type OrderHistoryView struct {
	OrderID       uint64         `json:"order_id"`
	ParentOrderID *string        `json:"parent_order_id,omitempty"`
	StatusID      int            `json:"order_status_id"`
	Status        string         `json:"status"`
	Label         string         `json:"label"`
	PaymentCode   string         `json:"payment_code"`
	Total         string         `json:"total"`
	Totals        []TotalLine    `json:"totals"`
	History       []HistoryEntry `json:"history"`
}

// Service holds the order operations exposed over HTTP.
type Service interface {
	History(ctx context.Context, orderID, customerID uint64, admin bool) (*OrderHistoryView, error)
	Cancel(ctx context.Context, orderID, customerID uint64, comment string) (*TransitionResult, error)
	UpdateStatus(ctx context.Context, orderID uint64, status int, comment string) (*TransitionResult, error)
}

type service struct {
	repo    Repository
	tx      db.TxRunner
	machine Transitioner
}

func NewService(repo Repository, tx db.TxRunner, machine Transitioner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if machine == nil {
		return nil, fmt.Errorf("state machine required")
	}
	return &service{repo: repo, tx: tx, machine: machine}, nil
}

func (s *service) History(ctx context.Context, orderID, customerID uint64, admin bool) (*OrderHistoryView, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err, orderID)
	}
	if !admin && order.CustomerID != customerID {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %d not found", orderID)
	}

	entries, err := s.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order history")
	}
	rows, err := s.repo.ListTotals(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order totals")
	}

	view := &OrderHistoryView{
		OrderID:       order.OrderID,
		ParentOrderID: order.ParentOrderID,
		StatusID:      int(order.OrderStatusID),
		Status:        order.OrderStatusID.String(),
		Label:         enums.DescribeStatus(order.OrderStatusID, order.PaymentCode),
		PaymentCode:   order.PaymentCode.String(),
		Total:         order.Total.StringFixed(2),
		Totals:        make([]TotalLine, 0, len(rows)),
		History:       make([]HistoryEntry, 0, len(entries)),
	}
	for _, row := range rows {
		view.Totals = append(view.Totals, TotalLine{
			Code:      row.Code,
			Title:     row.Title,
			Value:     row.Value.StringFixed(2),
			SortOrder: row.SortOrder,
		})
	}
	for _, entry := range entries {
		view.History = append(view.History, HistoryEntry{
			StatusID:  int(entry.OrderStatusID),
			Status:    entry.OrderStatusID.String(),
			Comment:   entry.Comment,
			DateAdded: entry.DateAdded,
		})
	}
	return view, nil
}

// Cancel lets a customer cancel an order they own while it is still pending or processing.
func (s *service) Cancel(ctx context.Context, orderID, customerID uint64, comment string) (*TransitionResult, error) {
	if comment == "" {
		comment = customerCancelComment
	}
	var result *TransitionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindOrderForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadError(err, orderID)
		}
		if order.CustomerID != customerID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %d not found", orderID)
		}
		if order.OrderStatusID != enums.OrderStatusCancelled && !enums.CanTransition(order.OrderStatusID, enums.OrderStatusCancelled) {
			return pkgerrors.Newf(pkgerrors.CodeBusinessRule, "order %d is %s and can no longer be cancelled", orderID, order.OrderStatusID).
				WithDetails(map[string]any{"order_id": orderID, "order_status_id": int(order.OrderStatusID)})
		}
		result, err = s.machine.TransitionTx(ctx, tx, orderID, enums.OrderStatusCancelled, comment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uint64, status int, comment string) (*TransitionResult, error) {
	target, err := enums.ParseOrderStatus(status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status")
	}
	return s.machine.Transition(ctx, orderID, target, comment)
}

func mapLoadError(err error, orderID uint64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %d not found", orderID)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}
