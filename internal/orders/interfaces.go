package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	"gorm.io/gorm"
)

// Repository defines persistence operations for the order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLineItem(ctx context.Context, item *models.OrderLineItem) error
	CreateOptions(ctx context.Context, options []models.OrderOption) error
	CreateTotals(ctx context.Context, rows []models.OrderTotal) error
	CreateHistory(ctx context.Context, entry *models.OrderHistory) error
	CreateVendorHistory(ctx context.Context, entries []models.OrderVendorHistory) error
	CreateVendorLineItems(ctx context.Context, items []models.VendorOrderLineItem) error
	CreateParentOrder(ctx context.Context, parent *models.ParentOrder) error
	AssignParent(ctx context.Context, parentOrderID string, orderIDs []uint64) error

	FindOrder(ctx context.Context, orderID uint64) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID uint64) (*models.Order, error)
	FindParentOrder(ctx context.Context, parentOrderID string) (*models.ParentOrder, error)
	ListLineItems(ctx context.Context, orderID uint64) ([]models.OrderLineItem, error)
	ListTotals(ctx context.Context, orderID uint64) ([]models.OrderTotal, error)
	ListHistory(ctx context.Context, orderID uint64) ([]models.OrderHistory, error)
	ListVendorHistory(ctx context.Context, orderID uint64) ([]models.OrderVendorHistory, error)
	ListVendorLineItems(ctx context.Context, orderID uint64) ([]models.VendorOrderLineItem, error)
	VendorIDsForOrder(ctx context.Context, orderID uint64) ([]uint64, error)

	UpdateOrderStatus(ctx context.Context, orderID uint64, status enums.OrderStatus, at time.Time) error
	UpdateVendorLineStatus(ctx context.Context, orderID uint64, status enums.OrderStatus, at time.Time) error
}
