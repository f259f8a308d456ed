package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-orders/pkg/db"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateLineItem(ctx context.Context, item *models.OrderLineItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) CreateOptions(ctx context.Context, options []models.OrderOption) error {
	if len(options) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&options).Error
}

func (r *repository) CreateTotals(ctx context.Context, rows []models.OrderTotal) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) CreateHistory(ctx context.Context, entry *models.OrderHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CreateVendorHistory(ctx context.Context, entries []models.OrderVendorHistory) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) CreateVendorLineItems(ctx context.Context, items []models.VendorOrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) CreateParentOrder(ctx context.Context, parent *models.ParentOrder) error {
	return r.db.WithContext(ctx).Create(parent).Error
}

func (r *repository) AssignParent(ctx context.Context, parentOrderID string, orderIDs []uint64) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_id IN ?", orderIDs).
		Update("parent_order_id", parentOrderID).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uint64) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uint64) (*models.Order, error) {
	var order models.Order
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("order_id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindParentOrder(ctx context.Context, parentOrderID string) (*models.ParentOrder, error) {
	var parent models.ParentOrder
	if err := r.db.WithContext(ctx).Where("parent_order_id = ?", parentOrderID).First(&parent).Error; err != nil {
		return nil, err
	}
	return &parent, nil
}

func (r *repository) ListLineItems(ctx context.Context, orderID uint64) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("order_product_id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) ListTotals(ctx context.Context, orderID uint64) ([]models.OrderTotal, error) {
	var rows []models.OrderTotal
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("sort_order ASC").
		Order("order_total_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListHistory(ctx context.Context, orderID uint64) ([]models.OrderHistory, error) {
	var entries []models.OrderHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("order_history_id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) ListVendorHistory(ctx context.Context, orderID uint64) ([]models.OrderVendorHistory, error) {
	var entries []models.OrderVendorHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("order_vendorhistory_id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) ListVendorLineItems(ctx context.Context, orderID uint64) ([]models.VendorOrderLineItem, error) {
	var items []models.VendorOrderLineItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) VendorIDsForOrder(ctx context.Context, orderID uint64) ([]uint64, error) {
	var vendorIDs []uint64
	err := r.db.WithContext(ctx).
		Model(&models.VendorOrderLineItem{}).
		Where("order_id = ?", orderID).
		Distinct("vendor_id").
		Order("vendor_id ASC").
		Pluck("vendor_id", &vendorIDs).Error
	return vendorIDs, err
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uint64, status enums.OrderStatus, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"order_status_id": status,
			"date_modified":   at,
		}).Error
}

func (r *repository) UpdateVendorLineStatus(ctx context.Context, orderID uint64, status enums.OrderStatus, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorOrderLineItem{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"order_status_id": status,
			"date_modified":   at,
		}).Error
}
