// Package cart builds a priced, stock-checked snapshot of a customer's cart.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/internal/totals"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

// Option is a selected product option value.
type Option struct {
	Name   string
	Value  string
	Price  decimal.Decimal
	Prefix string
}

// Line is one priced cart row. BasePrice is the special price when one is active.
type Line struct {
	CartID    uint64
	ProductID uint64
	Name      string
	Model     string
	Quantity  int
	BasePrice decimal.Decimal
	Options   []Option
}

// TotalsLine converts the line for the totals calculator.
func (l Line) TotalsLine() totals.Line {
	deltas := make([]totals.OptionDelta, 0, len(l.Options))
	for _, opt := range l.Options {
		deltas = append(deltas, totals.OptionDelta{Price: opt.Price, Prefix: opt.Prefix})
	}
	return totals.Line{UnitPrice: l.BasePrice, Quantity: l.Quantity, Options: deltas}
}

type Snapshot struct {
	CustomerID uint64
	Lines      []Line
}

// ProductIDs returns the distinct products in the cart.
func (s *Snapshot) ProductIDs() []uint64 {
	seen := map[uint64]struct{}{}
	ids := make([]uint64, 0, len(s.Lines))
	for _, line := range s.Lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

// LineProblem explains why a cart line cannot be checked out.
type LineProblem struct {
	ProductID uint64 `json:"product_id"`
	Reason    string `json:"reason"`
}

// Source reads the persisted cart.
type Source interface {
	Snapshot(ctx context.Context, customerID uint64) (*Snapshot, error)
	ClearTx(ctx context.Context, tx *gorm.DB, customerID uint64) error
}

type source struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSource(db *gorm.DB) Source {
	return &source{db: db, now: time.Now}
}

// Snapshot prices every cart row and rejects the cart when any line is
// unavailable, below its minimum or beyond stock.
func (s *source) Snapshot(ctx context.Context, customerID uint64) (*Snapshot, error) {
	var items []models.CartItem
	if err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("cart_id ASC").
		Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	productIDs := make([]uint64, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := s.loadProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	specials, err := s.loadSpecials(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{CustomerID: customerID}
	var problems []LineProblem
	requested := map[uint64]int{}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.Status {
			problems = append(problems, LineProblem{ProductID: item.ProductID, Reason: "product unavailable"})
			continue
		}
		if item.Quantity < max(product.Minimum, 1) {
			problems = append(problems, LineProblem{ProductID: item.ProductID, Reason: fmt.Sprintf("minimum quantity is %d", max(product.Minimum, 1))})
			continue
		}
		requested[item.ProductID] += item.Quantity
		if product.Subtract && requested[item.ProductID] > product.Quantity {
			problems = append(problems, LineProblem{ProductID: item.ProductID, Reason: "insufficient stock"})
			continue
		}

		options, err := s.loadOptions(ctx, item)
		if err != nil {
			var typed *pkgerrors.Error
			if errors.As(err, &typed) && typed.Code() == pkgerrors.CodeValidation {
				problems = append(problems, LineProblem{ProductID: item.ProductID, Reason: typed.Message()})
				continue
			}
			return nil, err
		}

		price := product.Price
		if special, ok := specials[item.ProductID]; ok {
			price = special
		}
		snapshot.Lines = append(snapshot.Lines, Line{
			CartID:    item.CartID,
			ProductID: item.ProductID,
			Name:      product.Name,
			Model:     product.Model,
			Quantity:  item.Quantity,
			BasePrice: price,
			Options:   options,
		})
	}

	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains lines that cannot be ordered").
			WithDetails(problems)
	}
	return snapshot, nil
}

func (s *source) ClearTx(ctx context.Context, tx *gorm.DB, customerID uint64) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.WithContext(ctx).Where("customer_id = ?", customerID).Delete(&models.CartItem{}).Error
}

func (s *source) loadProducts(ctx context.Context, productIDs []uint64) (map[uint64]models.Product, error) {
	var rows []models.Product
	if err := s.db.WithContext(ctx).Where("product_id IN ?", productIDs).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	out := make(map[uint64]models.Product, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row
	}
	return out, nil
}

// loadSpecials returns the winning active special per product: lowest
// priority first, then lowest price.
func (s *source) loadSpecials(ctx context.Context, productIDs []uint64) (map[uint64]decimal.Decimal, error) {
	now := s.now()
	var rows []models.ProductSpecial
	err := s.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Where("(date_start IS NULL OR date_start <= ?) AND (date_end IS NULL OR date_end > ?)", now, now).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product specials")
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Priority != rows[j].Priority {
			return rows[i].Priority < rows[j].Priority
		}
		return rows[i].Price.LessThan(rows[j].Price)
	})
	out := make(map[uint64]decimal.Decimal, len(rows))
	for _, row := range rows {
		if _, ok := out[row.ProductID]; !ok {
			out[row.ProductID] = row.Price
		}
	}
	return out, nil
}

func (s *source) loadOptions(ctx context.Context, item models.CartItem) ([]Option, error) {
	valueIDs, err := parseOptionValueIDs(item.Option)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid option selection: %v", err)
	}
	if len(valueIDs) == 0 {
		return nil, nil
	}
	var rows []models.ProductOptionValue
	if err := s.db.WithContext(ctx).
		Where("product_id = ? AND product_option_value_id IN ?", item.ProductID, valueIDs).
		Order("product_option_value_id ASC").
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product options")
	}
	if len(rows) != len(valueIDs) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "selected option is no longer available")
	}
	options := make([]Option, 0, len(rows))
	for _, row := range rows {
		options = append(options, Option{Name: row.Name, Value: row.Value, Price: row.Price, Prefix: row.PricePrefix})
	}
	return options, nil
}

// parseOptionValueIDs reads the cart option column, a JSON object of
// product_option_id to one value id or a list of value ids.
func parseOptionValueIDs(raw string) ([]uint64, error) {
	if raw == "" || raw == "[]" || raw == "{}" {
		return nil, nil
	}
	var selections map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &selections); err != nil {
		return nil, err
	}
	seen := map[uint64]struct{}{}
	var ids []uint64
	add := func(id uint64) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for key, value := range selections {
		var list []json.RawMessage
		if err := json.Unmarshal(value, &list); err != nil {
			list = []json.RawMessage{value}
		}
		for _, entry := range list {
			id, err := parseID(entry)
			if err != nil {
				return nil, fmt.Errorf("option %s: %w", key, err)
			}
			add(id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func parseID(raw json.RawMessage) (uint64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.ParseUint(n.String(), 10, 64)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseUint(s, 10, 64)
}
