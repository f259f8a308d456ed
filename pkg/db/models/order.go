package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-orders/pkg/enums"
)

// AddressSnapshot is the address captured on an order at checkout time.
type AddressSnapshot struct {
	Firstname string `gorm:"column:firstname;not null;default:''"`
	Lastname  string `gorm:"column:lastname;not null;default:''"`
	Company   string `gorm:"column:company;not null;default:''"`
	Address1  string `gorm:"column:address_1;not null;default:''"`
	Address2  string `gorm:"column:address_2;not null;default:''"`
	City      string `gorm:"column:city;not null;default:''"`
	Postcode  string `gorm:"column:postcode;not null;default:''"`
	Country   string `gorm:"column:country;not null;default:''"`
	Zone      string `gorm:"column:zone;not null;default:''"`
}

// Order is one vendor-scoped purchase. Rows are never deleted; cancellation is a status.
type Order struct {
	OrderID       uint64  `gorm:"column:order_id;primaryKey;autoIncrement"`
	ParentOrderID *string `gorm:"column:parent_order_id;index"`
	VendorID      uint64  `gorm:"column:vendor_id;not null;default:0;index"`

	CustomerID uint64 `gorm:"column:customer_id;not null;index"`
	Firstname  string `gorm:"column:firstname;not null"`
	Lastname   string `gorm:"column:lastname;not null"`
	Email      string `gorm:"column:email;not null"`
	Telephone  string `gorm:"column:telephone;not null"`

	PaymentAddress  AddressSnapshot `gorm:"embedded;embeddedPrefix:payment_"`
	ShippingAddress AddressSnapshot `gorm:"embedded;embeddedPrefix:shipping_"`

	PaymentMethod string            `gorm:"column:payment_method;not null"`
	PaymentCode   enums.PaymentCode `gorm:"column:payment_code;not null"`

	OrderStatusID enums.OrderStatus `gorm:"column:order_status_id;not null;default:0"`
	Total         decimal.Decimal   `gorm:"column:total;type:numeric(15,4);not null"`
	CourierCharge decimal.Decimal   `gorm:"column:courier_charge;type:numeric(15,4);not null"`
	Comment       string            `gorm:"column:comment;not null;default:''"`

	DateAdded    time.Time `gorm:"column:date_added;autoCreateTime"`
	DateModified time.Time `gorm:"column:date_modified;autoUpdateTime"`
}

func (Order) TableName() string { return "oc_order" }

// OrderLineItem snapshots one purchased product.
type OrderLineItem struct {
	OrderProductID uint64          `gorm:"column:order_product_id;primaryKey;autoIncrement"`
	OrderID        uint64          `gorm:"column:order_id;not null;index"`
	ProductID      uint64          `gorm:"column:product_id;not null"`
	Name           string          `gorm:"column:name;not null"`
	Model          string          `gorm:"column:model;not null;default:''"`
	Quantity       int             `gorm:"column:quantity;not null"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(15,4);not null"`
	Total          decimal.Decimal `gorm:"column:total;type:numeric(15,4);not null"`
	Tax            decimal.Decimal `gorm:"column:tax;type:numeric(15,4);not null"`
}

func (OrderLineItem) TableName() string { return "oc_order_product" }

// OrderOption records a selected product option on a line item.
type OrderOption struct {
	OrderOptionID  uint64          `gorm:"column:order_option_id;primaryKey;autoIncrement"`
	OrderID        uint64          `gorm:"column:order_id;not null;index"`
	OrderProductID uint64          `gorm:"column:order_product_id;not null"`
	Name           string          `gorm:"column:name;not null"`
	Value          string          `gorm:"column:value;not null"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(15,4);not null"`
	PricePrefix    string          `gorm:"column:price_prefix;not null;default:'+'"`
}

func (OrderOption) TableName() string { return "oc_order_option" }

// OrderTotal is one financial component of an order.
type OrderTotal struct {
	OrderTotalID uint64          `gorm:"column:order_total_id;primaryKey;autoIncrement"`
	OrderID      uint64          `gorm:"column:order_id;not null;index"`
	Code         string          `gorm:"column:code;not null"`
	Title        string          `gorm:"column:title;not null"`
	Value        decimal.Decimal `gorm:"column:value;type:numeric(15,4);not null"`
	SortOrder    int             `gorm:"column:sort_order;not null"`
}

func (OrderTotal) TableName() string { return "oc_order_total" }

// OrderHistory is the customer-facing status log.
type OrderHistory struct {
	OrderHistoryID uint64            `gorm:"column:order_history_id;primaryKey;autoIncrement"`
	OrderID        uint64            `gorm:"column:order_id;not null;index"`
	OrderStatusID  enums.OrderStatus `gorm:"column:order_status_id;not null"`
	Notify         bool              `gorm:"column:notify;not null;default:false"`
	Comment        string            `gorm:"column:comment;not null;default:''"`
	DateAdded      time.Time         `gorm:"column:date_added;autoCreateTime"`
}

func (OrderHistory) TableName() string { return "oc_order_history" }

// OrderVendorHistory is the vendor-facing status log.
type OrderVendorHistory struct {
	OrderVendorHistoryID uint64            `gorm:"column:order_vendorhistory_id;primaryKey;autoIncrement"`
	OrderID              uint64            `gorm:"column:order_id;not null;index"`
	VendorID             uint64            `gorm:"column:vendor_id;not null"`
	OrderStatusID        enums.OrderStatus `gorm:"column:order_status_id;not null"`
	Comment              string            `gorm:"column:comment;not null;default:''"`
	DateAdded            time.Time         `gorm:"column:date_added;autoCreateTime"`
}

func (OrderVendorHistory) TableName() string { return "oc_order_vendorhistory" }

// VendorOrderLineItem mirrors a line item for the owning vendor's panel.
type VendorOrderLineItem struct {
	ID             uint64            `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID        uint64            `gorm:"column:order_id;not null;index"`
	OrderProductID uint64            `gorm:"column:order_product_id;not null"`
	VendorID       uint64            `gorm:"column:vendor_id;not null;index"`
	ProductID      uint64            `gorm:"column:product_id;not null"`
	Name           string            `gorm:"column:name;not null"`
	Model          string            `gorm:"column:model;not null;default:''"`
	Quantity       int               `gorm:"column:quantity;not null"`
	Price          decimal.Decimal   `gorm:"column:price;type:numeric(15,4);not null"`
	Total          decimal.Decimal   `gorm:"column:total;type:numeric(15,4);not null"`
	OrderStatusID  enums.OrderStatus `gorm:"column:order_status_id;not null"`
	DateAdded      time.Time         `gorm:"column:date_added;autoCreateTime"`
	DateModified   time.Time         `gorm:"column:date_modified;autoUpdateTime"`
}

func (VendorOrderLineItem) TableName() string { return "oc_vendor_order_product" }

// ParentOrder groups the vendor orders created from one multi-vendor checkout.
type ParentOrder struct {
	ParentOrderID string          `gorm:"column:parent_order_id;primaryKey"`
	CustomerID    uint64          `gorm:"column:customer_id;not null"`
	OrderIDs      []uint64        `gorm:"column:order_ids;serializer:json;type:text;not null"`
	CourierCharge decimal.Decimal `gorm:"column:courier_charge;type:numeric(15,4);not null"`
	Total         decimal.Decimal `gorm:"column:total;type:numeric(15,4);not null"`
	DateAdded     time.Time       `gorm:"column:date_added;autoCreateTime"`
	DateModified  time.Time       `gorm:"column:date_modified;autoUpdateTime"`
}

func (ParentOrder) TableName() string { return "oc_order_parent" }
