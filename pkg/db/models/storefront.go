package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// The storefront tables below are owned by the catalog, cart and account
// modules. Only the columns read by checkout are mapped.

type Customer struct {
	CustomerID uint64 `gorm:"column:customer_id;primaryKey;autoIncrement"`
	Firstname  string `gorm:"column:firstname;not null"`
	Lastname   string `gorm:"column:lastname;not null"`
	Email      string `gorm:"column:email;not null"`
	Telephone  string `gorm:"column:telephone;not null"`
	AddressID  uint64 `gorm:"column:address_id;not null;default:0"`
	Status     bool   `gorm:"column:status;not null;default:true"`
}

func (Customer) TableName() string { return "oc_customer" }

type Address struct {
	AddressID  uint64 `gorm:"column:address_id;primaryKey;autoIncrement"`
	CustomerID uint64 `gorm:"column:customer_id;not null;index"`
	Firstname  string `gorm:"column:firstname;not null"`
	Lastname   string `gorm:"column:lastname;not null"`
	Company    string `gorm:"column:company;not null;default:''"`
	Address1   string `gorm:"column:address_1;not null"`
	Address2   string `gorm:"column:address_2;not null;default:''"`
	City       string `gorm:"column:city;not null"`
	Postcode   string `gorm:"column:postcode;not null"`
	Country    string `gorm:"column:country;not null;default:''"`
	Zone       string `gorm:"column:zone;not null;default:''"`
}

func (Address) TableName() string { return "oc_address" }

// CartItem is a row of the customer's persisted cart. Option holds a JSON map
// of product_option_id to product_option_value_id.
type CartItem struct {
	CartID     uint64    `gorm:"column:cart_id;primaryKey;autoIncrement"`
	CustomerID uint64    `gorm:"column:customer_id;not null;index"`
	ProductID  uint64    `gorm:"column:product_id;not null"`
	Quantity   int       `gorm:"column:quantity;not null"`
	Option     string    `gorm:"column:option;type:text;not null;default:'{}'"`
	DateAdded  time.Time `gorm:"column:date_added;autoCreateTime"`
}

func (CartItem) TableName() string { return "oc_cart" }

type Product struct {
	ProductID uint64          `gorm:"column:product_id;primaryKey;autoIncrement"`
	Name      string          `gorm:"column:name;not null"`
	Model     string          `gorm:"column:model;not null;default:''"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(15,4);not null"`
	Quantity  int             `gorm:"column:quantity;not null;default:0"`
	Minimum   int             `gorm:"column:minimum;not null;default:1"`
	Subtract  bool            `gorm:"column:subtract;not null;default:true"`
	Status    bool            `gorm:"column:status;not null;default:true"`
}

func (Product) TableName() string { return "oc_product" }

type ProductSpecial struct {
	ProductSpecialID uint64          `gorm:"column:product_special_id;primaryKey;autoIncrement"`
	ProductID        uint64          `gorm:"column:product_id;not null;index"`
	Priority         int             `gorm:"column:priority;not null;default:1"`
	Price            decimal.Decimal `gorm:"column:price;type:numeric(15,4);not null"`
	DateStart        *time.Time      `gorm:"column:date_start"`
	DateEnd          *time.Time      `gorm:"column:date_end"`
}

func (ProductSpecial) TableName() string { return "oc_product_special" }

type ProductOptionValue struct {
	ProductOptionValueID uint64          `gorm:"column:product_option_value_id;primaryKey;autoIncrement"`
	ProductOptionID      uint64          `gorm:"column:product_option_id;not null"`
	ProductID            uint64          `gorm:"column:product_id;not null;index"`
	Name                 string          `gorm:"column:name;not null"`
	Value                string          `gorm:"column:value;not null"`
	Price                decimal.Decimal `gorm:"column:price;type:numeric(15,4);not null"`
	PricePrefix          string          `gorm:"column:price_prefix;not null;default:'+'"`
}

func (ProductOptionValue) TableName() string { return "oc_product_option_value" }

type VendorToProduct struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	VendorID  uint64 `gorm:"column:vendor_id;not null;index"`
	ProductID uint64 `gorm:"column:product_id;not null;uniqueIndex"`
}

func (VendorToProduct) TableName() string { return "oc_vendor_to_product" }

// CourierCharge is a pincode shipping rule. VendorID 0 applies to every vendor.
type CourierCharge struct {
	ID       uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	Pincode  string          `gorm:"column:pincode;not null;index"`
	VendorID uint64          `gorm:"column:vendor_id;not null;default:0"`
	Charge   decimal.Decimal `gorm:"column:charge;type:numeric(15,4);not null"`
}

func (CourierCharge) TableName() string { return "oc_courier_charges" }

// Coupon types: P is a percentage of the sub-total, F a fixed amount.
type Coupon struct {
	CouponID  uint64          `gorm:"column:coupon_id;primaryKey;autoIncrement"`
	Name      string          `gorm:"column:name;not null"`
	Code      string          `gorm:"column:code;not null;uniqueIndex"`
	Type      string          `gorm:"column:type;not null"`
	Discount  decimal.Decimal `gorm:"column:discount;type:numeric(15,4);not null"`
	DateStart *time.Time      `gorm:"column:date_start"`
	DateEnd   *time.Time      `gorm:"column:date_end"`
	Status    bool            `gorm:"column:status;not null;default:true"`
}

func (Coupon) TableName() string { return "oc_coupon" }

type CouponHistory struct {
	CouponHistoryID uint64          `gorm:"column:coupon_history_id;primaryKey;autoIncrement"`
	CouponID        uint64          `gorm:"column:coupon_id;not null"`
	OrderID         uint64          `gorm:"column:order_id;not null"`
	CustomerID      uint64          `gorm:"column:customer_id;not null"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(15,4);not null"`
	DateAdded       time.Time       `gorm:"column:date_added;autoCreateTime"`
}

func (CouponHistory) TableName() string { return "oc_coupon_history" }
