// Package dbtest opens isolated in-memory sqlite databases carrying the full
// storefront schema for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-orders/pkg/db"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
)

var seq atomic.Int64

// Tables lists every model migrated into a test database.
func Tables() []any {
	return []any{
		&models.Order{},
		&models.OrderLineItem{},
		&models.OrderOption{},
		&models.OrderTotal{},
		&models.OrderHistory{},
		&models.OrderVendorHistory{},
		&models.VendorOrderLineItem{},
		&models.ParentOrder{},
		&models.PaymentRecord{},
		&models.WebhookEvent{},
		&models.RefundRecord{},
		&models.OutboxEvent{},
		&models.Customer{},
		&models.Address{},
		&models.CartItem{},
		&models.Product{},
		&models.ProductSpecial{},
		&models.ProductOptionValue{},
		&models.VendorToProduct{},
		&models.CourierCharge{},
		&models.Coupon{},
		&models.CouponHistory{},
	}
}

// Open returns a fresh database unique to the calling test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// A single connection keeps the in-memory database alive and serialises
	// access; code under test must issue every statement through its tx.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(Tables()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in the transaction-capable db client.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.FromGorm(conn), conn
}
