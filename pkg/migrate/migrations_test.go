package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/angelmondragon/storefront-orders/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Embedded()); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(onDisk) != len(embedded) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}

func TestValidateFSRejectsMissingDown(t *testing.T) {
	bad := fstest.MapFS{
		"20260101000000_broken.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
	}
	if err := migrate.ValidateFS(bad); err == nil {
		t.Fatal("expected missing Down section to fail")
	}
	misnamed := fstest.MapFS{"create_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}}
	if err := migrate.ValidateFS(misnamed); err == nil {
		t.Fatal("expected misnamed migration to fail")
	}
}

func TestOrderStatusSeedMatchesStatusCodes(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")
	checks := []string{
		"(0, 'Pending')",
		"(2, 'Processing')",
		"(3, 'Shipped')",
		"(4, 'Delivered')",
		"(7, 'Cancelled')",
		"(11, 'Refunded')",
		"REFERENCES oc_order_status(order_status_id)",
		"DROP TABLE IF EXISTS oc_order_status",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentMigrationGuardsIdempotency(t *testing.T) {
	content := readMigration(t, "*_create_payments.sql")
	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_webhook_processed ON oc_payment_webhook_log (event_id) WHERE processed = TRUE",
		"ux_oc_payment_order_gateway_order_id",
		"ux_oc_payment_refund_gateway_refund_id",
		"refunded_amount <= amount",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Vendor Payouts!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_vendor_payouts.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration invalid: %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
