package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/garagebid/garagebid-backend/pkg/migrate"
)

func TestMigrationsValidate(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CREATE UNIQUE INDEX idx_orders_bid_id ON orders (bid_id)",
		"CREATE UNIQUE INDEX idx_orders_order_number ON orders (order_number)",
		"garage_payout_amount NUMERIC(12,2) NOT NULL",
		"DROP TABLE orders",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSettlementMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_settlement.sql")

	checks := []string{
		"CREATE UNIQUE INDEX idx_garage_payouts_order_id ON garage_payouts (order_id)",
		"CREATE UNIQUE INDEX idx_disputes_order_id ON disputes (order_id)",
		"CREATE UNIQUE INDEX idx_driver_wallets_driver_id ON driver_wallets (driver_id)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
