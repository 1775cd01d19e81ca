package core_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Test fixture ids, matching the seed below.
const (
	hoCampID    = 1
	ngoCampID   = 2
	serCampID   = 3
	riceItemID  = 1
	oilItemID   = 2
	wineItemID  = 3
	kitchenCCID = 1
	testUserID  = 77
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE issue_voucher_lines, issue_vouchers, receipt_lines, receipts,
			dispatch_lines, dispatches, order_queries, order_lines, orders,
			stock_movements, stock_balances, number_sequences,
			items, cost_centers, item_groups, camps CASCADE;

		INSERT INTO camps (id, code, name, camp_type) VALUES
			(1, 'HO', 'Head Office Stores', 'head_office'),
			(2, 'NGO', 'Ngorongoro Camp', 'camp'),
			(3, 'SER', 'Serengeti Camp', 'camp');

		INSERT INTO items (id, item_code, name, stock_uom, weighted_avg_cost, last_purchase_price) VALUES
			(1, 'FOOD-0001', 'Rice, long grain 25kg', 'bag', 42.50, 45.00),
			(2, 'FOOD-0002', 'Cooking oil 5L', 'jerrican', 0, 12.00),
			(3, 'BEV-0002', 'House red wine', 'bottle', 8.75, 9.00);

		INSERT INTO cost_centers (id, code, name) VALUES (1, 'KIT', 'Kitchen');
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

// seedBalance writes a stock position directly, bypassing the ledger, for
// tests that need a starting point with planning levels.
func seedBalance(t *testing.T, pool *pgxpool.Pool, itemID, campID int, qty string, par, avgUsage *string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO stock_balances (item_id, camp_id, current_qty, current_value, unit_cost, par_level, avg_daily_usage)
		VALUES ($1, $2, $3, 0, 10, $4, $5)
		ON CONFLICT (item_id, camp_id) DO UPDATE SET
			current_qty = EXCLUDED.current_qty,
			par_level = EXCLUDED.par_level,
			avg_daily_usage = EXCLUDED.avg_daily_usage`,
		itemID, campID, qty, par, avgUsage)
	if err != nil {
		t.Fatalf("Failed to seed stock balance: %v", err)
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func strptr(s string) *string { return &s }
