package app_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"kcl-stores/internal/app"
	"kcl-stores/internal/core"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
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
			(1, 'FOOD-0001', 'Rice, long grain 25kg', 'bag', 42.50, 45.00);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func TestService_ForeignCampDocumentsReadAsAbsent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := app.NewService(pool)
	ctx := context.Background()

	ngoKeeper := core.Principal{UserID: 11, Role: core.RoleCampStorekeeper, CampID: 2}
	serKeeper := core.Principal{UserID: 12, Role: core.RoleCampStorekeeper, CampID: 3}

	qty, err := decimal.NewFromString("5")
	if err != nil {
		t.Fatalf("bad decimal: %v", err)
	}
	o, err := svc.CreateOrder(ctx, ngoKeeper, core.CreateOrderInput{
		CampID: 2,
		Lines:  []core.CreateOrderLineInput{{ItemID: 1, RequestedQty: qty}},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// Another camp's storekeeper must not even learn the order exists.
	if _, err := svc.GetOrder(ctx, serKeeper, o.ID); !core.IsNotFoundError(err) {
		t.Errorf("foreign order read should be not found, got %v", err)
	}
	if _, err := svc.ListOrderQueries(ctx, serKeeper, o.ID); !core.IsNotFoundError(err) {
		t.Errorf("foreign query listing should be not found, got %v", err)
	}
	if _, err := svc.AddOrderQuery(ctx, serKeeper, o.ID, nil, "whose order is this?"); !core.IsNotFoundError(err) {
		t.Errorf("foreign query post should be not found, got %v", err)
	}

	// Head-office roles see every camp.
	manager := core.Principal{UserID: 13, Role: core.RoleStoresManager}
	if _, err := svc.GetOrder(ctx, manager, o.ID); err != nil {
		t.Errorf("head-office read failed: %v", err)
	}
	if _, err := svc.GetOrder(ctx, ngoKeeper, o.ID); err != nil {
		t.Errorf("own-camp read failed: %v", err)
	}
}
