package core_test

import (
	"context"
	"testing"

	"kcl-stores/internal/core"
)

func TestStockLedger_InThenOut(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewStockLedger(pool)
	ctx := context.Background()

	post := func(dir core.MovementDirection, mt core.MovementType, qty string) *core.StockMovement {
		t.Helper()
		tx, err := pool.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		m, err := ledger.PostMovementTx(ctx, tx, core.MovementInput{
			ItemID:          riceItemID,
			CampID:          ngoCampID,
			MovementType:    mt,
			Direction:       dir,
			Quantity:        dec(t, qty),
			UnitCost:        dec(t, "42.50"),
			ReferenceType:   core.RefAdjustment,
			ReferenceID:     1,
			ReferenceNumber: "ADJ-TEST",
			ActorID:         testUserID,
		})
		if err != nil {
			tx.Rollback(ctx)
			t.Fatalf("PostMovementTx failed: %v", err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
		return m
	}

	in := post(core.DirectionIn, core.MovementReceipt, "100")
	if !in.BalanceAfter.Equal(dec(t, "100")) {
		t.Errorf("balance after receipt = %s, want 100", in.BalanceAfter)
	}

	out := post(core.DirectionOut, core.MovementIssue, "40")
	if !out.BalanceAfter.Equal(dec(t, "60")) {
		t.Errorf("balance after issue = %s, want 60", out.BalanceAfter)
	}

	b, err := ledger.GetBalance(ctx, riceItemID, ngoCampID)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !b.CurrentQty.Equal(dec(t, "60")) {
		t.Errorf("current qty = %s, want 60", b.CurrentQty)
	}
	if !b.CurrentValue.Equal(dec(t, "2550.00")) {
		t.Errorf("current value = %s, want 2550.00", b.CurrentValue)
	}
	if b.LastReceiptDate == nil || b.LastIssueDate == nil {
		t.Error("movement dates should be stamped on the balance")
	}

	// The movement trail reconciles against the balance entry by entry.
	ms, err := ledger.ListMovements(ctx, riceItemID, ngoCampID, 10)
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	if len(ms) != 2 {
		t.Fatalf("movements = %d, want 2", len(ms))
	}
	if !ms[0].BalanceAfter.Equal(dec(t, "60")) || !ms[1].BalanceAfter.Equal(dec(t, "100")) {
		t.Errorf("balance_after trail = [%s, %s], want [60, 100]", ms[0].BalanceAfter, ms[1].BalanceAfter)
	}
}

func TestStockLedger_OutboundFloorsAtZero(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewStockLedger(pool)
	ctx := context.Background()

	seedBalance(t, pool, oilItemID, ngoCampID, "20", nil, nil)

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	m, err := ledger.PostMovementTx(ctx, tx, core.MovementInput{
		ItemID:          oilItemID,
		CampID:          ngoCampID,
		MovementType:    core.MovementIssue,
		Direction:       core.DirectionOut,
		Quantity:        dec(t, "50"),
		UnitCost:        dec(t, "12.00"),
		ReferenceType:   core.RefAdjustment,
		ReferenceID:     2,
		ReferenceNumber: "ADJ-TEST-2",
		ActorID:         testUserID,
	})
	if err != nil {
		t.Fatalf("PostMovementTx failed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Over-issue records the full quantity but the balance floors at zero.
	if !m.Quantity.Equal(dec(t, "50")) {
		t.Errorf("movement quantity = %s, want the requested 50", m.Quantity)
	}
	if !m.BalanceAfter.IsZero() {
		t.Errorf("balance after over-issue = %s, want 0", m.BalanceAfter)
	}

	b, err := ledger.GetBalance(ctx, oilItemID, ngoCampID)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !b.CurrentQty.IsZero() {
		t.Errorf("current qty = %s, want 0", b.CurrentQty)
	}
}

func TestStockLedger_ValueAccumulatesPerMovement(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewStockLedger(pool)
	ctx := context.Background()

	receive := func(qty, cost string) {
		t.Helper()
		tx, err := pool.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		_, err = ledger.PostMovementTx(ctx, tx, core.MovementInput{
			ItemID:          wineItemID,
			CampID:          serCampID,
			MovementType:    core.MovementReceipt,
			Direction:       core.DirectionIn,
			Quantity:        dec(t, qty),
			UnitCost:        dec(t, cost),
			ReferenceType:   core.RefAdjustment,
			ReferenceID:     3,
			ReferenceNumber: "ADJ-TEST-3",
			ActorID:         testUserID,
		})
		if err != nil {
			tx.Rollback(ctx)
			t.Fatalf("PostMovementTx failed: %v", err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	// Two receipts at different costs: the balance value is the sum of the
	// movement values, never a revaluation at the latest cost.
	receive("100", "10.00")
	receive("100", "20.00")

	b, err := ledger.GetBalance(ctx, wineItemID, serCampID)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !b.CurrentQty.Equal(dec(t, "200")) {
		t.Errorf("current qty = %s, want 200", b.CurrentQty)
	}
	if !b.CurrentValue.Equal(dec(t, "3000.00")) {
		t.Errorf("current value = %s, want 3000.00 (1000 + 2000)", b.CurrentValue)
	}
	if !b.UnitCost.Equal(dec(t, "10.00")) {
		t.Errorf("unit cost = %s, want the opening 10.00 untouched by later movements", b.UnitCost)
	}
}

func TestStockLedger_RejectsBadInput(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewStockLedger(pool)
	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)

	_, err = ledger.PostMovementTx(ctx, tx, core.MovementInput{
		ItemID:       riceItemID,
		CampID:       ngoCampID,
		MovementType: core.MovementReceipt,
		Direction:    core.DirectionIn,
		Quantity:     dec(t, "0"),
		UnitCost:     dec(t, "1"),
	})
	if !core.IsValidationError(err) {
		t.Errorf("zero quantity should be a validation error, got %v", err)
	}

	_, err = ledger.PostMovementTx(ctx, tx, core.MovementInput{
		ItemID:       riceItemID,
		CampID:       ngoCampID,
		MovementType: core.MovementReceipt,
		Direction:    "sideways",
		Quantity:     dec(t, "5"),
		UnitCost:     dec(t, "1"),
	})
	if !core.IsValidationError(err) {
		t.Errorf("unknown direction should be a validation error, got %v", err)
	}
}
