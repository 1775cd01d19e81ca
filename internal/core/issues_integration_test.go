package core_test

import (
	"context"
	"strings"
	"testing"

	"kcl-stores/internal/core"
)

func TestIssueService_CreateDeductsStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sequencer := core.NewDocumentSequencer()
	ledger := core.NewStockLedger(pool)
	issues := core.NewIssueService(pool, sequencer, ledger)
	ctx := context.Background()

	seedBalance(t, pool, riceItemID, ngoCampID, "50", nil, nil)

	v, err := issues.CreateIssue(ctx, storekeeper, core.CreateIssueInput{
		CampID:       ngoCampID,
		IssueType:    core.IssueKitchen,
		CostCenterID: kitchenCCID,
		GuestCount:   intptr(24),
		Lines: []core.IssueLineInput{
			{ItemID: riceItemID, Qty: dec(t, "4")},
		},
	})
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}

	if !strings.HasPrefix(v.VoucherNumber, "ISS-NGO-") {
		t.Errorf("voucher number = %s, want ISS-NGO-...", v.VoucherNumber)
	}
	if v.Status != "confirmed" {
		t.Errorf("voucher status = %s, want confirmed", v.Status)
	}
	if !v.TotalValue.Equal(dec(t, "170.00")) {
		t.Errorf("voucher value = %s, want 170.00", v.TotalValue)
	}
	if v.CostCenterName != "Kitchen" {
		t.Errorf("cost center = %s, want Kitchen", v.CostCenterName)
	}

	b, err := ledger.GetBalance(ctx, riceItemID, ngoCampID)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !b.CurrentQty.Equal(dec(t, "46")) {
		t.Errorf("camp rice after issue = %s, want 46", b.CurrentQty)
	}

	ms, err := ledger.ListMovements(ctx, riceItemID, ngoCampID, 10)
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	if len(ms) != 1 || ms[0].MovementType != core.MovementIssue || ms[0].ReferenceNumber != v.VoucherNumber {
		t.Errorf("movement = %+v, want one issue referencing %s", ms, v.VoucherNumber)
	}
}

func TestIssueService_FailureRollsBackEverything(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sequencer := core.NewDocumentSequencer()
	ledger := core.NewStockLedger(pool)
	issues := core.NewIssueService(pool, sequencer, ledger)
	ctx := context.Background()

	seedBalance(t, pool, riceItemID, ngoCampID, "50", nil, nil)

	// Second line names an item that does not exist; the whole voucher,
	// including the first line's deduction, must roll back.
	_, err := issues.CreateIssue(ctx, storekeeper, core.CreateIssueInput{
		CampID:       ngoCampID,
		IssueType:    core.IssueKitchen,
		CostCenterID: kitchenCCID,
		Lines: []core.IssueLineInput{
			{ItemID: riceItemID, Qty: dec(t, "4")},
			{ItemID: 99999, Qty: dec(t, "1")},
		},
	})
	if !core.IsNotFoundError(err) {
		t.Fatalf("expected not found for the phantom item, got %v", err)
	}

	b, err := ledger.GetBalance(ctx, riceItemID, ngoCampID)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !b.CurrentQty.Equal(dec(t, "50")) {
		t.Errorf("stock after rollback = %s, want the original 50", b.CurrentQty)
	}

	var vouchers int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM issue_vouchers`).Scan(&vouchers); err != nil {
		t.Fatalf("count vouchers: %v", err)
	}
	if vouchers != 0 {
		t.Errorf("vouchers = %d, want 0 after rollback", vouchers)
	}

	// The rolled-back voucher number is reissued to the next voucher.
	v, err := issues.CreateIssue(ctx, storekeeper, core.CreateIssueInput{
		CampID:       ngoCampID,
		IssueType:    core.IssueKitchen,
		CostCenterID: kitchenCCID,
		Lines:        []core.IssueLineInput{{ItemID: riceItemID, Qty: dec(t, "1")}},
	})
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	if !strings.HasSuffix(v.VoucherNumber, "-0001") {
		t.Errorf("voucher number = %s, want the reissued -0001", v.VoucherNumber)
	}
}

func TestIssueService_ValidatesType(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	issues := core.NewIssueService(pool, core.NewDocumentSequencer(), core.NewStockLedger(pool))
	ctx := context.Background()

	_, err := issues.CreateIssue(ctx, storekeeper, core.CreateIssueInput{
		CampID:       ngoCampID,
		IssueType:    "party",
		CostCenterID: kitchenCCID,
		Lines:        []core.IssueLineInput{{ItemID: riceItemID, Qty: dec(t, "1")}},
	})
	if !core.IsValidationError(err) {
		t.Errorf("unknown issue type should be a validation error, got %v", err)
	}
}

func intptr(n int) *int { return &n }
