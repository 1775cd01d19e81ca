package core_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"kcl-stores/internal/core"
)

var (
	storekeeper = core.Principal{UserID: testUserID, Role: core.RoleCampStorekeeper, CampID: ngoCampID}
	manager     = core.Principal{UserID: 88, Role: core.RoleStoresManager}
)

func TestOrderLifecycle_SubmitReviewDispatchReceive(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sequencer := core.NewDocumentSequencer()
	ledger := core.NewStockLedger(pool)
	orders := core.NewOrderWorkflow(pool, sequencer, ledger)
	dispatches := core.NewDispatchService(pool, sequencer, ledger)
	receipts := core.NewReceiptService(pool, ledger)
	ctx := context.Background()

	// HO holds plenty of rice but little wine; the camp has par levels set.
	seedBalance(t, pool, riceItemID, hoCampID, "500", nil, nil)
	seedBalance(t, pool, wineItemID, hoCampID, "5", nil, nil)
	seedBalance(t, pool, riceItemID, ngoCampID, "0", strptr("20"), strptr("4"))
	seedBalance(t, pool, wineItemID, ngoCampID, "0", strptr("10"), nil)

	o, err := orders.CreateOrder(ctx, storekeeper, core.CreateOrderInput{
		CampID: ngoCampID,
		Lines: []core.CreateOrderLineInput{
			{ItemID: riceItemID, RequestedQty: dec(t, "30")},
			{ItemID: wineItemID, RequestedQty: dec(t, "40")},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if !strings.HasPrefix(o.OrderNumber, "ORD-NGO-") || !strings.HasSuffix(o.OrderNumber, "-0001") {
		t.Errorf("order number = %s, want ORD-NGO-YYMM-0001", o.OrderNumber)
	}
	// A flagged line raises the counter for the reviewer but never stops
	// the order from landing as submitted.
	if o.Status != core.OrderSubmitted {
		t.Errorf("status = %s, want submitted", o.Status)
	}
	if o.FlaggedItems != 1 {
		t.Errorf("flagged items = %d, want 1", o.FlaggedItems)
	}
	if !o.TotalValue.Equal(dec(t, "1625.00")) {
		t.Errorf("total value = %s, want 1625.00", o.TotalValue)
	}
	if len(o.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(o.Lines))
	}

	rice, wine := o.Lines[0], o.Lines[1]
	if rice.ValidationStatus != core.ValidationClear {
		t.Errorf("rice line = %s (%v), want clear", rice.ValidationStatus, rice.ValidationNote)
	}
	if wine.ValidationStatus != core.ValidationFlagged {
		t.Errorf("wine line = %s, want flagged (over par and HO short)", wine.ValidationStatus)
	}
	if !wine.HOStockAtOrder.Equal(dec(t, "5")) {
		t.Errorf("wine HO snapshot = %s, want 5", wine.HOStockAtOrder)
	}

	// Stores review: rice approved in full, wine cut down.
	o, err = orders.ReviewOrder(ctx, manager, o.ID, core.ReviewOrderInput{
		Lines: []core.LineReview{
			{LineID: rice.ID, Action: core.LineApproved},
			{LineID: wine.ID, Action: core.LineAdjusted,
				ApprovedQty: decimal.NullDecimal{Decimal: dec(t, "20"), Valid: true},
				Note:        strptr("HO can only cover 20")},
		},
	})
	if err != nil {
		t.Fatalf("ReviewOrder failed: %v", err)
	}
	if o.Status != core.OrderStoresApproved {
		t.Errorf("status after review = %s, want stores_approved", o.Status)
	}
	if !o.Lines[0].ApprovedQty.Decimal.Equal(dec(t, "30")) {
		t.Errorf("approved rice = %s, want the requested 30", o.Lines[0].ApprovedQty.Decimal)
	}

	// Dispatch against the approved quantities.
	d, err := dispatches.CreateDispatch(ctx, manager, core.CreateDispatchInput{
		OrderID: o.ID,
		Lines: []core.DispatchLineInput{
			{ItemID: riceItemID, Qty: dec(t, "30")},
			{ItemID: wineItemID, Qty: dec(t, "20")},
		},
	})
	if err != nil {
		t.Fatalf("CreateDispatch failed: %v", err)
	}
	if !strings.HasPrefix(d.DispatchNumber, "DSP-NGO-") {
		t.Errorf("dispatch number = %s, want DSP-NGO-...", d.DispatchNumber)
	}
	if !d.TotalValue.Equal(dec(t, "1450.00")) {
		t.Errorf("dispatch value = %s, want 1450.00", d.TotalValue)
	}

	hoRice, err := ledger.GetBalance(ctx, riceItemID, hoCampID)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !hoRice.CurrentQty.Equal(dec(t, "470")) {
		t.Errorf("HO rice after dispatch = %s, want 470", hoRice.CurrentQty)
	}

	o, err = orders.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if o.Status != core.OrderDispatching {
		t.Errorf("order after dispatch = %s, want dispatching", o.Status)
	}

	// The dispatch opened a pending receipt with matching expectations.
	pending, err := receipts.ListReceipts(ctx, core.ReceiptFilter{CampID: ngoCampID, Status: core.ReceiptPending})
	if err != nil {
		t.Fatalf("ListReceipts failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending receipts = %d, want 1", len(pending))
	}
	rec, err := receipts.GetReceipt(ctx, pending[0].ID)
	if err != nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	if !strings.HasPrefix(rec.ReceiptNumber, "RCV-NGO-") {
		t.Errorf("receipt number = %s, want RCV-NGO-...", rec.ReceiptNumber)
	}
	if len(rec.Lines) != 2 || !rec.Lines[0].ExpectedQty.Equal(dec(t, "30")) {
		t.Fatalf("receipt lines = %+v, want expected 30 and 20", rec.Lines)
	}

	// Two bags of rice arrive broken: 30 received, 28 accepted.
	accepted28 := dec(t, "28")
	rec, err = receipts.ConfirmReceipt(ctx, storekeeper, rec.ID, core.ConfirmReceiptInput{
		Lines: []core.ConfirmReceiptLineInput{
			{LineID: rec.Lines[0].ID, ReceivedQty: dec(t, "30"),
				AcceptedQty: decimal.NullDecimal{Decimal: accepted28, Valid: true},
				Condition:   core.ConditionDamaged},
			{LineID: rec.Lines[1].ID, ReceivedQty: dec(t, "20")},
		},
	})
	if err != nil {
		t.Fatalf("ConfirmReceipt failed: %v", err)
	}
	if rec.Status != core.ReceiptConfirmed {
		t.Errorf("receipt status = %s, want confirmed", rec.Status)
	}
	if !rec.TotalValue.Equal(dec(t, "1365.00")) {
		t.Errorf("receipt value = %s, want 1365.00 (accepted only)", rec.TotalValue)
	}
	if !rec.Lines[0].RejectedQty.Decimal.Equal(dec(t, "2")) {
		t.Errorf("rejected rice = %s, want 2", rec.Lines[0].RejectedQty.Decimal)
	}

	// Camp stock reflects what was accepted, not what was shipped.
	campRice, err := ledger.GetBalance(ctx, riceItemID, ngoCampID)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !campRice.CurrentQty.Equal(accepted28) {
		t.Errorf("camp rice = %s, want 28", campRice.CurrentQty)
	}

	d, err = dispatches.GetDispatch(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDispatch failed: %v", err)
	}
	if d.Status != core.DispatchDelivered {
		t.Errorf("dispatch status = %s, want delivered", d.Status)
	}

	// Confirming twice is a state conflict.
	_, err = receipts.ConfirmReceipt(ctx, storekeeper, rec.ID, core.ConfirmReceiptInput{
		Lines: []core.ConfirmReceiptLineInput{{LineID: rec.Lines[0].ID, ReceivedQty: dec(t, "1")}},
	})
	if !core.IsStateConflictError(err) {
		t.Errorf("double confirm should be a state conflict, got %v", err)
	}
}

func TestOrderWorkflow_RejectAndQuery(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sequencer := core.NewDocumentSequencer()
	ledger := core.NewStockLedger(pool)
	orders := core.NewOrderWorkflow(pool, sequencer, ledger)
	ctx := context.Background()

	seedBalance(t, pool, riceItemID, hoCampID, "500", nil, nil)

	o, err := orders.CreateOrder(ctx, storekeeper, core.CreateOrderInput{
		CampID: ngoCampID,
		Lines:  []core.CreateOrderLineInput{{ItemID: riceItemID, RequestedQty: dec(t, "10")}},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if o.Status != core.OrderSubmitted {
		t.Fatalf("clean order should land submitted, got %s", o.Status)
	}

	// Manager queries: order goes on hold. The camp reply stays in the
	// thread without lifting the hold; the reviewer acts on the reply.
	if _, err := orders.AddOrderQuery(ctx, manager, o.ID, nil, "Why ten bags this week?"); err != nil {
		t.Fatalf("AddOrderQuery failed: %v", err)
	}
	o, _ = orders.GetOrder(ctx, o.ID)
	if o.Status != core.OrderQueried {
		t.Errorf("status after manager query = %s, want queried", o.Status)
	}

	if _, err := orders.AddOrderQuery(ctx, storekeeper, o.ID, nil, "Group booking arriving Friday."); err != nil {
		t.Fatalf("AddOrderQuery reply failed: %v", err)
	}
	o, _ = orders.GetOrder(ctx, o.ID)
	if o.Status != core.OrderQueried {
		t.Errorf("status after camp reply = %s, want still queried", o.Status)
	}

	qs, err := orders.ListOrderQueries(ctx, o.ID)
	if err != nil {
		t.Fatalf("ListOrderQueries failed: %v", err)
	}
	if len(qs) != 2 {
		t.Errorf("queries = %d, want 2", len(qs))
	}

	// Full rejection closes every line and the thread.
	o, err = orders.RejectOrder(ctx, manager, o.ID, "Stock arriving on Monday's truck")
	if err != nil {
		t.Fatalf("RejectOrder failed: %v", err)
	}
	if o.Status != core.OrderStoresRejected {
		t.Errorf("status = %s, want stores_rejected", o.Status)
	}
	if o.Lines[0].StoresAction != core.LineRejected {
		t.Errorf("line action = %s, want rejected", o.Lines[0].StoresAction)
	}
	if !o.Lines[0].ApprovedQty.Valid || !o.Lines[0].ApprovedQty.Decimal.IsZero() {
		t.Errorf("rejected line approved qty = %+v, want 0", o.Lines[0].ApprovedQty)
	}

	// The thread stays open on closed orders; the message lands but the
	// status no longer moves.
	if _, err := orders.AddOrderQuery(ctx, manager, o.ID, nil, "noted, resubmit next week"); err != nil {
		t.Errorf("query on a rejected order should still land, got %v", err)
	}
	o, _ = orders.GetOrder(ctx, o.ID)
	if o.Status != core.OrderStoresRejected {
		t.Errorf("status after post-rejection query = %s, want stores_rejected", o.Status)
	}
	if _, err := orders.RejectOrder(ctx, manager, o.ID, "again"); !core.IsStateConflictError(err) {
		t.Errorf("double reject should be a state conflict, got %v", err)
	}
}

func TestAddOrderQuery_CreatorNeverPutsOwnOrderOnHold(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sequencer := core.NewDocumentSequencer()
	ledger := core.NewStockLedger(pool)
	orders := core.NewOrderWorkflow(pool, sequencer, ledger)
	ctx := context.Background()

	seedBalance(t, pool, riceItemID, hoCampID, "500", nil, nil)

	// A stores manager raising an order on a camp's behalf is both creator
	// and reviewer; their own question must not hold the order.
	o, err := orders.CreateOrder(ctx, manager, core.CreateOrderInput{
		CampID: ngoCampID,
		Lines:  []core.CreateOrderLineInput{{ItemID: riceItemID, RequestedQty: dec(t, "8")}},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if _, err := orders.AddOrderQuery(ctx, manager, o.ID, nil, "double-check the count for me"); err != nil {
		t.Fatalf("AddOrderQuery failed: %v", err)
	}
	o, _ = orders.GetOrder(ctx, o.ID)
	if o.Status != core.OrderSubmitted {
		t.Errorf("status after creator's own query = %s, want submitted", o.Status)
	}

	director := core.Principal{UserID: 99, Role: core.RoleDirector}
	if _, err := orders.AddOrderQuery(ctx, director, o.ID, nil, "is this for the group booking?"); err != nil {
		t.Fatalf("AddOrderQuery failed: %v", err)
	}
	o, _ = orders.GetOrder(ctx, o.ID)
	if o.Status != core.OrderQueried {
		t.Errorf("status after another reviewer's query = %s, want queried", o.Status)
	}
}

func TestOrderWorkflow_ValidatesInput(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	sequencer := core.NewDocumentSequencer()
	ledger := core.NewStockLedger(pool)
	orders := core.NewOrderWorkflow(pool, sequencer, ledger)
	ctx := context.Background()

	if _, err := orders.CreateOrder(ctx, storekeeper, core.CreateOrderInput{CampID: ngoCampID}); !core.IsValidationError(err) {
		t.Errorf("empty order should be a validation error, got %v", err)
	}

	_, err := orders.CreateOrder(ctx, storekeeper, core.CreateOrderInput{
		CampID: ngoCampID,
		Lines: []core.CreateOrderLineInput{
			{ItemID: riceItemID, RequestedQty: dec(t, "5")},
			{ItemID: riceItemID, RequestedQty: dec(t, "3")},
		},
	})
	if !core.IsValidationError(err) {
		t.Errorf("duplicate item should be a validation error, got %v", err)
	}

	_, err = orders.CreateOrder(ctx, storekeeper, core.CreateOrderInput{
		CampID: hoCampID,
		Lines:  []core.CreateOrderLineInput{{ItemID: riceItemID, RequestedQty: dec(t, "5")}},
	})
	if !core.IsValidationError(err) {
		t.Errorf("ordering for the head office should be a validation error, got %v", err)
	}

	if _, err := orders.GetOrder(ctx, 99999); !core.IsNotFoundError(err) {
		t.Errorf("missing order should be not found, got %v", err)
	}
}
