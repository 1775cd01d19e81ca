package core

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type CreateDispatchInput struct {
	OrderID        int
	VehicleDetails *string
	DriverName     *string
	Notes          *string
	Lines          []DispatchLineInput
}

type DispatchLineInput struct {
	ItemID int
	Qty    decimal.Decimal
}

type DispatchFilter struct {
	CampID int
	Status DispatchStatus
	Limit  int
}

// DispatchService fulfils approved orders out of head-office stock. Creating
// a dispatch deducts HO stock, writes the dispatch document, and opens the
// pending receipt the destination camp will confirm against, all in one
// transaction.
type DispatchService interface {
	CreateDispatch(ctx context.Context, actor Principal, in CreateDispatchInput) (*Dispatch, error)
	GetDispatch(ctx context.Context, id int) (*Dispatch, error)
	ListDispatches(ctx context.Context, f DispatchFilter) ([]Dispatch, error)
	MarkInTransit(ctx context.Context, actor Principal, dispatchID int) (*Dispatch, error)
}

type dispatchService struct {
	pool      *pgxpool.Pool
	sequencer DocumentSequencer
	ledger    StockLedger
}

func NewDispatchService(pool *pgxpool.Pool, sequencer DocumentSequencer, ledger StockLedger) DispatchService {
	return &dispatchService{pool: pool, sequencer: sequencer, ledger: ledger}
}

// approvedQtyTx loads the approved quantity per item for an order's
// dispatchable lines.
func approvedQtyTx(ctx context.Context, tx pgx.Tx, orderID int) (map[int]decimal.Decimal, error) {
	rows, err := tx.Query(ctx, `
		SELECT item_id, approved_qty FROM order_lines
		WHERE order_id = $1 AND stores_action IN ($2, $3) AND approved_qty IS NOT NULL`,
		orderID, LineApproved, LineAdjusted)
	if err != nil {
		return nil, NewPersistenceError("load approved lines", err)
	}
	defer rows.Close()

	out := make(map[int]decimal.Decimal)
	for rows.Next() {
		var itemID int
		var qty decimal.Decimal
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, NewPersistenceError("scan approved line", err)
		}
		out[itemID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("load approved lines", err)
	}
	return out, nil
}

func (s *dispatchService) CreateDispatch(ctx context.Context, actor Principal, in CreateDispatchInput) (*Dispatch, error) {
	if len(in.Lines) == 0 {
		return nil, NewValidationError("dispatch must have at least one line")
	}
	for _, l := range in.Lines {
		if !l.Qty.IsPositive() {
			return nil, NewValidationError("dispatch quantity for item %d must be positive", l.ItemID)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, NewPersistenceError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockOrderStatusTx(ctx, tx, in.OrderID)
	if err != nil {
		return nil, err
	}
	switch status {
	case OrderStoresApproved, OrderStoresPartial, OrderProcurementProcessed:
	default:
		return nil, NewStateConflictError("order %d is %s and not ready for dispatch", in.OrderID, status)
	}

	var campID int
	var campCode, orderNumber string
	err = tx.QueryRow(ctx, `
		SELECT o.camp_id, c.code, o.order_number
		FROM orders o JOIN camps c ON c.id = o.camp_id
		WHERE o.id = $1`, in.OrderID,
	).Scan(&campID, &campCode, &orderNumber)
	if err != nil {
		return nil, NewPersistenceError("read order", err)
	}

	approved, err := approvedQtyTx(ctx, tx, in.OrderID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(in.Lines))
	for _, l := range in.Lines {
		if seen[l.ItemID] {
			return nil, NewValidationError("item %d appears more than once", l.ItemID)
		}
		seen[l.ItemID] = true
		max, ok := approved[l.ItemID]
		if !ok {
			return nil, NewValidationError("item %d has no approved line on order %s", l.ItemID, orderNumber)
		}
		if l.Qty.GreaterThan(max) {
			return nil, NewValidationError("item %d dispatch quantity %s exceeds approved %s", l.ItemID, l.Qty, max)
		}
	}

	hoCampID, err := getCampIDByCodeTx(ctx, tx, HOCampCode)
	if err != nil {
		return nil, err
	}

	dispatchNumber, err := s.sequencer.Next(ctx, tx, PrefixDispatch, campCode)
	if err != nil {
		return nil, err
	}

	today := time.Now()
	var dispatchID int
	err = tx.QueryRow(ctx, `
		INSERT INTO dispatches
			(dispatch_number, order_id, camp_id, status, total_value, dispatched_by,
			 dispatch_date, vehicle_details, driver_name, notes)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8, $9)
		RETURNING id`,
		dispatchNumber, in.OrderID, campID, DispatchDispatched, actor.UserID,
		today, in.VehicleDetails, in.DriverName, in.Notes,
	).Scan(&dispatchID)
	if err != nil {
		return nil, NewPersistenceError("insert dispatch", err)
	}

	type postedLine struct {
		itemID   int
		qty      decimal.Decimal
		unitCost decimal.Decimal
		value    decimal.Decimal
	}
	totalValue := decimal.Zero
	posted := make([]postedLine, 0, len(in.Lines))

	for _, l := range in.Lines {
		item, err := getItemTx(ctx, tx, l.ItemID)
		if err != nil {
			return nil, err
		}
		unitCost := EffectiveUnitCost(item)
		value := LineValue(l.Qty, unitCost)
		totalValue = totalValue.Add(value)

		_, err = tx.Exec(ctx, `
			INSERT INTO dispatch_lines (dispatch_id, item_id, dispatched_qty, unit_cost, total_value)
			VALUES ($1, $2, $3, $4, $5)`,
			dispatchID, l.ItemID, l.Qty, unitCost, value)
		if err != nil {
			return nil, NewPersistenceError("insert dispatch line", err)
		}

		_, err = s.ledger.PostMovementTx(ctx, tx, MovementInput{
			ItemID:          l.ItemID,
			CampID:          hoCampID,
			MovementType:    MovementTransferOut,
			Direction:       DirectionOut,
			Quantity:        l.Qty,
			UnitCost:        unitCost,
			ReferenceType:   RefDispatch,
			ReferenceID:     dispatchID,
			ReferenceNumber: dispatchNumber,
			ActorID:         actor.UserID,
			MovementDate:    today,
		})
		if err != nil {
			return nil, err
		}
		posted = append(posted, postedLine{l.ItemID, l.Qty, unitCost, value})
	}

	_, err = tx.Exec(ctx, `UPDATE dispatches SET total_value = $1 WHERE id = $2`, totalValue, dispatchID)
	if err != nil {
		return nil, NewPersistenceError("update dispatch total", err)
	}

	// Open the pending receipt the camp will confirm on arrival. Expected
	// quantities mirror the dispatched lines.
	receiptNumber, err := s.sequencer.Next(ctx, tx, PrefixReceipt, campCode)
	if err != nil {
		return nil, err
	}
	var receiptID int
	err = tx.QueryRow(ctx, `
		INSERT INTO receipts (receipt_number, dispatch_id, camp_id, status, total_value)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id`,
		receiptNumber, dispatchID, campID, ReceiptPending,
	).Scan(&receiptID)
	if err != nil {
		return nil, NewPersistenceError("insert receipt", err)
	}
	for _, p := range posted {
		_, err = tx.Exec(ctx, `
			INSERT INTO receipt_lines (receipt_id, item_id, expected_qty, unit_cost, total_value, condition_status)
			VALUES ($1, $2, $3, $4, 0, $5)`,
			receiptID, p.itemID, p.qty, p.unitCost, ConditionGood)
		if err != nil {
			return nil, NewPersistenceError("insert receipt line", err)
		}
	}

	_, err = tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`,
		OrderDispatching, in.OrderID)
	if err != nil {
		return nil, NewPersistenceError("update order", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, NewPersistenceError("commit dispatch", err)
	}
	return s.GetDispatch(ctx, dispatchID)
}

// MarkInTransit records that the vehicle has left the depot. The order
// follows the dispatch out of the door.
func (s *dispatchService) MarkInTransit(ctx context.Context, actor Principal, dispatchID int) (*Dispatch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, NewPersistenceError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var status DispatchStatus
	var orderID int
	err = tx.QueryRow(ctx, `SELECT status, order_id FROM dispatches WHERE id = $1 FOR UPDATE`, dispatchID,
	).Scan(&status, &orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("dispatch", dispatchID)
	}
	if err != nil {
		return nil, NewPersistenceError("lock dispatch", err)
	}
	if status != DispatchDispatched {
		return nil, NewStateConflictError("dispatch %d is %s, not %s", dispatchID, status, DispatchDispatched)
	}

	if _, err := tx.Exec(ctx, `UPDATE dispatches SET status = $1 WHERE id = $2`, DispatchInTransit, dispatchID); err != nil {
		return nil, NewPersistenceError("update dispatch", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, OrderInTransit, orderID); err != nil {
		return nil, NewPersistenceError("update order", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, NewPersistenceError("commit transition", err)
	}
	return s.GetDispatch(ctx, dispatchID)
}

const dispatchSelect = `
	SELECT d.id, d.dispatch_number, d.order_id, o.order_number, d.camp_id, c.code, c.name,
	       d.status, d.total_value, d.dispatched_by, d.dispatch_date,
	       d.vehicle_details, d.driver_name, d.notes, d.created_at
	FROM dispatches d
	JOIN orders o ON o.id = d.order_id
	JOIN camps c ON c.id = d.camp_id`

func scanDispatch(row pgx.Row) (*Dispatch, error) {
	var d Dispatch
	err := row.Scan(&d.ID, &d.DispatchNumber, &d.OrderID, &d.OrderNumber, &d.CampID, &d.CampCode, &d.CampName,
		&d.Status, &d.TotalValue, &d.DispatchedBy, &d.DispatchDate,
		&d.VehicleDetails, &d.DriverName, &d.Notes, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *dispatchService) GetDispatch(ctx context.Context, id int) (*Dispatch, error) {
	d, err := scanDispatch(s.pool.QueryRow(ctx, dispatchSelect+` WHERE d.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("dispatch", id)
	}
	if err != nil {
		return nil, NewPersistenceError("read dispatch", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT dl.id, dl.dispatch_id, dl.item_id, i.item_code, i.name,
		       dl.dispatched_qty, dl.unit_cost, dl.total_value
		FROM dispatch_lines dl
		JOIN items i ON i.id = dl.item_id
		WHERE dl.dispatch_id = $1
		ORDER BY dl.id`, id)
	if err != nil {
		return nil, NewPersistenceError("load dispatch lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l DispatchLine
		if err := rows.Scan(&l.ID, &l.DispatchID, &l.ItemID, &l.ItemCode, &l.ItemName,
			&l.DispatchedQty, &l.UnitCost, &l.TotalValue); err != nil {
			return nil, NewPersistenceError("scan dispatch line", err)
		}
		d.Lines = append(d.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("load dispatch lines", err)
	}
	return d, nil
}

func (s *dispatchService) ListDispatches(ctx context.Context, f DispatchFilter) ([]Dispatch, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := dispatchSelect + ` WHERE 1=1`
	args := []any{}
	if f.CampID != 0 {
		args = append(args, f.CampID)
		query += ` AND d.camp_id = $1`
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += ` AND d.status = $` + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY d.id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, NewPersistenceError("list dispatches", err)
	}
	defer rows.Close()

	var out []Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, NewPersistenceError("scan dispatch", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("list dispatches", err)
	}
	return out, nil
}
