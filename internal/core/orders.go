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

// CreateOrderInput is a camp's weekly order as submitted.
type CreateOrderInput struct {
	CampID int
	Notes  *string
	Lines  []CreateOrderLineInput
}

type CreateOrderLineInput struct {
	ItemID       int
	RequestedQty decimal.Decimal
}

// LineReview is the stores reviewer's decision on one line.
type LineReview struct {
	LineID      int
	Action      LineAction
	ApprovedQty decimal.NullDecimal
	Note        *string
}

type ReviewOrderInput struct {
	Lines []LineReview
	Notes *string
}

type OrderFilter struct {
	CampID int
	Status OrderStatus
	Limit  int
}

// OrderWorkflow owns the order lifecycle from submission through stores
// review. Each mutating method runs as one transaction; dispatching is owned
// by the dispatch service.
type OrderWorkflow interface {
	CreateOrder(ctx context.Context, actor Principal, in CreateOrderInput) (*Order, error)
	GetOrder(ctx context.Context, id int) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	ReviewOrder(ctx context.Context, actor Principal, orderID int, in ReviewOrderInput) (*Order, error)
	RejectOrder(ctx context.Context, actor Principal, orderID int, reason string) (*Order, error)
	AddOrderQuery(ctx context.Context, actor Principal, orderID int, lineID *int, message string) (*OrderQuery, error)
	ListOrderQueries(ctx context.Context, orderID int) ([]OrderQuery, error)
}

type orderWorkflow struct {
	pool      *pgxpool.Pool
	sequencer DocumentSequencer
	ledger    StockLedger
}

func NewOrderWorkflow(pool *pgxpool.Pool, sequencer DocumentSequencer, ledger StockLedger) OrderWorkflow {
	return &orderWorkflow{pool: pool, sequencer: sequencer, ledger: ledger}
}

// reviewableStatuses are the order states a stores reviewer may act on.
func reviewable(s OrderStatus) bool {
	switch s {
	case OrderSubmitted, OrderPendingReview, OrderQueried:
		return true
	}
	return false
}

// CreateOrder validates the lines, snapshots camp and head-office stock,
// grades every line, and persists the order in a single transaction. Orders
// always land as submitted; flagged lines surface through flagged_items and
// the per-line verdicts for the reviewer to act on.
func (w *orderWorkflow) CreateOrder(ctx context.Context, actor Principal, in CreateOrderInput) (*Order, error) {
	if len(in.Lines) == 0 {
		return nil, NewValidationError("order must have at least one line")
	}
	seen := make(map[int]bool, len(in.Lines))
	for _, l := range in.Lines {
		if !l.RequestedQty.IsPositive() {
			return nil, NewValidationError("requested quantity for item %d must be positive", l.ItemID)
		}
		if seen[l.ItemID] {
			return nil, NewValidationError("item %d appears more than once", l.ItemID)
		}
		seen[l.ItemID] = true
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, NewPersistenceError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	camp, err := getCampTx(ctx, tx, in.CampID)
	if err != nil {
		return nil, err
	}
	if camp.Type != CampTypeCamp {
		return nil, NewValidationError("orders can only be raised for camps, %s is the head office", camp.Code)
	}
	hoCampID, err := getCampIDByCodeTx(ctx, tx, HOCampCode)
	if err != nil {
		return nil, err
	}

	orderNumber, err := w.sequencer.Next(ctx, tx, PrefixOrder, camp.Code)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	totalValue := decimal.Zero
	flagged := 0
	lines := make([]OrderLine, 0, len(in.Lines))

	for _, l := range in.Lines {
		item, err := getItemTx(ctx, tx, l.ItemID)
		if err != nil {
			return nil, err
		}
		if !item.IsActive {
			return nil, NewValidationError("item %s is inactive", item.ItemCode)
		}

		campQty, par, avg, err := balanceSnapshotTx(ctx, tx, l.ItemID, in.CampID)
		if err != nil {
			return nil, err
		}
		hoQty, err := w.ledger.StockOnHandTx(ctx, tx, l.ItemID, hoCampID)
		if err != nil {
			return nil, err
		}

		unitCost := EffectiveUnitCost(item)
		verdict := ClassifyOrderLine(l.RequestedQty, campQty, hoQty, par, avg)
		if verdict.Status == ValidationFlagged {
			flagged++
		}

		line := OrderLine{
			ItemID:             l.ItemID,
			ItemCode:           item.ItemCode,
			ItemName:           item.Name,
			RequestedQty:       l.RequestedQty,
			CampStockAtOrder:   campQty,
			HOStockAtOrder:     hoQty,
			ParLevel:           par,
			AvgDailyUsage:      avg,
			EstimatedUnitCost:  unitCost,
			EstimatedLineValue: LineValue(l.RequestedQty, unitCost),
			ValidationStatus:   verdict.Status,
			StoresAction:       LinePending,
		}
		if verdict.Note != "" {
			line.ValidationNote = &verdict.Note
		}
		totalValue = totalValue.Add(line.EstimatedLineValue)
		lines = append(lines, line)
	}

	var orderID int
	err = tx.QueryRow(ctx, `
		INSERT INTO orders
			(order_number, camp_id, status, total_items, total_value, flagged_items,
			 notes, created_by, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		orderNumber, in.CampID, OrderSubmitted, len(lines), totalValue, flagged,
		in.Notes, actor.UserID, now,
	).Scan(&orderID)
	if err != nil {
		return nil, NewPersistenceError("insert order", err)
	}

	for _, line := range lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_lines
				(order_id, item_id, requested_qty, camp_stock_at_order, ho_stock_at_order,
				 par_level, avg_daily_usage, estimated_unit_cost, estimated_line_value,
				 validation_status, validation_note, stores_action)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			orderID, line.ItemID, line.RequestedQty, line.CampStockAtOrder, line.HOStockAtOrder,
			line.ParLevel, line.AvgDailyUsage, line.EstimatedUnitCost, line.EstimatedLineValue,
			line.ValidationStatus, line.ValidationNote, line.StoresAction)
		if err != nil {
			return nil, NewPersistenceError("insert order line", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, NewPersistenceError("commit order", err)
	}
	return w.GetOrder(ctx, orderID)
}

// ReviewOrder applies the reviewer's per-line decisions and folds them into
// the order status. Every line must be decided in one review.
func (w *orderWorkflow) ReviewOrder(ctx context.Context, actor Principal, orderID int, in ReviewOrderInput) (*Order, error) {
	if len(in.Lines) == 0 {
		return nil, NewValidationError("review must decide at least one line")
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, NewPersistenceError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockOrderStatusTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !reviewable(status) {
		return nil, NewStateConflictError("order %d is %s and cannot be reviewed", orderID, status)
	}

	lineQty := make(map[int]decimal.Decimal)
	rows, err := tx.Query(ctx, `SELECT id, requested_qty FROM order_lines WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, NewPersistenceError("load order lines", err)
	}
	for rows.Next() {
		var id int
		var qty decimal.Decimal
		if err := rows.Scan(&id, &qty); err != nil {
			rows.Close()
			return nil, NewPersistenceError("scan order line", err)
		}
		lineQty[id] = qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("load order lines", err)
	}
	if len(in.Lines) != len(lineQty) {
		return nil, NewValidationError("review covers %d lines, order has %d", len(in.Lines), len(lineQty))
	}

	actions := make([]LineAction, 0, len(in.Lines))
	for _, lr := range in.Lines {
		requested, ok := lineQty[lr.LineID]
		if !ok {
			return nil, NewValidationError("line %d does not belong to order %d", lr.LineID, orderID)
		}

		var approved decimal.NullDecimal
		switch lr.Action {
		case LineApproved:
			approved = decimal.NullDecimal{Decimal: requested, Valid: true}
		case LineAdjusted:
			if !lr.ApprovedQty.Valid || !lr.ApprovedQty.Decimal.IsPositive() {
				return nil, NewValidationError("adjusted line %d needs a positive approved quantity", lr.LineID)
			}
			approved = lr.ApprovedQty
		case LineRejected:
			approved = decimal.NullDecimal{Decimal: decimal.Zero, Valid: true}
		default:
			return nil, NewValidationError("unknown line action %q", lr.Action)
		}

		_, err = tx.Exec(ctx, `
			UPDATE order_lines SET stores_action = $1, approved_qty = $2, stores_note = $3
			WHERE id = $4`,
			lr.Action, approved, lr.Note, lr.LineID)
		if err != nil {
			return nil, NewPersistenceError("update order line", err)
		}
		actions = append(actions, lr.Action)
	}

	newStatus := AggregateOrderStatus(actions)
	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, stores_manager_id = $2, stores_reviewed_at = now(),
		    stores_notes = $3, updated_at = now()
		WHERE id = $4`,
		newStatus, actor.UserID, in.Notes, orderID)
	if err != nil {
		return nil, NewPersistenceError("update order", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, NewPersistenceError("commit review", err)
	}
	return w.GetOrder(ctx, orderID)
}

// RejectOrder rejects every line in one stroke.
func (w *orderWorkflow) RejectOrder(ctx context.Context, actor Principal, orderID int, reason string) (*Order, error) {
	if reason == "" {
		return nil, NewValidationError("rejection needs a reason")
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, NewPersistenceError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockOrderStatusTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !reviewable(status) {
		return nil, NewStateConflictError("order %d is %s and cannot be rejected", orderID, status)
	}

	_, err = tx.Exec(ctx, `
		UPDATE order_lines SET stores_action = $1, approved_qty = 0 WHERE order_id = $2`,
		LineRejected, orderID)
	if err != nil {
		return nil, NewPersistenceError("reject order lines", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, stores_manager_id = $2, stores_reviewed_at = now(),
		    stores_notes = $3, updated_at = now()
		WHERE id = $4`,
		OrderStoresRejected, actor.UserID, reason, orderID)
	if err != nil {
		return nil, NewPersistenceError("update order", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, NewPersistenceError("commit rejection", err)
	}
	return w.GetOrder(ctx, orderID)
}

// AddOrderQuery posts a message to the order's thread. The message lands
// whatever state the order is in; the order only goes on hold when a
// reviewer who did not raise it queries while it awaits review.
func (w *orderWorkflow) AddOrderQuery(ctx context.Context, actor Principal, orderID int, lineID *int, message string) (*OrderQuery, error) {
	if message == "" {
		return nil, NewValidationError("query message must not be empty")
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, NewPersistenceError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var status OrderStatus
	var createdBy int
	err = tx.QueryRow(ctx, `SELECT status, created_by FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status, &createdBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("order", orderID)
	}
	if err != nil {
		return nil, NewPersistenceError("lock order", err)
	}

	q := &OrderQuery{OrderID: orderID, OrderLineID: lineID, SenderID: actor.UserID, Message: message}
	err = tx.QueryRow(ctx, `
		INSERT INTO order_queries (order_id, order_line_id, sender_id, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		orderID, lineID, actor.UserID, message,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return nil, NewPersistenceError("insert order query", err)
	}

	holdable := status == OrderSubmitted || status == OrderPendingReview
	if holdable && actor.UserID != createdBy && NewPolicy(actor).CanReviewOrder() {
		if _, err := tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`, OrderQueried, orderID); err != nil {
			return nil, NewPersistenceError("update order", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, NewPersistenceError("commit query", err)
	}
	return q, nil
}

func (w *orderWorkflow) ListOrderQueries(ctx context.Context, orderID int) ([]OrderQuery, error) {
	rows, err := w.pool.Query(ctx, `
		SELECT id, order_id, order_line_id, sender_id, message, is_read, created_at
		FROM order_queries WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, NewPersistenceError("list order queries", err)
	}
	defer rows.Close()

	var out []OrderQuery
	for rows.Next() {
		var q OrderQuery
		if err := rows.Scan(&q.ID, &q.OrderID, &q.OrderLineID, &q.SenderID, &q.Message, &q.IsRead, &q.CreatedAt); err != nil {
			return nil, NewPersistenceError("scan order query", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("list order queries", err)
	}
	return out, nil
}

const orderSelect = `
	SELECT o.id, o.order_number, o.camp_id, c.code, c.name, o.status,
	       o.total_items, o.total_value, o.flagged_items, o.notes, o.created_by,
	       o.stores_manager_id, o.stores_reviewed_at, o.stores_notes,
	       o.submitted_at, o.created_at, o.updated_at
	FROM orders o
	JOIN camps c ON c.id = o.camp_id`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CampID, &o.CampCode, &o.CampName, &o.Status,
		&o.TotalItems, &o.TotalValue, &o.FlaggedItems, &o.Notes, &o.CreatedBy,
		&o.StoresManagerID, &o.StoresReviewedAt, &o.StoresNotes,
		&o.SubmittedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (w *orderWorkflow) GetOrder(ctx context.Context, id int) (*Order, error) {
	o, err := scanOrder(w.pool.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("order", id)
	}
	if err != nil {
		return nil, NewPersistenceError("read order", err)
	}

	rows, err := w.pool.Query(ctx, `
		SELECT ol.id, ol.order_id, ol.item_id, i.item_code, i.name,
		       ol.requested_qty, ol.camp_stock_at_order, ol.ho_stock_at_order,
		       ol.par_level, ol.avg_daily_usage, ol.estimated_unit_cost, ol.estimated_line_value,
		       ol.validation_status, ol.validation_note, ol.stores_action, ol.approved_qty, ol.stores_note
		FROM order_lines ol
		JOIN items i ON i.id = ol.item_id
		WHERE ol.order_id = $1
		ORDER BY ol.id`, id)
	if err != nil {
		return nil, NewPersistenceError("load order lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.ItemCode, &l.ItemName,
			&l.RequestedQty, &l.CampStockAtOrder, &l.HOStockAtOrder,
			&l.ParLevel, &l.AvgDailyUsage, &l.EstimatedUnitCost, &l.EstimatedLineValue,
			&l.ValidationStatus, &l.ValidationNote, &l.StoresAction, &l.ApprovedQty, &l.StoresNote); err != nil {
			return nil, NewPersistenceError("scan order line", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("load order lines", err)
	}
	return o, nil
}

func (w *orderWorkflow) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := orderSelect + ` WHERE 1=1`
	args := []any{}
	if f.CampID != 0 {
		args = append(args, f.CampID)
		query += ` AND o.camp_id = $1`
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += ` AND o.status = $` + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY o.id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := w.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, NewPersistenceError("list orders", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, NewPersistenceError("scan order", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("list orders", err)
	}
	return out, nil
}

// lockOrderStatusTx locks the order row and returns its status.
func lockOrderStatusTx(ctx context.Context, tx pgx.Tx, orderID int) (OrderStatus, error) {
	var status OrderStatus
	err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", NewNotFoundError("order", orderID)
	}
	if err != nil {
		return "", NewPersistenceError("lock order", err)
	}
	return status, nil
}

// balanceSnapshotTx reads the quantity and planning levels for one pair.
// A missing balance row reads as zero stock with no levels set.
func balanceSnapshotTx(ctx context.Context, tx pgx.Tx, itemID, campID int) (decimal.Decimal, decimal.NullDecimal, decimal.NullDecimal, error) {
	var qty decimal.Decimal
	var par, avg decimal.NullDecimal
	err := tx.QueryRow(ctx, `
		SELECT current_qty, par_level, avg_daily_usage
		FROM stock_balances WHERE item_id = $1 AND camp_id = $2`,
		itemID, campID,
	).Scan(&qty, &par, &avg)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, decimal.NullDecimal{}, decimal.NullDecimal{}, nil
	}
	if err != nil {
		return decimal.Zero, decimal.NullDecimal{}, decimal.NullDecimal{}, NewPersistenceError("read stock snapshot", err)
	}
	return qty, par, avg, nil
}
