package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// MovementInput describes one stock mutation for the ledger to post.
type MovementInput struct {
	ItemID          int
	CampID          int
	MovementType    MovementType
	Direction       MovementDirection
	Quantity        decimal.Decimal
	UnitCost        decimal.Decimal
	ReferenceType   ReferenceType
	ReferenceID     int
	ReferenceNumber string
	ActorID         int
	MovementDate    time.Time
}

// StockLedger is the only code path that writes stock_balances and
// stock_movements. Every post locks the balance row, applies the mutation
// with quantity and value floored at zero, and appends one movement row carrying
// the true post-mutation balance, all inside the caller's transaction.
type StockLedger interface {
	PostMovementTx(ctx context.Context, tx pgx.Tx, in MovementInput) (*StockMovement, error)
	StockOnHandTx(ctx context.Context, tx pgx.Tx, itemID, campID int) (decimal.Decimal, error)
	GetBalance(ctx context.Context, itemID, campID int) (*StockBalance, error)
	ListMovements(ctx context.Context, itemID, campID, limit int) ([]StockMovement, error)
}

type stockLedger struct {
	pool *pgxpool.Pool
}

func NewStockLedger(pool *pgxpool.Pool) StockLedger {
	return &stockLedger{pool: pool}
}

func (l *stockLedger) PostMovementTx(ctx context.Context, tx pgx.Tx, in MovementInput) (*StockMovement, error) {
	if !in.Quantity.IsPositive() {
		return nil, NewValidationError("movement quantity must be positive, got %s", in.Quantity)
	}
	if in.UnitCost.IsNegative() {
		return nil, NewValidationError("movement unit cost must not be negative, got %s", in.UnitCost)
	}

	// Ensure the balance row exists, then lock it. The no-op update on
	// conflict makes the upsert return the row id in both branches.
	var balanceID int
	err := tx.QueryRow(ctx, `
		INSERT INTO stock_balances (item_id, camp_id, current_qty, current_value, unit_cost)
		VALUES ($1, $2, 0, 0, $3)
		ON CONFLICT (item_id, camp_id) DO UPDATE SET item_id = stock_balances.item_id
		RETURNING id`,
		in.ItemID, in.CampID, in.UnitCost,
	).Scan(&balanceID)
	if err != nil {
		return nil, NewPersistenceError("upsert stock balance", err)
	}

	var currentQty, currentValue decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT current_qty, current_value FROM stock_balances WHERE id = $1 FOR UPDATE`,
		balanceID,
	).Scan(&currentQty, &currentValue)
	if err != nil {
		return nil, NewPersistenceError("lock stock balance", err)
	}

	// Value tracks the signed movement delta, not a revaluation at the
	// movement cost. The stored unit cost belongs to the item master and
	// is never touched here.
	delta := in.Quantity.Mul(in.UnitCost)
	var newQty, newValue decimal.Decimal
	switch in.Direction {
	case DirectionIn:
		newQty = currentQty.Add(in.Quantity)
		newValue = currentValue.Add(delta)
	case DirectionOut:
		newQty = currentQty.Sub(in.Quantity)
		if newQty.IsNegative() {
			newQty = decimal.Zero
		}
		newValue = currentValue.Sub(delta)
		if newValue.IsNegative() {
			newValue = decimal.Zero
		}
	default:
		return nil, NewValidationError("unknown movement direction %q", in.Direction)
	}
	newValue = newValue.Round(2)

	when := in.MovementDate
	if when.IsZero() {
		when = time.Now()
	}

	lastCol := "last_issue_date"
	if in.Direction == DirectionIn {
		lastCol = "last_receipt_date"
	}
	_, err = tx.Exec(ctx, `
		UPDATE stock_balances
		SET current_qty = $1, current_value = $2,
		    `+lastCol+` = $3, days_since_last_movement = 0, updated_at = now()
		WHERE id = $4`,
		newQty, newValue, when, balanceID)
	if err != nil {
		return nil, NewPersistenceError("update stock balance", err)
	}

	m := &StockMovement{
		ItemID:          in.ItemID,
		CampID:          in.CampID,
		MovementType:    in.MovementType,
		Direction:       in.Direction,
		Quantity:        in.Quantity,
		UnitCost:        in.UnitCost,
		TotalValue:      in.Quantity.Mul(in.UnitCost).Round(2),
		BalanceAfter:    newQty,
		ReferenceType:   in.ReferenceType,
		ReferenceID:     in.ReferenceID,
		ReferenceNumber: in.ReferenceNumber,
		CreatedBy:       in.ActorID,
		MovementDate:    when,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO stock_movements
			(item_id, camp_id, movement_type, direction, quantity, unit_cost, total_value,
			 balance_after, reference_type, reference_id, reference_number, created_by, movement_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		m.ItemID, m.CampID, m.MovementType, m.Direction, m.Quantity, m.UnitCost, m.TotalValue,
		m.BalanceAfter, m.ReferenceType, m.ReferenceID, m.ReferenceNumber, m.CreatedBy, m.MovementDate,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, NewPersistenceError("insert stock movement", err)
	}

	return m, nil
}

// StockOnHandTx reads the current quantity inside the caller's transaction.
// Pairs with no balance row read as zero.
func (l *stockLedger) StockOnHandTx(ctx context.Context, tx pgx.Tx, itemID, campID int) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT current_qty FROM stock_balances WHERE item_id = $1 AND camp_id = $2`,
		itemID, campID,
	).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, NewPersistenceError("read stock on hand", err)
	}
	return qty, nil
}

func (l *stockLedger) GetBalance(ctx context.Context, itemID, campID int) (*StockBalance, error) {
	var b StockBalance
	err := l.pool.QueryRow(ctx, `
		SELECT id, item_id, camp_id, current_qty, current_value, unit_cost,
		       par_level, min_level, max_level, safety_stock,
		       avg_daily_usage, days_stock_on_hand, stock_status,
		       last_receipt_date, last_issue_date, updated_at
		FROM stock_balances WHERE item_id = $1 AND camp_id = $2`,
		itemID, campID,
	).Scan(&b.ID, &b.ItemID, &b.CampID, &b.CurrentQty, &b.CurrentValue, &b.UnitCost,
		&b.ParLevel, &b.MinLevel, &b.MaxLevel, &b.SafetyStock,
		&b.AvgDailyUsage, &b.DaysStockOnHand, &b.StockStatus,
		&b.LastReceiptDate, &b.LastIssueDate, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("stock balance", itemID)
	}
	if err != nil {
		return nil, NewPersistenceError("read stock balance", err)
	}
	return &b, nil
}

func (l *stockLedger) ListMovements(ctx context.Context, itemID, campID, limit int) ([]StockMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, item_id, camp_id, movement_type, direction, quantity, unit_cost, total_value,
		       balance_after, reference_type, reference_id, reference_number, created_by,
		       movement_date, created_at
		FROM stock_movements
		WHERE item_id = $1 AND camp_id = $2
		ORDER BY id DESC
		LIMIT $3`,
		itemID, campID, limit)
	if err != nil {
		return nil, NewPersistenceError("list stock movements", err)
	}
	defer rows.Close()

	var out []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.CampID, &m.MovementType, &m.Direction,
			&m.Quantity, &m.UnitCost, &m.TotalValue, &m.BalanceAfter,
			&m.ReferenceType, &m.ReferenceID, &m.ReferenceNumber, &m.CreatedBy,
			&m.MovementDate, &m.CreatedAt); err != nil {
			return nil, NewPersistenceError("scan stock movement", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("list stock movements", err)
	}
	return out, nil
}
