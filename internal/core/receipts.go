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

type ConfirmReceiptInput struct {
	Notes *string
	Lines []ConfirmReceiptLineInput
}

// ConfirmReceiptLineInput is the camp's count for one line. AcceptedQty
// defaults to ReceivedQty when unset; rejected is the difference.
type ConfirmReceiptLineInput struct {
	LineID      int
	ReceivedQty decimal.Decimal
	AcceptedQty decimal.NullDecimal
	Condition   ConditionStatus
	Notes       *string
}

type ReceiptFilter struct {
	CampID int
	Status ReceiptStatus
	Limit  int
}

// ReceiptService closes the loop on dispatches. Receipts are opened pending
// by the dispatch transaction; confirming one posts the accepted quantities
// into camp stock and records shortages and damage.
type ReceiptService interface {
	GetReceipt(ctx context.Context, id int) (*Receipt, error)
	ListReceipts(ctx context.Context, f ReceiptFilter) ([]Receipt, error)
	ConfirmReceipt(ctx context.Context, actor Principal, receiptID int, in ConfirmReceiptInput) (*Receipt, error)
}

type receiptService struct {
	pool   *pgxpool.Pool
	ledger StockLedger
}

func NewReceiptService(pool *pgxpool.Pool, ledger StockLedger) ReceiptService {
	return &receiptService{pool: pool, ledger: ledger}
}

// ConfirmReceipt records the camp's counts and posts one inbound movement
// per line for the accepted quantity. Goods received but not accepted
// (damaged, expired) never enter camp stock.
func (s *receiptService) ConfirmReceipt(ctx context.Context, actor Principal, receiptID int, in ConfirmReceiptInput) (*Receipt, error) {
	if len(in.Lines) == 0 {
		return nil, NewValidationError("confirmation must count at least one line")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, NewPersistenceError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var status ReceiptStatus
	var campID, dispatchID int
	var receiptNumber string
	err = tx.QueryRow(ctx, `
		SELECT status, camp_id, dispatch_id, receipt_number
		FROM receipts WHERE id = $1 FOR UPDATE`, receiptID,
	).Scan(&status, &campID, &dispatchID, &receiptNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("receipt", receiptID)
	}
	if err != nil {
		return nil, NewPersistenceError("lock receipt", err)
	}
	if status != ReceiptPending {
		return nil, NewStateConflictError("receipt %d is already %s", receiptID, status)
	}

	today := time.Now()
	totalValue := decimal.Zero

	for _, li := range in.Lines {
		if li.ReceivedQty.IsNegative() {
			return nil, NewValidationError("received quantity for line %d must not be negative", li.LineID)
		}
		accepted := li.ReceivedQty
		if li.AcceptedQty.Valid {
			accepted = li.AcceptedQty.Decimal
		}
		if accepted.IsNegative() || accepted.GreaterThan(li.ReceivedQty) {
			return nil, NewValidationError("accepted quantity for line %d must be between zero and the received %s", li.LineID, li.ReceivedQty)
		}
		rejected := li.ReceivedQty.Sub(accepted)

		condition := li.Condition
		if condition == "" {
			condition = ConditionGood
		}

		var itemID int
		var unitCost decimal.Decimal
		err = tx.QueryRow(ctx, `
			SELECT item_id, unit_cost FROM receipt_lines
			WHERE id = $1 AND receipt_id = $2`, li.LineID, receiptID,
		).Scan(&itemID, &unitCost)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewValidationError("line %d does not belong to receipt %d", li.LineID, receiptID)
		}
		if err != nil {
			return nil, NewPersistenceError("read receipt line", err)
		}

		lineValue := LineValue(accepted, unitCost)
		totalValue = totalValue.Add(lineValue)

		_, err = tx.Exec(ctx, `
			UPDATE receipt_lines
			SET received_qty = $1, accepted_qty = $2, rejected_qty = $3,
			    condition_status = $4, notes = $5, total_value = $6
			WHERE id = $7`,
			li.ReceivedQty, accepted, rejected, condition, li.Notes, lineValue, li.LineID)
		if err != nil {
			return nil, NewPersistenceError("update receipt line", err)
		}

		if accepted.IsPositive() {
			_, err = s.ledger.PostMovementTx(ctx, tx, MovementInput{
				ItemID:          itemID,
				CampID:          campID,
				MovementType:    MovementReceipt,
				Direction:       DirectionIn,
				Quantity:        accepted,
				UnitCost:        unitCost,
				ReferenceType:   RefReceipt,
				ReferenceID:     receiptID,
				ReferenceNumber: receiptNumber,
				ActorID:         actor.UserID,
				MovementDate:    today,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE receipts
		SET status = $1, received_by = $2, received_date = $3, total_value = $4, notes = $5
		WHERE id = $6`,
		ReceiptConfirmed, actor.UserID, today, totalValue, in.Notes, receiptID)
	if err != nil {
		return nil, NewPersistenceError("update receipt", err)
	}

	_, err = tx.Exec(ctx, `UPDATE dispatches SET status = $1 WHERE id = $2`, DispatchDelivered, dispatchID)
	if err != nil {
		return nil, NewPersistenceError("update dispatch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, NewPersistenceError("commit receipt", err)
	}
	return s.GetReceipt(ctx, receiptID)
}

const receiptSelect = `
	SELECT r.id, r.receipt_number, r.dispatch_id, d.dispatch_number, r.camp_id, c.code, c.name,
	       r.status, r.total_value, r.received_by, r.received_date, r.notes, r.created_at
	FROM receipts r
	JOIN dispatches d ON d.id = r.dispatch_id
	JOIN camps c ON c.id = r.camp_id`

func scanReceipt(row pgx.Row) (*Receipt, error) {
	var r Receipt
	err := row.Scan(&r.ID, &r.ReceiptNumber, &r.DispatchID, &r.DispatchNumber, &r.CampID, &r.CampCode, &r.CampName,
		&r.Status, &r.TotalValue, &r.ReceivedBy, &r.ReceivedDate, &r.Notes, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *receiptService) GetReceipt(ctx context.Context, id int) (*Receipt, error) {
	r, err := scanReceipt(s.pool.QueryRow(ctx, receiptSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("receipt", id)
	}
	if err != nil {
		return nil, NewPersistenceError("read receipt", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT rl.id, rl.receipt_id, rl.item_id, i.item_code, i.name,
		       rl.expected_qty, rl.received_qty, rl.accepted_qty, rl.rejected_qty,
		       rl.unit_cost, rl.total_value, rl.condition_status, rl.notes
		FROM receipt_lines rl
		JOIN items i ON i.id = rl.item_id
		WHERE rl.receipt_id = $1
		ORDER BY rl.id`, id)
	if err != nil {
		return nil, NewPersistenceError("load receipt lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l ReceiptLine
		if err := rows.Scan(&l.ID, &l.ReceiptID, &l.ItemID, &l.ItemCode, &l.ItemName,
			&l.ExpectedQty, &l.ReceivedQty, &l.AcceptedQty, &l.RejectedQty,
			&l.UnitCost, &l.TotalValue, &l.ConditionStatus, &l.Notes); err != nil {
			return nil, NewPersistenceError("scan receipt line", err)
		}
		r.Lines = append(r.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("load receipt lines", err)
	}
	return r, nil
}

func (s *receiptService) ListReceipts(ctx context.Context, f ReceiptFilter) ([]Receipt, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := receiptSelect + ` WHERE 1=1`
	args := []any{}
	if f.CampID != 0 {
		args = append(args, f.CampID)
		query += ` AND r.camp_id = $1`
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += ` AND r.status = $` + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY r.id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, NewPersistenceError("list receipts", err)
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, NewPersistenceError("scan receipt", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("list receipts", err)
	}
	return out, nil
}
