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

type CreateIssueInput struct {
	CampID         int
	IssueType      IssueType
	CostCenterID   int
	ReceivedByName *string
	Department     *string
	RoomNumbers    *string
	GuestCount     *int
	Notes          *string
	Lines          []IssueLineInput
}

type IssueLineInput struct {
	ItemID int
	Qty    decimal.Decimal
	Notes  *string
}

type IssueFilter struct {
	CampID    int
	IssueType IssueType
	Limit     int
}

// IssueService writes consumption out of camp stock. A voucher is created
// already confirmed: the outbound movements post in the same transaction, so
// a failed voucher leaves no stock change behind.
type IssueService interface {
	CreateIssue(ctx context.Context, actor Principal, in CreateIssueInput) (*IssueVoucher, error)
	GetIssue(ctx context.Context, id int) (*IssueVoucher, error)
	ListIssues(ctx context.Context, f IssueFilter) ([]IssueVoucher, error)
}

type issueService struct {
	pool      *pgxpool.Pool
	sequencer DocumentSequencer
	ledger    StockLedger
}

func NewIssueService(pool *pgxpool.Pool, sequencer DocumentSequencer, ledger StockLedger) IssueService {
	return &issueService{pool: pool, sequencer: sequencer, ledger: ledger}
}

func validIssueType(t IssueType) bool {
	switch t {
	case IssueKitchen, IssueBar, IssueRooms, IssueStaff, IssueWaste, IssueOther:
		return true
	}
	return false
}

func (s *issueService) CreateIssue(ctx context.Context, actor Principal, in CreateIssueInput) (*IssueVoucher, error) {
	if !validIssueType(in.IssueType) {
		return nil, NewValidationError("unknown issue type %q", in.IssueType)
	}
	if len(in.Lines) == 0 {
		return nil, NewValidationError("issue voucher must have at least one line")
	}
	seen := make(map[int]bool, len(in.Lines))
	for _, l := range in.Lines {
		if !l.Qty.IsPositive() {
			return nil, NewValidationError("issue quantity for item %d must be positive", l.ItemID)
		}
		if seen[l.ItemID] {
			return nil, NewValidationError("item %d appears more than once", l.ItemID)
		}
		seen[l.ItemID] = true
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, NewPersistenceError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	camp, err := getCampTx(ctx, tx, in.CampID)
	if err != nil {
		return nil, err
	}
	if _, err := getCostCenterTx(ctx, tx, in.CostCenterID); err != nil {
		return nil, err
	}

	voucherNumber, err := s.sequencer.Next(ctx, tx, PrefixIssue, camp.Code)
	if err != nil {
		return nil, err
	}

	today := time.Now()
	var voucherID int
	err = tx.QueryRow(ctx, `
		INSERT INTO issue_vouchers
			(voucher_number, camp_id, issue_type, cost_center_id, issue_date, issued_by,
			 received_by_name, department, room_numbers, guest_count, total_value, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 'confirmed', $11)
		RETURNING id`,
		voucherNumber, in.CampID, in.IssueType, in.CostCenterID, today, actor.UserID,
		in.ReceivedByName, in.Department, in.RoomNumbers, in.GuestCount, in.Notes,
	).Scan(&voucherID)
	if err != nil {
		return nil, NewPersistenceError("insert issue voucher", err)
	}

	totalValue := decimal.Zero
	for _, l := range in.Lines {
		item, err := getItemTx(ctx, tx, l.ItemID)
		if err != nil {
			return nil, err
		}
		unitCost := EffectiveUnitCost(item)
		value := LineValue(l.Qty, unitCost)
		totalValue = totalValue.Add(value)

		_, err = tx.Exec(ctx, `
			INSERT INTO issue_voucher_lines (voucher_id, item_id, quantity, unit_cost, total_value, notes)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			voucherID, l.ItemID, l.Qty, unitCost, value, l.Notes)
		if err != nil {
			return nil, NewPersistenceError("insert issue line", err)
		}

		_, err = s.ledger.PostMovementTx(ctx, tx, MovementInput{
			ItemID:          l.ItemID,
			CampID:          in.CampID,
			MovementType:    MovementIssue,
			Direction:       DirectionOut,
			Quantity:        l.Qty,
			UnitCost:        unitCost,
			ReferenceType:   RefIssueVoucher,
			ReferenceID:     voucherID,
			ReferenceNumber: voucherNumber,
			ActorID:         actor.UserID,
			MovementDate:    today,
		})
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, `UPDATE issue_vouchers SET total_value = $1 WHERE id = $2`, totalValue, voucherID)
	if err != nil {
		return nil, NewPersistenceError("update issue total", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, NewPersistenceError("commit issue voucher", err)
	}
	return s.GetIssue(ctx, voucherID)
}

const issueSelect = `
	SELECT v.id, v.voucher_number, v.camp_id, c.code, c.name, v.issue_type,
	       v.cost_center_id, cc.name, v.issue_date, v.issued_by,
	       v.received_by_name, v.department, v.room_numbers, v.guest_count,
	       v.total_value, v.status, v.notes, v.created_at
	FROM issue_vouchers v
	JOIN camps c ON c.id = v.camp_id
	JOIN cost_centers cc ON cc.id = v.cost_center_id`

func scanIssue(row pgx.Row) (*IssueVoucher, error) {
	var v IssueVoucher
	err := row.Scan(&v.ID, &v.VoucherNumber, &v.CampID, &v.CampCode, &v.CampName, &v.IssueType,
		&v.CostCenterID, &v.CostCenterName, &v.IssueDate, &v.IssuedBy,
		&v.ReceivedByName, &v.Department, &v.RoomNumbers, &v.GuestCount,
		&v.TotalValue, &v.Status, &v.Notes, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *issueService) GetIssue(ctx context.Context, id int) (*IssueVoucher, error) {
	v, err := scanIssue(s.pool.QueryRow(ctx, issueSelect+` WHERE v.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("issue voucher", id)
	}
	if err != nil {
		return nil, NewPersistenceError("read issue voucher", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT vl.id, vl.voucher_id, vl.item_id, i.item_code, i.name,
		       vl.quantity, vl.unit_cost, vl.total_value, vl.notes
		FROM issue_voucher_lines vl
		JOIN items i ON i.id = vl.item_id
		WHERE vl.voucher_id = $1
		ORDER BY vl.id`, id)
	if err != nil {
		return nil, NewPersistenceError("load issue lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l IssueVoucherLine
		if err := rows.Scan(&l.ID, &l.VoucherID, &l.ItemID, &l.ItemCode, &l.ItemName,
			&l.Quantity, &l.UnitCost, &l.TotalValue, &l.Notes); err != nil {
			return nil, NewPersistenceError("scan issue line", err)
		}
		v.Lines = append(v.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("load issue lines", err)
	}
	return v, nil
}

func (s *issueService) ListIssues(ctx context.Context, f IssueFilter) ([]IssueVoucher, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := issueSelect + ` WHERE 1=1`
	args := []any{}
	if f.CampID != 0 {
		args = append(args, f.CampID)
		query += ` AND v.camp_id = $1`
	}
	if f.IssueType != "" {
		args = append(args, f.IssueType)
		query += ` AND v.issue_type = $` + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY v.id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, NewPersistenceError("list issue vouchers", err)
	}
	defer rows.Close()

	var out []IssueVoucher
	for rows.Next() {
		v, err := scanIssue(rows)
		if err != nil {
			return nil, NewPersistenceError("scan issue voucher", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("list issue vouchers", err)
	}
	return out, nil
}
