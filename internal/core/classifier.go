package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Projection thresholds.
const (
	DeadStockMinDays       = 60
	ReorderFallbackDays    = 14
	ProjectionHorizonMax   = 90
	StockoutSummaryHorizon = 7
)

// DaysUntilStockout projects how long the current quantity lasts at the
// recorded usage rate. No usage rate, or nothing on hand, means no projection.
func DaysUntilStockout(qty decimal.Decimal, avgDailyUsage decimal.NullDecimal) decimal.NullDecimal {
	if !avgDailyUsage.Valid || !avgDailyUsage.Decimal.IsPositive() || !qty.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: qty.Div(avgDailyUsage.Decimal).Round(1), Valid: true}
}

// ProjectedStockoutDate turns a days-left projection into a calendar date.
func ProjectedStockoutDate(from time.Time, daysLeft decimal.Decimal) time.Time {
	hours := daysLeft.Mul(decimal.NewFromInt(24))
	return from.Add(time.Duration(hours.IntPart()) * time.Hour).Truncate(24 * time.Hour)
}

// SuggestedReorderQty tops the camp back up to par. Without a positive par
// level it falls back to two weeks of supply at the recorded usage rate.
func SuggestedReorderQty(qty decimal.Decimal, parLevel, avgDailyUsage decimal.NullDecimal) decimal.Decimal {
	if parLevel.Valid && parLevel.Decimal.IsPositive() {
		gap := parLevel.Decimal.Sub(qty)
		if gap.IsNegative() {
			return decimal.Zero
		}
		return gap.Round(1)
	}
	if avgDailyUsage.Valid {
		return avgDailyUsage.Decimal.Mul(decimal.NewFromInt(ReorderFallbackDays)).Round(1)
	}
	return decimal.Zero
}

// IsDeadStock reports stock that has sat unmoved past the threshold.
func IsDeadStock(daysSinceLastMovement *int, qty decimal.Decimal, minDays int) bool {
	return daysSinceLastMovement != nil && *daysSinceLastMovement >= minDays && qty.IsPositive()
}

// ExcessQty is the overhang above the max level, when one is set.
func ExcessQty(qty decimal.Decimal, maxLevel decimal.NullDecimal) decimal.NullDecimal {
	if !maxLevel.Valid {
		return decimal.NullDecimal{}
	}
	over := qty.Sub(maxLevel.Decimal)
	if over.IsNegative() {
		over = decimal.Zero
	}
	return decimal.NullDecimal{Decimal: over, Valid: true}
}

// AlertSummary is the per-camp (or fleet-wide) alert counts.
type AlertSummary struct {
	LowStock      int `json:"low_stock"`
	OutOfStock    int `json:"out_of_stock"`
	DeadStock     int `json:"dead_stock"`
	Stockout7Days int `json:"stockout_7days"`
	ExcessStock   int `json:"excess_stock"`
	TotalAlerts   int `json:"total_alerts"`
}

// StockAlert is one balance row in trouble, with the projection fields
// computed for the caller.
type StockAlert struct {
	ItemID            int                 `json:"item_id"`
	ItemCode          string              `json:"item_code"`
	ItemName          string              `json:"item_name"`
	CampID            int                 `json:"camp_id"`
	CampCode          string              `json:"camp_code"`
	IsCritical        bool                `json:"is_critical"`
	CurrentQty        decimal.Decimal     `json:"current_qty"`
	CurrentValue      decimal.Decimal     `json:"current_value"`
	ParLevel          decimal.NullDecimal `json:"par_level"`
	MinLevel          decimal.NullDecimal `json:"min_level"`
	MaxLevel          decimal.NullDecimal `json:"max_level"`
	AvgDailyUsage     decimal.NullDecimal `json:"avg_daily_usage"`
	StockStatus       StockStatus         `json:"stock_status"`
	DaysUntilStockout decimal.NullDecimal `json:"days_until_stockout"`
	StockoutDate      *time.Time          `json:"projected_stockout_date,omitempty"`
	ReorderQty        decimal.Decimal     `json:"suggested_reorder_qty"`
	DaysNoMovement    *int                `json:"days_no_movement,omitempty"`
	ExcessQty         decimal.NullDecimal `json:"excess_qty"`
}

// StockRow is one line of the stock overview.
type StockRow struct {
	ItemID       int                 `json:"item_id"`
	ItemCode     string              `json:"item_code"`
	ItemName     string              `json:"item_name"`
	StockUOM     string              `json:"stock_uom"`
	CampID       int                 `json:"camp_id"`
	CampCode     string              `json:"camp_code"`
	CurrentQty   decimal.Decimal     `json:"current_qty"`
	CurrentValue decimal.Decimal     `json:"current_value"`
	UnitCost     decimal.Decimal     `json:"unit_cost"`
	ParLevel     decimal.NullDecimal `json:"par_level"`
	StockStatus  StockStatus         `json:"stock_status"`
}

// StockClassifier grades the persisted stock positions into alerts. The
// stock_status label and avg_daily_usage it reads are maintained by the
// nightly recompute job; the classifier derives projections from them.
type StockClassifier interface {
	AlertSummary(ctx context.Context, campID int) (*AlertSummary, error)
	LowStock(ctx context.Context, campID, limit int) ([]StockAlert, error)
	Projections(ctx context.Context, campID, horizonDays int) ([]StockAlert, error)
	DeadStock(ctx context.Context, campID, minDays int) ([]StockAlert, error)
	ExcessStock(ctx context.Context, campID int) ([]StockAlert, error)
	StockOverview(ctx context.Context, campID int, search string, limit int) ([]StockRow, error)
}

type stockClassifier struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStockClassifier(pool *pgxpool.Pool) StockClassifier {
	return &stockClassifier{pool: pool, now: time.Now}
}

func (c *stockClassifier) AlertSummary(ctx context.Context, campID int) (*AlertSummary, error) {
	var s AlertSummary
	err := c.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE stock_status IN ('low', 'critical')),
			COUNT(*) FILTER (WHERE stock_status = 'out'),
			COUNT(*) FILTER (WHERE days_since_last_movement >= $1 AND current_qty > 0),
			COUNT(*) FILTER (WHERE avg_daily_usage > 0 AND current_qty > 0
				AND current_qty / avg_daily_usage <= $2),
			COUNT(*) FILTER (WHERE stock_status = 'excess')
		FROM stock_balances
		WHERE ($3 = 0 OR camp_id = $3)`,
		DeadStockMinDays, StockoutSummaryHorizon, campID,
	).Scan(&s.LowStock, &s.OutOfStock, &s.DeadStock, &s.Stockout7Days, &s.ExcessStock)
	if err != nil {
		return nil, NewPersistenceError("alert summary", err)
	}
	s.TotalAlerts = s.LowStock + s.OutOfStock + s.DeadStock + s.Stockout7Days
	return &s, nil
}

const alertSelect = `
	SELECT sb.item_id, i.item_code, i.name, sb.camp_id, c.code, i.is_critical,
	       sb.current_qty, sb.current_value, sb.par_level, sb.min_level, sb.max_level,
	       sb.avg_daily_usage, sb.stock_status, sb.days_since_last_movement
	FROM stock_balances sb
	JOIN items i ON i.id = sb.item_id
	JOIN camps c ON c.id = sb.camp_id`

func (c *stockClassifier) scanAlerts(rows pgx.Rows) ([]StockAlert, error) {
	defer rows.Close()
	now := c.now()

	var out []StockAlert
	for rows.Next() {
		var a StockAlert
		if err := rows.Scan(&a.ItemID, &a.ItemCode, &a.ItemName, &a.CampID, &a.CampCode, &a.IsCritical,
			&a.CurrentQty, &a.CurrentValue, &a.ParLevel, &a.MinLevel, &a.MaxLevel,
			&a.AvgDailyUsage, &a.StockStatus, &a.DaysNoMovement); err != nil {
			return nil, NewPersistenceError("scan stock alert", err)
		}
		a.DaysUntilStockout = DaysUntilStockout(a.CurrentQty, a.AvgDailyUsage)
		if a.DaysUntilStockout.Valid {
			d := ProjectedStockoutDate(now, a.DaysUntilStockout.Decimal)
			a.StockoutDate = &d
		}
		a.ReorderQty = SuggestedReorderQty(a.CurrentQty, a.ParLevel, a.AvgDailyUsage)
		a.ExcessQty = ExcessQty(a.CurrentQty, a.MaxLevel)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("list stock alerts", err)
	}
	return out, nil
}

func (c *stockClassifier) LowStock(ctx context.Context, campID, limit int) ([]StockAlert, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := c.pool.Query(ctx, alertSelect+`
		WHERE sb.stock_status IN ('low', 'critical', 'out')
		AND ($1 = 0 OR sb.camp_id = $1)
		ORDER BY sb.days_stock_on_hand ASC NULLS LAST
		LIMIT $2`, campID, limit)
	if err != nil {
		return nil, NewPersistenceError("list low stock", err)
	}
	return c.scanAlerts(rows)
}

func (c *stockClassifier) Projections(ctx context.Context, campID, horizonDays int) ([]StockAlert, error) {
	if horizonDays < 1 {
		horizonDays = ReorderFallbackDays
	}
	if horizonDays > ProjectionHorizonMax {
		horizonDays = ProjectionHorizonMax
	}
	rows, err := c.pool.Query(ctx, alertSelect+`
		WHERE sb.avg_daily_usage > 0 AND sb.current_qty > 0
		AND sb.current_qty / sb.avg_daily_usage <= $1
		AND ($2 = 0 OR sb.camp_id = $2)
		ORDER BY sb.current_qty / sb.avg_daily_usage ASC
		LIMIT 200`, horizonDays, campID)
	if err != nil {
		return nil, NewPersistenceError("list stockout projections", err)
	}
	return c.scanAlerts(rows)
}

func (c *stockClassifier) DeadStock(ctx context.Context, campID, minDays int) ([]StockAlert, error) {
	if minDays <= 0 {
		minDays = DeadStockMinDays
	}
	rows, err := c.pool.Query(ctx, alertSelect+`
		WHERE sb.days_since_last_movement >= $1 AND sb.current_qty > 0
		AND ($2 = 0 OR sb.camp_id = $2)
		ORDER BY sb.days_since_last_movement DESC
		LIMIT 200`, minDays, campID)
	if err != nil {
		return nil, NewPersistenceError("list dead stock", err)
	}
	return c.scanAlerts(rows)
}

func (c *stockClassifier) ExcessStock(ctx context.Context, campID int) ([]StockAlert, error) {
	rows, err := c.pool.Query(ctx, alertSelect+`
		WHERE sb.stock_status = 'excess'
		AND ($1 = 0 OR sb.camp_id = $1)
		ORDER BY sb.current_value DESC
		LIMIT 200`, campID)
	if err != nil {
		return nil, NewPersistenceError("list excess stock", err)
	}
	return c.scanAlerts(rows)
}

func (c *stockClassifier) StockOverview(ctx context.Context, campID int, search string, limit int) ([]StockRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := c.pool.Query(ctx, `
		SELECT sb.item_id, i.item_code, i.name, i.stock_uom, sb.camp_id, c.code,
		       sb.current_qty, sb.current_value, sb.unit_cost, sb.par_level, sb.stock_status
		FROM stock_balances sb
		JOIN items i ON i.id = sb.item_id
		JOIN camps c ON c.id = sb.camp_id
		WHERE ($1 = 0 OR sb.camp_id = $1)
		AND ($2 = '' OR i.item_code ILIKE '%' || $2 || '%' OR i.name ILIKE '%' || $2 || '%')
		ORDER BY i.item_code, c.code
		LIMIT $3`, campID, search, limit)
	if err != nil {
		return nil, NewPersistenceError("stock overview", err)
	}
	defer rows.Close()

	var out []StockRow
	for rows.Next() {
		var r StockRow
		if err := rows.Scan(&r.ItemID, &r.ItemCode, &r.ItemName, &r.StockUOM, &r.CampID, &r.CampCode,
			&r.CurrentQty, &r.CurrentValue, &r.UnitCost, &r.ParLevel, &r.StockStatus); err != nil {
			return nil, NewPersistenceError("scan stock row", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("stock overview", err)
	}
	return out, nil
}
