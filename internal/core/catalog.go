package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogService serves the reference data the workflows and clients look
// things up against. All reads, no writes; the catalog is maintained by the
// procurement import.
type CatalogService interface {
	ListCamps(ctx context.Context) ([]Camp, error)
	GetCamp(ctx context.Context, id int) (*Camp, error)
	ListItems(ctx context.Context, search string, limit int) ([]Item, error)
	GetItem(ctx context.Context, id int) (*Item, error)
	ListItemGroups(ctx context.Context) ([]ItemGroup, error)
	ListCostCenters(ctx context.Context) ([]CostCenter, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

func (s *catalogService) ListCamps(ctx context.Context) ([]Camp, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, name, camp_type, is_active FROM camps ORDER BY code`)
	if err != nil {
		return nil, NewPersistenceError("list camps", err)
	}
	defer rows.Close()

	var out []Camp
	for rows.Next() {
		var c Camp
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Type, &c.IsActive); err != nil {
			return nil, NewPersistenceError("scan camp", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("list camps", err)
	}
	return out, nil
}

func (s *catalogService) GetCamp(ctx context.Context, id int) (*Camp, error) {
	var c Camp
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, name, camp_type, is_active FROM camps WHERE id = $1`, id,
	).Scan(&c.ID, &c.Code, &c.Name, &c.Type, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("camp", id)
	}
	if err != nil {
		return nil, NewPersistenceError("read camp", err)
	}
	return &c, nil
}

const itemColumns = `id, item_code, name, item_group_id, stock_uom,
	weighted_avg_cost, last_purchase_price, abc_class, is_critical, is_perishable,
	storage_type, shelf_life_days, is_active, created_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.ItemCode, &it.Name, &it.ItemGroupID, &it.StockUOM,
		&it.WeightedAvgCost, &it.LastPurchasePrice, &it.ABCClass, &it.IsCritical, &it.IsPerishable,
		&it.StorageType, &it.ShelfLifeDays, &it.IsActive, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *catalogService) ListItems(ctx context.Context, search string, limit int) ([]Item, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE is_active AND ($1 = '' OR item_code ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')
		ORDER BY item_code
		LIMIT $2`, search, limit)
	if err != nil {
		return nil, NewPersistenceError("list items", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, NewPersistenceError("scan item", err)
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("list items", err)
	}
	return out, nil
}

func (s *catalogService) GetItem(ctx context.Context, id int) (*Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("item", id)
	}
	if err != nil {
		return nil, NewPersistenceError("read item", err)
	}
	return it, nil
}

func (s *catalogService) ListItemGroups(ctx context.Context) ([]ItemGroup, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, code, name FROM item_groups ORDER BY code`)
	if err != nil {
		return nil, NewPersistenceError("list item groups", err)
	}
	defer rows.Close()

	var out []ItemGroup
	for rows.Next() {
		var g ItemGroup
		if err := rows.Scan(&g.ID, &g.Code, &g.Name); err != nil {
			return nil, NewPersistenceError("scan item group", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("list item groups", err)
	}
	return out, nil
}

func (s *catalogService) ListCostCenters(ctx context.Context) ([]CostCenter, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, code, name FROM cost_centers ORDER BY code`)
	if err != nil {
		return nil, NewPersistenceError("list cost centers", err)
	}
	defer rows.Close()

	var out []CostCenter
	for rows.Next() {
		var cc CostCenter
		if err := rows.Scan(&cc.ID, &cc.Code, &cc.Name); err != nil {
			return nil, NewPersistenceError("scan cost center", err)
		}
		out = append(out, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, NewPersistenceError("list cost centers", err)
	}
	return out, nil
}

// Shared tx-scoped lookups used inside the workflow transactions.

func getCampTx(ctx context.Context, tx pgx.Tx, id int) (*Camp, error) {
	var c Camp
	err := tx.QueryRow(ctx, `
		SELECT id, code, name, camp_type, is_active FROM camps WHERE id = $1`, id,
	).Scan(&c.ID, &c.Code, &c.Name, &c.Type, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("camp", id)
	}
	if err != nil {
		return nil, NewPersistenceError("read camp", err)
	}
	if !c.IsActive {
		return nil, NewValidationError("camp %s is inactive", c.Code)
	}
	return &c, nil
}

func getCampIDByCodeTx(ctx context.Context, tx pgx.Tx, code string) (int, error) {
	var id int
	err := tx.QueryRow(ctx, `SELECT id FROM camps WHERE code = $1`, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, NewNotFoundError("camp", code)
	}
	if err != nil {
		return 0, NewPersistenceError("read camp", err)
	}
	return id, nil
}

func getItemTx(ctx context.Context, tx pgx.Tx, id int) (*Item, error) {
	it, err := scanItem(tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("item", id)
	}
	if err != nil {
		return nil, NewPersistenceError("read item", err)
	}
	return it, nil
}

func getCostCenterTx(ctx context.Context, tx pgx.Tx, id int) (*CostCenter, error) {
	var cc CostCenter
	err := tx.QueryRow(ctx, `SELECT id, code, name FROM cost_centers WHERE id = $1`, id,
	).Scan(&cc.ID, &cc.Code, &cc.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError("cost center", id)
	}
	if err != nil {
		return nil, NewPersistenceError("read cost center", err)
	}
	return &cc, nil
}
