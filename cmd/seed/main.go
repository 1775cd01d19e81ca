// Seeds reference data for a fresh database: the camp network, item groups,
// cost centers, and a starter catalog. Safe to rerun; rows are upserted by
// their natural keys.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"kcl-stores/internal/db"
)

type camp struct {
	code, name, campType string
}

type refRow struct {
	code, name string
}

type item struct {
	code, name, group, uom   string
	avgCost, lastPrice       float64
	isCritical, isPerishable bool
}

var camps = []camp{
	{"HO", "Head Office Stores", "head_office"},
	{"NGO", "Ngorongoro Camp", "camp"},
	{"SER", "Serengeti Camp", "camp"},
	{"TAR", "Tarangire Camp", "camp"},
	{"LP", "Lake Plains Camp", "camp"},
	{"WL", "Wildlands Camp", "camp"},
}

var itemGroups = []refRow{
	{"FOOD", "Food & Provisions"},
	{"BEV", "Beverages"},
	{"HSK", "Housekeeping"},
	{"MAINT", "Maintenance"},
	{"FUEL", "Fuel & Gas"},
}

var costCenters = []refRow{
	{"KIT", "Kitchen"},
	{"BAR", "Bar"},
	{"HSK", "Housekeeping"},
	{"MNT", "Maintenance"},
	{"ADM", "Administration"},
}

var items = []item{
	{"FOOD-0001", "Rice, long grain 25kg", "FOOD", "bag", 42.50, 45.00, true, false},
	{"FOOD-0002", "Cooking oil 5L", "FOOD", "jerrican", 11.20, 12.00, true, false},
	{"FOOD-0003", "Tomatoes, fresh", "FOOD", "kg", 1.80, 2.00, false, true},
	{"FOOD-0004", "Beef fillet", "FOOD", "kg", 9.50, 10.00, false, true},
	{"BEV-0001", "Drinking water 500ml (24pk)", "BEV", "case", 6.00, 6.50, true, false},
	{"BEV-0002", "House red wine", "BEV", "bottle", 8.75, 9.00, false, false},
	{"HSK-0001", "Laundry detergent 10kg", "HSK", "bucket", 18.00, 19.50, false, false},
	{"HSK-0002", "Toilet paper (48 rolls)", "HSK", "bale", 14.40, 15.00, true, false},
	{"MAINT-0001", "Diesel generator filter", "MAINT", "ea", 23.00, 25.00, true, false},
	{"FUEL-0001", "LPG cylinder 45kg", "FUEL", "cylinder", 95.00, 98.00, true, false},
}

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	pool, err := db.NewPool(ctx)
	if err != nil {
		fmt.Printf("Failed to connect to DB: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	for _, c := range camps {
		_, err := pool.Exec(ctx, `
			INSERT INTO camps (code, name, camp_type)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, camp_type = EXCLUDED.camp_type`,
			c.code, c.name, c.campType)
		if err != nil {
			fmt.Printf("Failed to seed camp %s: %v\n", c.code, err)
			os.Exit(1)
		}
	}

	for _, g := range itemGroups {
		if _, err := pool.Exec(ctx, `
			INSERT INTO item_groups (code, name) VALUES ($1, $2)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name`, g.code, g.name); err != nil {
			fmt.Printf("Failed to seed item group %s: %v\n", g.code, err)
			os.Exit(1)
		}
	}

	for _, cc := range costCenters {
		if _, err := pool.Exec(ctx, `
			INSERT INTO cost_centers (code, name) VALUES ($1, $2)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name`, cc.code, cc.name); err != nil {
			fmt.Printf("Failed to seed cost center %s: %v\n", cc.code, err)
			os.Exit(1)
		}
	}

	for _, it := range items {
		_, err := pool.Exec(ctx, `
			INSERT INTO items
				(item_code, name, item_group_id, stock_uom, weighted_avg_cost,
				 last_purchase_price, is_critical, is_perishable)
			VALUES ($1, $2, (SELECT id FROM item_groups WHERE code = $3), $4, $5, $6, $7, $8)
			ON CONFLICT (item_code) DO UPDATE SET
				name = EXCLUDED.name,
				weighted_avg_cost = EXCLUDED.weighted_avg_cost,
				last_purchase_price = EXCLUDED.last_purchase_price`,
			it.code, it.name, it.group, it.uom, it.avgCost, it.lastPrice, it.isCritical, it.isPerishable)
		if err != nil {
			fmt.Printf("Failed to seed item %s: %v\n", it.code, err)
			os.Exit(1)
		}
	}

	fmt.Println("Seed complete.")
}
