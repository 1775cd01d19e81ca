package core

import "github.com/shopspring/decimal"

// EffectiveUnitCost resolves the cost an item moves at: weighted average when
// one exists, otherwise the last purchase price. Items that have never been
// purchased move at zero.
func EffectiveUnitCost(item *Item) decimal.Decimal {
	if item.WeightedAvgCost.IsPositive() {
		return item.WeightedAvgCost
	}
	return item.LastPurchasePrice
}

// LineValue is quantity times unit cost, rounded to currency precision.
func LineValue(qty, unitCost decimal.Decimal) decimal.Decimal {
	return qty.Mul(unitCost).Round(2)
}
