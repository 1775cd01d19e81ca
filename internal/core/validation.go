package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineVerdict is the outcome of classifying one order line.
type LineVerdict struct {
	Status ValidationStatus
	Note   string
}

var (
	ratioFlagOver   = decimal.NewFromFloat(1.5)
	ratioStockedPar = decimal.NewFromFloat(0.8)
)

// ClassifyOrderLine grades a requested line against the stock picture at
// order time. Severity only escalates: a line that trips a review rule and a
// flag rule is flagged, and the notes of every tripped rule are kept.
//
// The par-ratio rules apply only when a positive par level is set; a zero or
// missing par gives no meaningful ratio to grade against.
func ClassifyOrderLine(requestedQty, campStock, hoStock decimal.Decimal, parLevel, avgDailyUsage decimal.NullDecimal) LineVerdict {
	status := ValidationClear
	var notes []string

	escalate := func(to ValidationStatus, note string) {
		if to == ValidationFlagged || (to == ValidationReview && status == ValidationClear) {
			status = to
		}
		notes = append(notes, note)
	}

	if parLevel.Valid && parLevel.Decimal.IsPositive() {
		par := parLevel.Decimal
		if requestedQty.GreaterThan(par.Mul(ratioFlagOver)) {
			escalate(ValidationFlagged, "requested quantity exceeds 150% of par level")
		}
		if campStock.IsPositive() && campStock.GreaterThanOrEqual(par.Mul(ratioStockedPar)) {
			escalate(ValidationReview, "camp already holds 80% or more of par level")
		}
	}

	if !hoStock.IsPositive() {
		escalate(ValidationFlagged, "head office has no stock of this item")
	} else if hoStock.LessThan(requestedQty) {
		escalate(ValidationReview, "head office stock below requested quantity")
	}

	return LineVerdict{Status: status, Note: strings.Join(notes, "; ")}
}

// AggregateOrderStatus folds per-line stores actions into the order status
// after review. All lines rejected means the order is rejected outright; any
// rejection among approvals means a partial approval.
func AggregateOrderStatus(actions []LineAction) OrderStatus {
	rejected := 0
	for _, a := range actions {
		if a == LineRejected {
			rejected++
		}
	}
	switch {
	case rejected == len(actions):
		return OrderStoresRejected
	case rejected > 0:
		return OrderStoresPartial
	default:
		return OrderStoresApproved
	}
}
