package core_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"kcl-stores/internal/core"
)

func null() decimal.NullDecimal {
	return decimal.NullDecimal{}
}

func nd(s string) decimal.NullDecimal {
	d, _ := decimal.NewFromString(s)
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestClassifyOrderLine(t *testing.T) {
	tests := []struct {
		name       string
		qty        string
		campStock  string
		hoStock    string
		par        decimal.NullDecimal
		wantStatus core.ValidationStatus
		wantNote   string
	}{
		{
			name: "clear when stock is healthy",
			qty:  "10", campStock: "2", hoStock: "100", par: nd("20"),
			wantStatus: core.ValidationClear,
		},
		{
			name: "flagged when request exceeds 150% of par",
			qty:  "31", campStock: "0", hoStock: "100", par: nd("20"),
			wantStatus: core.ValidationFlagged,
			wantNote:   "150% of par",
		},
		{
			name: "exactly 150% of par is not flagged",
			qty:  "30", campStock: "0", hoStock: "100", par: nd("20"),
			wantStatus: core.ValidationClear,
		},
		{
			name: "review when camp holds 80% of par",
			qty:  "10", campStock: "16", hoStock: "100", par: nd("20"),
			wantStatus: core.ValidationReview,
			wantNote:   "80% or more of par",
		},
		{
			name: "flagged when head office is out",
			qty:  "10", campStock: "0", hoStock: "0", par: nd("20"),
			wantStatus: core.ValidationFlagged,
			wantNote:   "no stock",
		},
		{
			name: "review when head office stock below request",
			qty:  "10", campStock: "0", hoStock: "6", par: nd("20"),
			wantStatus: core.ValidationReview,
			wantNote:   "below requested",
		},
		{
			name: "flag beats review",
			qty:  "31", campStock: "16", hoStock: "6", par: nd("20"),
			wantStatus: core.ValidationFlagged,
		},
		{
			name: "zero par skips the ratio rules",
			qty:  "1000", campStock: "500", hoStock: "2000", par: nd("0"),
			wantStatus: core.ValidationClear,
		},
		{
			name: "missing par skips the ratio rules",
			qty:  "1000", campStock: "500", hoStock: "2000", par: null(),
			wantStatus: core.ValidationClear,
		},
		{
			name: "zero camp stock never trips the stocked rule",
			qty:  "10", campStock: "0", hoStock: "100", par: nd("0.1"),
			wantStatus: core.ValidationFlagged, // over 150% of the tiny par
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := core.ClassifyOrderLine(d(tc.qty), d(tc.campStock), d(tc.hoStock), tc.par, null())
			if v.Status != tc.wantStatus {
				t.Errorf("status = %s, want %s (note: %q)", v.Status, tc.wantStatus, v.Note)
			}
			if tc.wantNote != "" && !strings.Contains(v.Note, tc.wantNote) {
				t.Errorf("note = %q, want it to mention %q", v.Note, tc.wantNote)
			}
		})
	}
}

func TestClassifyOrderLine_CollectsAllNotes(t *testing.T) {
	// Over par and short at HO at the same time: both notes, joined.
	v := core.ClassifyOrderLine(d("31"), d("0"), d("6"), nd("20"), null())
	if v.Status != core.ValidationFlagged {
		t.Fatalf("status = %s, want flagged", v.Status)
	}
	if !strings.Contains(v.Note, "; ") {
		t.Errorf("note = %q, want two rule notes joined with '; '", v.Note)
	}
}

func TestAggregateOrderStatus(t *testing.T) {
	a := core.LineApproved
	j := core.LineAdjusted
	r := core.LineRejected

	tests := []struct {
		name    string
		actions []core.LineAction
		want    core.OrderStatus
	}{
		{"all approved", []core.LineAction{a, a, a}, core.OrderStoresApproved},
		{"adjusted counts as approval", []core.LineAction{a, j}, core.OrderStoresApproved},
		{"mixed is partial", []core.LineAction{a, r, j}, core.OrderStoresPartial},
		{"all rejected", []core.LineAction{r, r}, core.OrderStoresRejected},
		{"single rejection", []core.LineAction{r}, core.OrderStoresRejected},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := core.AggregateOrderStatus(tc.actions); got != tc.want {
				t.Errorf("AggregateOrderStatus(%v) = %s, want %s", tc.actions, got, tc.want)
			}
		})
	}
}
