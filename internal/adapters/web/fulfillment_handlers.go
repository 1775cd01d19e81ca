package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"kcl-stores/internal/core"
)

// ── Dispatches ──

type createDispatchRequest struct {
	OrderID        int                         `json:"order_id" validate:"required,gt=0"`
	VehicleDetails *string                     `json:"vehicle_details"`
	DriverName     *string                     `json:"driver_name"`
	Notes          *string                     `json:"notes"`
	Lines          []createDispatchLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createDispatchLineRequest struct {
	ItemID int             `json:"item_id" validate:"required,gt=0"`
	Qty    decimal.Decimal `json:"qty" validate:"required"`
}

func (h *Handler) createDispatch(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req createDispatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := core.CreateDispatchInput{
		OrderID:        req.OrderID,
		VehicleDetails: req.VehicleDetails,
		DriverName:     req.DriverName,
		Notes:          req.Notes,
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, core.DispatchLineInput{ItemID: l.ItemID, Qty: l.Qty})
	}

	d, err := h.app.CreateDispatch(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) listDispatches(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	f := core.DispatchFilter{
		CampID: queryInt(r, "camp_id"),
		Status: core.DispatchStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
	}
	ds, err := h.app.ListDispatches(r.Context(), p, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *Handler) getDispatch(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid dispatch id")
		return
	}
	d, err := h.app.GetDispatch(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) markInTransit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid dispatch id")
		return
	}
	d, err := h.app.MarkDispatchInTransit(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ── Receipts ──

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	f := core.ReceiptFilter{
		CampID: queryInt(r, "camp_id"),
		Status: core.ReceiptStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
	}
	rs, err := h.app.ListReceipts(r.Context(), p, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid receipt id")
		return
	}
	rec, err := h.app.GetReceipt(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type confirmReceiptRequest struct {
	Notes *string                     `json:"notes"`
	Lines []confirmReceiptLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type confirmReceiptLineRequest struct {
	LineID      int              `json:"line_id" validate:"required,gt=0"`
	ReceivedQty decimal.Decimal  `json:"received_qty"`
	AcceptedQty *decimal.Decimal `json:"accepted_qty"`
	Condition   string           `json:"condition_status" validate:"omitempty,oneof=good damaged expired"`
	Notes       *string          `json:"notes"`
}

func (h *Handler) confirmReceipt(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid receipt id")
		return
	}
	var req confirmReceiptRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := core.ConfirmReceiptInput{Notes: req.Notes}
	for _, l := range req.Lines {
		li := core.ConfirmReceiptLineInput{
			LineID:      l.LineID,
			ReceivedQty: l.ReceivedQty,
			Condition:   core.ConditionStatus(l.Condition),
			Notes:       l.Notes,
		}
		if l.AcceptedQty != nil {
			li.AcceptedQty = decimal.NullDecimal{Decimal: *l.AcceptedQty, Valid: true}
		}
		in.Lines = append(in.Lines, li)
	}

	rec, err := h.app.ConfirmReceipt(r.Context(), p, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ── Issues ──

type createIssueRequest struct {
	CampID         int                      `json:"camp_id" validate:"required,gt=0"`
	IssueType      string                   `json:"issue_type" validate:"required,oneof=kitchen bar rooms staff waste other"`
	CostCenterID   int                      `json:"cost_center_id" validate:"required,gt=0"`
	ReceivedByName *string                  `json:"received_by_name"`
	Department     *string                  `json:"department"`
	RoomNumbers    *string                  `json:"room_numbers"`
	GuestCount     *int                     `json:"guest_count"`
	Notes          *string                  `json:"notes"`
	Lines          []createIssueLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createIssueLineRequest struct {
	ItemID int             `json:"item_id" validate:"required,gt=0"`
	Qty    decimal.Decimal `json:"qty" validate:"required"`
	Notes  *string         `json:"notes"`
}

func (h *Handler) createIssue(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req createIssueRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := core.CreateIssueInput{
		CampID:         req.CampID,
		IssueType:      core.IssueType(req.IssueType),
		CostCenterID:   req.CostCenterID,
		ReceivedByName: req.ReceivedByName,
		Department:     req.Department,
		RoomNumbers:    req.RoomNumbers,
		GuestCount:     req.GuestCount,
		Notes:          req.Notes,
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, core.IssueLineInput{ItemID: l.ItemID, Qty: l.Qty, Notes: l.Notes})
	}

	v, err := h.app.CreateIssue(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) listIssues(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	f := core.IssueFilter{
		CampID:    queryInt(r, "camp_id"),
		IssueType: core.IssueType(r.URL.Query().Get("issue_type")),
		Limit:     queryInt(r, "limit"),
	}
	vs, err := h.app.ListIssues(r.Context(), p, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (h *Handler) getIssue(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid voucher id")
		return
	}
	v, err := h.app.GetIssue(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
