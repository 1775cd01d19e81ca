package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"kcl-stores/internal/core"
)

type createOrderRequest struct {
	CampID int                      `json:"camp_id" validate:"required,gt=0"`
	Notes  *string                  `json:"notes"`
	Lines  []createOrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createOrderLineRequest struct {
	ItemID       int             `json:"item_id" validate:"required,gt=0"`
	RequestedQty decimal.Decimal `json:"requested_qty" validate:"required"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := core.CreateOrderInput{CampID: req.CampID, Notes: req.Notes}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, core.CreateOrderLineInput{ItemID: l.ItemID, RequestedQty: l.RequestedQty})
	}

	o, err := h.app.CreateOrder(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	f := core.OrderFilter{
		CampID: queryInt(r, "camp_id"),
		Status: core.OrderStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
	}
	orders, err := h.app.ListOrders(r.Context(), p, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid order id")
		return
	}
	o, err := h.app.GetOrder(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type reviewOrderRequest struct {
	Notes *string             `json:"notes"`
	Lines []reviewLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type reviewLineRequest struct {
	LineID      int              `json:"line_id" validate:"required,gt=0"`
	Action      string           `json:"action" validate:"required,oneof=approved adjusted rejected"`
	ApprovedQty *decimal.Decimal `json:"approved_qty"`
	Note        *string          `json:"note"`
}

func (h *Handler) reviewOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid order id")
		return
	}
	var req reviewOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := core.ReviewOrderInput{Notes: req.Notes}
	for _, l := range req.Lines {
		lr := core.LineReview{LineID: l.LineID, Action: core.LineAction(l.Action), Note: l.Note}
		if l.ApprovedQty != nil {
			lr.ApprovedQty = decimal.NullDecimal{Decimal: *l.ApprovedQty, Valid: true}
		}
		in.Lines = append(in.Lines, lr)
	}

	o, err := h.app.ReviewOrder(r.Context(), p, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type rejectOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) rejectOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid order id")
		return
	}
	var req rejectOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.app.RejectOrder(r.Context(), p, id, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type orderQueryRequest struct {
	OrderLineID *int   `json:"order_line_id"`
	Message     string `json:"message" validate:"required"`
}

func (h *Handler) addOrderQuery(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid order id")
		return
	}
	var req orderQueryRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.app.AddOrderQuery(r.Context(), p, id, req.OrderLineID, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) listOrderQueries(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid order id")
		return
	}
	qs, err := h.app.ListOrderQueries(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}
