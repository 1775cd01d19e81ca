// Package web is the JSON HTTP adapter. Authentication is handled by the
// gateway in front of this service; it asserts the caller's identity through
// the X-User-ID, X-User-Role and X-Camp-ID headers, which are trusted here.
package web

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"kcl-stores/internal/app"
	"kcl-stores/internal/core"
)

type Handler struct {
	app      *app.Service
	log      zerolog.Logger
	validate *validator.Validate
}

func NewHandler(svc *app.Service, log zerolog.Logger) *Handler {
	return &Handler{app: svc, log: log, validate: validator.New()}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(os.Getenv("ALLOWED_ORIGINS")))
	r.Use(RequestBodyLimit)

	r.Get("/api/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/camps", h.listCamps)
		r.Get("/items", h.listItems)
		r.Get("/items/{id}", h.getItem)
		r.Get("/item-groups", h.listItemGroups)
		r.Get("/cost-centers", h.listCostCenters)

		r.Get("/stock", h.stockOverview)
		r.Get("/stock/balance", h.getStockBalance)
		r.Get("/stock/movements", h.listStockMovements)
		r.Get("/alerts", h.alerts)

		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/{id}/review", h.reviewOrder)
		r.Post("/orders/{id}/reject", h.rejectOrder)
		r.Get("/orders/{id}/queries", h.listOrderQueries)
		r.Post("/orders/{id}/queries", h.addOrderQuery)

		r.Post("/dispatches", h.createDispatch)
		r.Get("/dispatches", h.listDispatches)
		r.Get("/dispatches/{id}", h.getDispatch)
		r.Post("/dispatches/{id}/in-transit", h.markInTransit)

		r.Get("/receipts", h.listReceipts)
		r.Get("/receipts/{id}", h.getReceipt)
		r.Post("/receipts/{id}/confirm", h.confirmReceipt)

		r.Post("/issues", h.createIssue)
		r.Get("/issues", h.listIssues)
		r.Get("/issues/{id}", h.getIssue)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// principal reads the caller identity the gateway asserted. A missing or
// malformed assertion is a gateway misconfiguration, answered with 401.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (core.Principal, bool) {
	userID, err := strconv.Atoi(r.Header.Get("X-User-ID"))
	if err != nil || userID <= 0 {
		writeErrorMessage(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid user identity")
		return core.Principal{}, false
	}
	role := core.Role(r.Header.Get("X-User-Role"))
	if !core.ValidRole(role) {
		writeErrorMessage(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid user role")
		return core.Principal{}, false
	}
	campID := 0
	if v := r.Header.Get("X-Camp-ID"); v != "" {
		campID, err = strconv.Atoi(v)
		if err != nil || campID < 0 {
			writeErrorMessage(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid camp assignment")
			return core.Principal{}, false
		}
	}
	return core.Principal{UserID: userID, Role: role, CampID: campID}, true
}

// decode unmarshals and validates a request body.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, err.Error())
		return false
	}
	return true
}

func idParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// ── Catalog ──

func (h *Handler) listCamps(w http.ResponseWriter, r *http.Request) {
	camps, err := h.app.ListCamps(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, camps)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.ListItems(r.Context(), r.URL.Query().Get("search"), queryInt(r, "limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "invalid item id")
		return
	}
	item, err := h.app.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) listItemGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.app.ListItemGroups(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) listCostCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.app.ListCostCenters(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, centers)
}

// ── Stock ──

func (h *Handler) stockOverview(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	rows, err := h.app.StockOverview(r.Context(), p, queryInt(r, "camp_id"), r.URL.Query().Get("search"), queryInt(r, "limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) getStockBalance(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	itemID, campID := queryInt(r, "item_id"), queryInt(r, "camp_id")
	if itemID <= 0 || campID <= 0 {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "item_id and camp_id are required")
		return
	}
	b, err := h.app.GetStockBalance(r.Context(), p, itemID, campID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) listStockMovements(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	itemID, campID := queryInt(r, "item_id"), queryInt(r, "camp_id")
	if itemID <= 0 || campID <= 0 {
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation, "item_id and camp_id are required")
		return
	}
	ms, err := h.app.ListStockMovements(r.Context(), p, itemID, campID, queryInt(r, "limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

// ── Alerts ──

func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	campID := queryInt(r, "camp_id")

	var (
		payload any
		err     error
	)
	switch t := r.URL.Query().Get("type"); t {
	case "", "summary":
		payload, err = h.app.AlertSummary(ctx, p, campID)
	case "low_stock":
		payload, err = h.app.LowStockAlerts(ctx, p, campID, queryInt(r, "limit"))
	case "projections":
		payload, err = h.app.StockoutProjections(ctx, p, campID, queryInt(r, "days"))
	case "dead_stock":
		payload, err = h.app.DeadStockAlerts(ctx, p, campID, queryInt(r, "min_days"))
	case "excess":
		payload, err = h.app.ExcessStockAlerts(ctx, p, campID)
	default:
		writeErrorMessage(w, r, http.StatusBadRequest, core.CodeValidation,
			"unknown alert type, expected one of: summary, low_stock, projections, dead_stock, excess")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// fail logs the full error chain and answers with the mapped status.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	evt := h.log.Warn()
	if core.IsPersistenceError(err) {
		evt = h.log.Error()
	}
	evt.Str("request_id", requestIDFrom(r.Context())).Err(err).Msg("request failed")
	writeError(w, r, err)
}
