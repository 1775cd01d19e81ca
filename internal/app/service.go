// Package app exposes the back-office operations to transport adapters. It
// owns authorization: every method takes the caller's principal, evaluates
// the policy once, and only then hands off to the core services.
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"kcl-stores/internal/core"
)

type Service struct {
	catalog    core.CatalogService
	orders     core.OrderWorkflow
	dispatches core.DispatchService
	receipts   core.ReceiptService
	issues     core.IssueService
	ledger     core.StockLedger
	classifier core.StockClassifier
}

func NewService(pool *pgxpool.Pool) *Service {
	sequencer := core.NewDocumentSequencer()
	ledger := core.NewStockLedger(pool)
	return &Service{
		catalog:    core.NewCatalogService(pool),
		orders:     core.NewOrderWorkflow(pool, sequencer, ledger),
		dispatches: core.NewDispatchService(pool, sequencer, ledger),
		receipts:   core.NewReceiptService(pool, ledger),
		issues:     core.NewIssueService(pool, sequencer, ledger),
		ledger:     ledger,
		classifier: core.NewStockClassifier(pool),
	}
}

// ── Catalog ──

func (s *Service) ListCamps(ctx context.Context) ([]core.Camp, error) {
	return s.catalog.ListCamps(ctx)
}

func (s *Service) ListItems(ctx context.Context, search string, limit int) ([]core.Item, error) {
	return s.catalog.ListItems(ctx, search, limit)
}

func (s *Service) GetItem(ctx context.Context, id int) (*core.Item, error) {
	return s.catalog.GetItem(ctx, id)
}

func (s *Service) ListItemGroups(ctx context.Context) ([]core.ItemGroup, error) {
	return s.catalog.ListItemGroups(ctx)
}

func (s *Service) ListCostCenters(ctx context.Context) ([]core.CostCenter, error) {
	return s.catalog.ListCostCenters(ctx)
}

// ── Orders ──

func (s *Service) CreateOrder(ctx context.Context, p core.Principal, in core.CreateOrderInput) (*core.Order, error) {
	if !core.NewPolicy(p).CanCreateOrder(in.CampID) {
		return nil, core.NewForbiddenError("role %s cannot raise orders for camp %d", p.Role, in.CampID)
	}
	return s.orders.CreateOrder(ctx, p, in)
}

func (s *Service) GetOrder(ctx context.Context, p core.Principal, id int) (*core.Order, error) {
	o, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	// Out-of-scope documents read as absent so callers cannot probe for
	// other camps' order numbers.
	if !core.NewPolicy(p).CanAccessCamp(o.CampID) {
		return nil, core.NewNotFoundError("order", id)
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, p core.Principal, f core.OrderFilter) ([]core.Order, error) {
	f.CampID = core.NewPolicy(p).ScopeCampFilter(f.CampID)
	return s.orders.ListOrders(ctx, f)
}

func (s *Service) ReviewOrder(ctx context.Context, p core.Principal, orderID int, in core.ReviewOrderInput) (*core.Order, error) {
	if !core.NewPolicy(p).CanReviewOrder() {
		return nil, core.NewForbiddenError("role %s cannot review orders", p.Role)
	}
	return s.orders.ReviewOrder(ctx, p, orderID, in)
}

func (s *Service) RejectOrder(ctx context.Context, p core.Principal, orderID int, reason string) (*core.Order, error) {
	if !core.NewPolicy(p).CanReviewOrder() {
		return nil, core.NewForbiddenError("role %s cannot reject orders", p.Role)
	}
	return s.orders.RejectOrder(ctx, p, orderID, reason)
}

func (s *Service) AddOrderQuery(ctx context.Context, p core.Principal, orderID int, lineID *int, message string) (*core.OrderQuery, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !core.NewPolicy(p).CanAccessCamp(o.CampID) {
		return nil, core.NewNotFoundError("order", orderID)
	}
	if !core.NewPolicy(p).CanQueryOrder(o.CampID) {
		return nil, core.NewForbiddenError("role %s cannot query order %s", p.Role, o.OrderNumber)
	}
	return s.orders.AddOrderQuery(ctx, p, orderID, lineID, message)
}

func (s *Service) ListOrderQueries(ctx context.Context, p core.Principal, orderID int) ([]core.OrderQuery, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !core.NewPolicy(p).CanAccessCamp(o.CampID) {
		return nil, core.NewNotFoundError("order", orderID)
	}
	return s.orders.ListOrderQueries(ctx, orderID)
}

// ── Dispatches ──

func (s *Service) CreateDispatch(ctx context.Context, p core.Principal, in core.CreateDispatchInput) (*core.Dispatch, error) {
	if !core.NewPolicy(p).CanDispatch() {
		return nil, core.NewForbiddenError("role %s cannot create dispatches", p.Role)
	}
	return s.dispatches.CreateDispatch(ctx, p, in)
}

func (s *Service) GetDispatch(ctx context.Context, p core.Principal, id int) (*core.Dispatch, error) {
	d, err := s.dispatches.GetDispatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !core.NewPolicy(p).CanAccessCamp(d.CampID) {
		return nil, core.NewNotFoundError("dispatch", id)
	}
	return d, nil
}

func (s *Service) ListDispatches(ctx context.Context, p core.Principal, f core.DispatchFilter) ([]core.Dispatch, error) {
	f.CampID = core.NewPolicy(p).ScopeCampFilter(f.CampID)
	return s.dispatches.ListDispatches(ctx, f)
}

func (s *Service) MarkDispatchInTransit(ctx context.Context, p core.Principal, dispatchID int) (*core.Dispatch, error) {
	if !core.NewPolicy(p).CanDispatch() {
		return nil, core.NewForbiddenError("role %s cannot update dispatches", p.Role)
	}
	return s.dispatches.MarkInTransit(ctx, p, dispatchID)
}

// ── Receipts ──

func (s *Service) GetReceipt(ctx context.Context, p core.Principal, id int) (*core.Receipt, error) {
	r, err := s.receipts.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if !core.NewPolicy(p).CanAccessCamp(r.CampID) {
		return nil, core.NewNotFoundError("receipt", id)
	}
	return r, nil
}

func (s *Service) ListReceipts(ctx context.Context, p core.Principal, f core.ReceiptFilter) ([]core.Receipt, error) {
	f.CampID = core.NewPolicy(p).ScopeCampFilter(f.CampID)
	return s.receipts.ListReceipts(ctx, f)
}

func (s *Service) ConfirmReceipt(ctx context.Context, p core.Principal, receiptID int, in core.ConfirmReceiptInput) (*core.Receipt, error) {
	r, err := s.receipts.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if !core.NewPolicy(p).CanAccessCamp(r.CampID) {
		return nil, core.NewNotFoundError("receipt", receiptID)
	}
	if !core.NewPolicy(p).CanConfirmReceipt(r.CampID) {
		return nil, core.NewForbiddenError("role %s cannot confirm receipts for camp %d", p.Role, r.CampID)
	}
	return s.receipts.ConfirmReceipt(ctx, p, receiptID, in)
}

// ── Issues ──

func (s *Service) CreateIssue(ctx context.Context, p core.Principal, in core.CreateIssueInput) (*core.IssueVoucher, error) {
	if !core.NewPolicy(p).CanIssueStock(in.CampID) {
		return nil, core.NewForbiddenError("role %s cannot issue stock for camp %d", p.Role, in.CampID)
	}
	return s.issues.CreateIssue(ctx, p, in)
}

func (s *Service) GetIssue(ctx context.Context, p core.Principal, id int) (*core.IssueVoucher, error) {
	v, err := s.issues.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if !core.NewPolicy(p).CanAccessCamp(v.CampID) {
		return nil, core.NewNotFoundError("issue voucher", id)
	}
	return v, nil
}

func (s *Service) ListIssues(ctx context.Context, p core.Principal, f core.IssueFilter) ([]core.IssueVoucher, error) {
	f.CampID = core.NewPolicy(p).ScopeCampFilter(f.CampID)
	return s.issues.ListIssues(ctx, f)
}

// ── Stock ──

func (s *Service) GetStockBalance(ctx context.Context, p core.Principal, itemID, campID int) (*core.StockBalance, error) {
	if !core.NewPolicy(p).CanAccessCamp(campID) {
		return nil, core.NewForbiddenError("role %s cannot view camp %d stock", p.Role, campID)
	}
	return s.ledger.GetBalance(ctx, itemID, campID)
}

func (s *Service) ListStockMovements(ctx context.Context, p core.Principal, itemID, campID, limit int) ([]core.StockMovement, error) {
	if !core.NewPolicy(p).CanAccessCamp(campID) {
		return nil, core.NewForbiddenError("role %s cannot view camp %d movements", p.Role, campID)
	}
	return s.ledger.ListMovements(ctx, itemID, campID, limit)
}

func (s *Service) StockOverview(ctx context.Context, p core.Principal, campID int, search string, limit int) ([]core.StockRow, error) {
	campID = core.NewPolicy(p).ScopeCampFilter(campID)
	return s.classifier.StockOverview(ctx, campID, search, limit)
}

// ── Alerts ──

func (s *Service) AlertSummary(ctx context.Context, p core.Principal, campID int) (*core.AlertSummary, error) {
	campID = core.NewPolicy(p).ScopeCampFilter(campID)
	return s.classifier.AlertSummary(ctx, campID)
}

func (s *Service) LowStockAlerts(ctx context.Context, p core.Principal, campID, limit int) ([]core.StockAlert, error) {
	campID = core.NewPolicy(p).ScopeCampFilter(campID)
	return s.classifier.LowStock(ctx, campID, limit)
}

func (s *Service) StockoutProjections(ctx context.Context, p core.Principal, campID, horizonDays int) ([]core.StockAlert, error) {
	campID = core.NewPolicy(p).ScopeCampFilter(campID)
	return s.classifier.Projections(ctx, campID, horizonDays)
}

func (s *Service) DeadStockAlerts(ctx context.Context, p core.Principal, campID, minDays int) ([]core.StockAlert, error) {
	campID = core.NewPolicy(p).ScopeCampFilter(campID)
	return s.classifier.DeadStock(ctx, campID, minDays)
}

func (s *Service) ExcessStockAlerts(ctx context.Context, p core.Principal, campID int) ([]core.StockAlert, error) {
	campID = core.NewPolicy(p).ScopeCampFilter(campID)
	return s.classifier.ExcessStock(ctx, campID)
}
