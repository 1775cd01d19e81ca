package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the set of user roles the upstream auth gateway can assert.
type Role string

const (
	RoleCampStorekeeper    Role = "camp_storekeeper"
	RoleChef               Role = "chef"
	RoleHousekeeping       Role = "housekeeping"
	RoleCampManager        Role = "camp_manager"
	RoleStoresManager      Role = "stores_manager"
	RoleProcurementOfficer Role = "procurement_officer"
	RoleDirector           Role = "director"
	RoleAdmin              Role = "admin"
)

// CampType distinguishes the central depot from the remote camps it supplies.
type CampType string

const (
	CampTypeHeadOffice CampType = "head_office"
	CampTypeCamp       CampType = "camp"
)

// HOCampCode is the code of the central depot goods are dispatched from.
const HOCampCode = "HO"

type Camp struct {
	ID       int      `json:"id"`
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Type     CampType `json:"type"`
	IsActive bool     `json:"is_active"`
}

type ItemGroup struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type CostCenter struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Item is catalog reference data. Identity fields are immutable after import;
// the cost fields are maintained by purchasing.
type Item struct {
	ID                int             `json:"id"`
	ItemCode          string          `json:"item_code"`
	Name              string          `json:"name"`
	ItemGroupID       *int            `json:"item_group_id,omitempty"`
	StockUOM          string          `json:"stock_uom"`
	WeightedAvgCost   decimal.Decimal `json:"weighted_avg_cost"`
	LastPurchasePrice decimal.Decimal `json:"last_purchase_price"`
	ABCClass          *string         `json:"abc_class,omitempty"`
	IsCritical        bool            `json:"is_critical"`
	IsPerishable      bool            `json:"is_perishable"`
	StorageType       *string         `json:"storage_type,omitempty"`
	ShelfLifeDays     *int            `json:"shelf_life_days,omitempty"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
}

// StockStatus is the stock-health label on a balance row. The label is
// assigned by the nightly recompute job that also maintains avg_daily_usage
// and days_stock_on_hand; this package only reads it.
type StockStatus string

const (
	StockStatusOut      StockStatus = "out"
	StockStatusCritical StockStatus = "critical"
	StockStatusLow      StockStatus = "low"
	StockStatusOK       StockStatus = "ok"
	StockStatusExcess   StockStatus = "excess"
)

// StockBalance is the running per-(item, camp) position. One row per pair,
// created lazily on first movement, never deleted. current_qty never drops
// below zero. Only the stock ledger mutates these rows.
type StockBalance struct {
	ID                    int                 `json:"id"`
	ItemID                int                 `json:"item_id"`
	CampID                int                 `json:"camp_id"`
	CurrentQty            decimal.Decimal     `json:"current_qty"`
	CurrentValue          decimal.Decimal     `json:"current_value"`
	UnitCost              decimal.Decimal     `json:"unit_cost"`
	ParLevel              decimal.NullDecimal `json:"par_level"`
	MinLevel              decimal.NullDecimal `json:"min_level"`
	MaxLevel              decimal.NullDecimal `json:"max_level"`
	SafetyStock           decimal.NullDecimal `json:"safety_stock"`
	AvgDailyUsage         decimal.NullDecimal `json:"avg_daily_usage"`
	DaysStockOnHand       decimal.NullDecimal `json:"days_stock_on_hand"`
	StockStatus           StockStatus         `json:"stock_status"`
	LastReceiptDate       *time.Time          `json:"last_receipt_date,omitempty"`
	LastIssueDate         *time.Time          `json:"last_issue_date,omitempty"`
	DaysSinceLastMovement *int                `json:"days_since_last_movement,omitempty"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementReceipt     MovementType = "receipt"
	MovementIssue       MovementType = "issue"
	MovementTransferOut MovementType = "transfer_out"
	MovementTransferIn  MovementType = "transfer_in"
	MovementAdjustment  MovementType = "adjustment"
)

// MovementDirection is the sign of a movement against the balance.
type MovementDirection string

const (
	DirectionIn  MovementDirection = "in"
	DirectionOut MovementDirection = "out"
)

// ReferenceType names the document that caused a movement.
type ReferenceType string

const (
	RefDispatch     ReferenceType = "dispatch"
	RefReceipt      ReferenceType = "receipt"
	RefIssueVoucher ReferenceType = "issue_voucher"
	RefAdjustment   ReferenceType = "adjustment"
)

// StockMovement is one immutable ledger entry. balance_after is the camp
// balance as it stood immediately after this mutation, so the audit trail
// reconciles against the balance table entry by entry.
type StockMovement struct {
	ID              int               `json:"id"`
	ItemID          int               `json:"item_id"`
	CampID          int               `json:"camp_id"`
	MovementType    MovementType      `json:"movement_type"`
	Direction       MovementDirection `json:"direction"`
	Quantity        decimal.Decimal   `json:"quantity"`
	UnitCost        decimal.Decimal   `json:"unit_cost"`
	TotalValue      decimal.Decimal   `json:"total_value"`
	BalanceAfter    decimal.Decimal   `json:"balance_after"`
	ReferenceType   ReferenceType     `json:"reference_type"`
	ReferenceID     int               `json:"reference_id"`
	ReferenceNumber string            `json:"reference_number"`
	CreatedBy       int               `json:"created_by"`
	MovementDate    time.Time         `json:"movement_date"`
	CreatedAt       time.Time         `json:"created_at"`
}

// OrderStatus is the order lifecycle.
type OrderStatus string

const (
	OrderDraft          OrderStatus = "draft"
	OrderSubmitted      OrderStatus = "submitted"
	OrderPendingReview  OrderStatus = "pending_review"
	OrderQueried        OrderStatus = "queried"
	OrderStoresApproved OrderStatus = "stores_approved"
	OrderStoresPartial  OrderStatus = "stores_partial"
	OrderStoresRejected OrderStatus = "stores_rejected"
	// OrderProcurementProcessed is set by the procurement system when it
	// buys in stock to cover an order; dispatchable like an approval.
	OrderProcurementProcessed OrderStatus = "procurement_processed"
	OrderDispatching    OrderStatus = "dispatching"
	OrderDispatched     OrderStatus = "dispatched"
	OrderInTransit      OrderStatus = "in_transit"
	// OrderReceived is owned by the reconciliation job that closes orders
	// after receipt; nothing in this package transitions into it.
	OrderReceived OrderStatus = "received"
)

// ValidationStatus is the tri-level verdict on an order line.
type ValidationStatus string

const (
	ValidationClear   ValidationStatus = "clear"
	ValidationReview  ValidationStatus = "review"
	ValidationFlagged ValidationStatus = "flagged"
)

// LineAction is the stores reviewer's decision on an order line.
type LineAction string

const (
	LinePending  LineAction = "pending"
	LineApproved LineAction = "approved"
	LineAdjusted LineAction = "adjusted"
	LineRejected LineAction = "rejected"
)

type Order struct {
	ID               int             `json:"id"`
	OrderNumber      string          `json:"order_number"`
	CampID           int             `json:"camp_id"`
	CampCode         string          `json:"camp_code"`
	CampName         string          `json:"camp_name"`
	Status           OrderStatus     `json:"status"`
	TotalItems       int             `json:"total_items"`
	TotalValue       decimal.Decimal `json:"total_value"`
	FlaggedItems     int             `json:"flagged_items"`
	Notes            *string         `json:"notes,omitempty"`
	CreatedBy        int             `json:"created_by"`
	StoresManagerID  *int            `json:"stores_manager_id,omitempty"`
	StoresReviewedAt *time.Time      `json:"stores_reviewed_at,omitempty"`
	StoresNotes      *string         `json:"stores_notes,omitempty"`
	SubmittedAt      *time.Time      `json:"submitted_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Lines            []OrderLine     `json:"lines,omitempty"`
}

// OrderLine snapshots the stock picture as observed at order creation. The
// *_at_order columns are point-in-time copies, not live reads.
type OrderLine struct {
	ID                 int                 `json:"id"`
	OrderID            int                 `json:"order_id"`
	ItemID             int                 `json:"item_id"`
	ItemCode           string              `json:"item_code"`
	ItemName           string              `json:"item_name"`
	RequestedQty       decimal.Decimal     `json:"requested_qty"`
	CampStockAtOrder   decimal.Decimal     `json:"camp_stock_at_order"`
	HOStockAtOrder     decimal.Decimal     `json:"ho_stock_at_order"`
	ParLevel           decimal.NullDecimal `json:"par_level"`
	AvgDailyUsage      decimal.NullDecimal `json:"avg_daily_usage"`
	EstimatedUnitCost  decimal.Decimal     `json:"estimated_unit_cost"`
	EstimatedLineValue decimal.Decimal     `json:"estimated_line_value"`
	ValidationStatus   ValidationStatus    `json:"validation_status"`
	ValidationNote     *string             `json:"validation_note,omitempty"`
	StoresAction       LineAction          `json:"stores_action"`
	ApprovedQty        decimal.NullDecimal `json:"approved_qty"`
	StoresNote         *string             `json:"stores_note,omitempty"`
}

// OrderQuery is one message on an order's query thread.
type OrderQuery struct {
	ID          int       `json:"id"`
	OrderID     int       `json:"order_id"`
	OrderLineID *int      `json:"order_line_id,omitempty"`
	SenderID    int       `json:"sender_id"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

type DispatchStatus string

const (
	DispatchDispatched DispatchStatus = "dispatched"
	DispatchInTransit  DispatchStatus = "in_transit"
	DispatchDelivered  DispatchStatus = "delivered"
)

type Dispatch struct {
	ID             int             `json:"id"`
	DispatchNumber string          `json:"dispatch_number"`
	OrderID        int             `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	CampID         int             `json:"camp_id"`
	CampCode       string          `json:"camp_code"`
	CampName       string          `json:"camp_name"`
	Status         DispatchStatus  `json:"status"`
	TotalValue     decimal.Decimal `json:"total_value"`
	DispatchedBy   int             `json:"dispatched_by"`
	DispatchDate   time.Time       `json:"dispatch_date"`
	VehicleDetails *string         `json:"vehicle_details,omitempty"`
	DriverName     *string         `json:"driver_name,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Lines          []DispatchLine  `json:"lines,omitempty"`
}

type DispatchLine struct {
	ID            int             `json:"id"`
	DispatchID    int             `json:"dispatch_id"`
	ItemID        int             `json:"item_id"`
	ItemCode      string          `json:"item_code"`
	ItemName      string          `json:"item_name"`
	DispatchedQty decimal.Decimal `json:"dispatched_qty"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptConfirmed ReceiptStatus = "confirmed"
)

// ConditionStatus records the state goods arrived in.
type ConditionStatus string

const (
	ConditionGood    ConditionStatus = "good"
	ConditionDamaged ConditionStatus = "damaged"
	ConditionExpired ConditionStatus = "expired"
)

type Receipt struct {
	ID             int             `json:"id"`
	ReceiptNumber  string          `json:"receipt_number"`
	DispatchID     int             `json:"dispatch_id"`
	DispatchNumber string          `json:"dispatch_number"`
	CampID         int             `json:"camp_id"`
	CampCode       string          `json:"camp_code"`
	CampName       string          `json:"camp_name"`
	Status         ReceiptStatus   `json:"status"`
	TotalValue     decimal.Decimal `json:"total_value"`
	ReceivedBy     *int            `json:"received_by,omitempty"`
	ReceivedDate   *time.Time      `json:"received_date,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Lines          []ReceiptLine   `json:"lines,omitempty"`
}

// ReceiptLine tracks what was expected off the dispatch against what the camp
// actually accepted. accepted_qty, not received_qty, is what the ledger posts.
type ReceiptLine struct {
	ID              int                 `json:"id"`
	ReceiptID       int                 `json:"receipt_id"`
	ItemID          int                 `json:"item_id"`
	ItemCode        string              `json:"item_code"`
	ItemName        string              `json:"item_name"`
	ExpectedQty     decimal.Decimal     `json:"expected_qty"`
	ReceivedQty     decimal.NullDecimal `json:"received_qty"`
	AcceptedQty     decimal.NullDecimal `json:"accepted_qty"`
	RejectedQty     decimal.NullDecimal `json:"rejected_qty"`
	UnitCost        decimal.Decimal     `json:"unit_cost"`
	TotalValue      decimal.Decimal     `json:"total_value"`
	ConditionStatus ConditionStatus     `json:"condition_status"`
	Notes           *string             `json:"notes,omitempty"`
}

// IssueType is where consumption out of camp stock went.
type IssueType string

const (
	IssueKitchen IssueType = "kitchen"
	IssueBar     IssueType = "bar"
	IssueRooms   IssueType = "rooms"
	IssueStaff   IssueType = "staff"
	IssueWaste   IssueType = "waste"
	IssueOther   IssueType = "other"
)

// IssueVoucher records consumption out of camp stock. Vouchers are created
// already confirmed: stock is deducted as the voucher is written.
type IssueVoucher struct {
	ID             int                `json:"id"`
	VoucherNumber  string             `json:"voucher_number"`
	CampID         int                `json:"camp_id"`
	CampCode       string             `json:"camp_code"`
	CampName       string             `json:"camp_name"`
	IssueType      IssueType          `json:"issue_type"`
	CostCenterID   int                `json:"cost_center_id"`
	CostCenterName string             `json:"cost_center_name"`
	IssueDate      time.Time          `json:"issue_date"`
	IssuedBy       int                `json:"issued_by"`
	ReceivedByName *string            `json:"received_by_name,omitempty"`
	Department     *string            `json:"department,omitempty"`
	RoomNumbers    *string            `json:"room_numbers,omitempty"`
	GuestCount     *int               `json:"guest_count,omitempty"`
	TotalValue     decimal.Decimal    `json:"total_value"`
	Status         string             `json:"status"`
	Notes          *string            `json:"notes,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	Lines          []IssueVoucherLine `json:"lines,omitempty"`
}

type IssueVoucherLine struct {
	ID         int             `json:"id"`
	VoucherID  int             `json:"voucher_id"`
	ItemID     int             `json:"item_id"`
	ItemCode   string          `json:"item_code"`
	ItemName   string          `json:"item_name"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	TotalValue decimal.Decimal `json:"total_value"`
	Notes      *string         `json:"notes,omitempty"`
}

// NumberSequence is the counter row behind document numbering; the sequencer
// is its sole writer.
type NumberSequence struct {
	Prefix       string `json:"prefix"`
	CampCode     string `json:"camp_code"`
	CurrentYear  int    `json:"current_year"`
	CurrentMonth int    `json:"current_month"`
	LastNumber   int64  `json:"last_number"`
}
