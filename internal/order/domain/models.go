package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status of a meal order. PRE_ORDERED is the
// initial status; every other status is terminal for automatic transitions.
type OrderStatus string

const (
	StatusPreOrdered   OrderStatus = "PRE_ORDERED"
	StatusConsumed     OrderStatus = "CONSUMED"
	StatusNotRetrieved OrderStatus = "NOT_RETRIEVED"
	StatusCancelled    OrderStatus = "CANCELLED"
	StatusUnavailable  OrderStatus = "UNAVAILABLE"
)

// IsTerminal reports whether automatic transitions away from the status are
// forbidden. Manual admin overrides are outside this core.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusConsumed, StatusNotRetrieved, StatusCancelled, StatusUnavailable:
		return true
	}
	return false
}

// ServicePeriod is the meal service an order belongs to.
type ServicePeriod string

const (
	PeriodDay   ServicePeriod = "DAY"
	PeriodNight ServicePeriod = "NIGHT"
)

// ClientType distinguishes who an order was placed for. Only INTERNAL
// orders are in scope for unconsumed-order billing.
type ClientType string

const (
	ClientInternal ClientType = "INTERNAL"
	ClientGroup    ClientType = "GROUP"
	ClientVisitor  ClientType = "VISITOR"
)

// RecordKind tags a consumption record as either a physical redemption or a
// billing marker for an order that was never picked up.
type RecordKind string

const (
	RecordPhysical RecordKind = "PHYSICAL"
	RecordBilled   RecordKind = "BILLED"
)

// BilledReason is the reason stamped on billing-marker records.
const BilledReason = "NOT RETRIEVED"

var (
	ErrOrderNotFound        = errors.New("order_not_found")
	ErrOrderNotPreOrdered   = errors.New("order_not_pre_ordered")
	ErrOrderAlreadyConsumed = errors.New("order_already_consumed")
	ErrOrderTerminal        = errors.New("order_status_terminal")
	ErrRecordExists         = errors.New("consumption_record_exists")
	ErrNotConsumptionDay    = errors.New("order_not_for_today")
	ErrNotBillable          = errors.New("order_not_billable")
)

// Order is a meal order for a given consumption date and service period.
type Order struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	ConsumptionDate time.Time       `gorm:"not null;index"`
	Status          OrderStatus     `gorm:"type:text;not null;default:'PRE_ORDERED';index"`
	Period          ServicePeriod   `gorm:"type:text;not null;default:'DAY'"`
	Quantity        int             `gorm:"not null;default:1"`
	ClientType      ClientType      `gorm:"type:text;not null;index"`
	FormulaID       snowflake.ID    `gorm:"index"`
	FormulaName     string          `gorm:""`
	UserEmail       string          `gorm:"index"`
	GroupID         *snowflake.ID   `gorm:"index"`
	VisitorName     string          `gorm:""`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CancelReason    string          `gorm:""`
	Deleted         bool            `gorm:"not null;default:false"`
	CreatedBy       string          `gorm:""`
	UpdatedBy       string          `gorm:""`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// ConsumptionRecord marks an order as redeemed, either physically (scan or
// auto-confirmation, Kind=PHYSICAL with a location) or financially
// (Kind=BILLED with the charged amount and reason). At most one non-deleted
// record may exist per order; its presence makes the order immutable with
// respect to billing re-processing.
type ConsumptionRecord struct {
	ID        snowflake.ID     `gorm:"primaryKey"`
	OrderID   snowflake.ID     `gorm:"not null;uniqueIndex:ux_consumption_order,where:deleted = false"`
	UserEmail string           `gorm:"index"`
	Date      time.Time        `gorm:"not null"`
	Type      string           `gorm:""`
	Quantity  int              `gorm:"not null;default:1"`
	Kind      RecordKind       `gorm:"type:text;not null"`
	Location  string           `gorm:""`
	Amount    *decimal.Decimal `gorm:"type:numeric(12,2)"`
	Reason    string           `gorm:""`
	Deleted   bool             `gorm:"not null;default:false"`
	CreatedBy string           `gorm:""`
	CreatedAt time.Time        `gorm:"not null"`
}

func (ConsumptionRecord) TableName() string { return "consumption_records" }
