package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Policy holds the unconsumed-order billing rules, loaded from the settings
// store with fail-safe defaults: a missing or unparseable value falls back
// to its default instead of aborting a billing run.
type Policy struct {
	Active          bool
	Percentage      int
	GraceAbsences   int
	FreeCancelHours int
	BillWeekends    bool
	BillHolidays    bool
}

// DefaultPolicy returns the documented fallback values. Billing stays off
// until explicitly enabled; the free-cancellation window is loaded for
// completeness but not consulted by the exemption walk.
func DefaultPolicy() Policy {
	return Policy{
		Active:          false,
		Percentage:      100,
		GraceAbsences:   0,
		FreeCancelHours: 24,
		BillWeekends:    false,
		BillHolidays:    false,
	}
}

// Charge applies the billing percentage to an order amount, rounded to two
// decimals for currency display.
func (p Policy) Charge(amount decimal.Decimal) decimal.Decimal {
	pct := p.Percentage
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return amount.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Round(2)
}

// Outcome tags what the reconciliation walk decided for one order.
type Outcome string

const (
	OutcomeBilled        Outcome = "BILLED"
	OutcomeExemptWeekend Outcome = "EXEMPT_WEEKEND"
	OutcomeExemptHoliday Outcome = "EXEMPT_HOLIDAY"
	OutcomeExemptGrace   Outcome = "EXEMPT_GRACE"
)

// Summary reports one reconciliation run.
type Summary struct {
	RanAt         time.Time       `json:"ran_at"`
	BilledCount   int             `json:"billed_count"`
	ExemptedCount int             `json:"exempted_count"`
	Total         decimal.Decimal `json:"total"`
	Skipped       bool            `json:"skipped,omitempty"`
	SkipReason    string          `json:"skip_reason,omitempty"`
}

// Service runs the daily billing reconciliation over never-consumed past
// orders. It must be idempotent per calendar day and must never change an
// order's status: the BILLED consumption record is the processed marker.
type Service interface {
	ReconcileUnconsumed(ctx context.Context) (Summary, error)
}
