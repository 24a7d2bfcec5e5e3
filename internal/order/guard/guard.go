package guard

import (
	"time"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/order/domain"
)

// EnsureCanConsume checks that an order may transition to CONSUMED. Only a
// PRE_ORDERED order with no existing consumption record qualifies.
func EnsureCanConsume(status domain.OrderStatus, hasRecord bool) error {
	if hasRecord {
		return domain.ErrRecordExists
	}
	if status == domain.StatusConsumed {
		return domain.ErrOrderAlreadyConsumed
	}
	if status != domain.StatusPreOrdered {
		return domain.ErrOrderNotPreOrdered
	}
	return nil
}

// EnsureCanMarkNotRetrieved checks the nightly sweep transition: only
// PRE_ORDERED orders whose consumption date is today may be flipped.
func EnsureCanMarkNotRetrieved(status domain.OrderStatus, consumptionDate, today time.Time) error {
	if status.IsTerminal() {
		return domain.ErrOrderTerminal
	}
	if status != domain.StatusPreOrdered {
		return domain.ErrOrderNotPreOrdered
	}
	if !sameDay(consumptionDate, today) {
		return domain.ErrNotConsumptionDay
	}
	return nil
}

// EnsureBillable checks eligibility for unconsumed-order billing: an
// internal-user order strictly in the past, PRE_ORDERED or CONSUMED by
// status, with no consumption record. Billing never changes the order
// status; a BILLED record is what marks it processed.
func EnsureBillable(status domain.OrderStatus, clientType domain.ClientType, hasRecord bool, consumptionDate, today time.Time) error {
	if hasRecord {
		return domain.ErrRecordExists
	}
	if clientType != domain.ClientInternal {
		return domain.ErrNotBillable
	}
	if status != domain.StatusPreOrdered && status != domain.StatusConsumed {
		return domain.ErrNotBillable
	}
	if !truncateDay(consumptionDate).Before(truncateDay(today)) {
		return domain.ErrNotBillable
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	return truncateDay(a).Equal(truncateDay(b))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
