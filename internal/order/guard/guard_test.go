package guard

import (
	"testing"
	"time"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/order/domain"
	"github.com/stretchr/testify/require"
)

var (
	today    = time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)
	pastDay  = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tomorrow = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
)

func TestEnsureCanConsume(t *testing.T) {
	cases := []struct {
		name      string
		status    domain.OrderStatus
		hasRecord bool
		want      error
	}{
		{"pre-ordered", domain.StatusPreOrdered, false, nil},
		{"already consumed", domain.StatusConsumed, false, domain.ErrOrderAlreadyConsumed},
		{"existing record wins", domain.StatusPreOrdered, true, domain.ErrRecordExists},
		{"cancelled", domain.StatusCancelled, false, domain.ErrOrderNotPreOrdered},
		{"not retrieved", domain.StatusNotRetrieved, false, domain.ErrOrderNotPreOrdered},
		{"unavailable", domain.StatusUnavailable, false, domain.ErrOrderNotPreOrdered},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := EnsureCanConsume(tc.status, tc.hasRecord)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEnsureCanMarkNotRetrieved(t *testing.T) {
	require.NoError(t, EnsureCanMarkNotRetrieved(domain.StatusPreOrdered, today, today))

	require.ErrorIs(t,
		EnsureCanMarkNotRetrieved(domain.StatusCancelled, today, today),
		domain.ErrOrderTerminal)
	require.ErrorIs(t,
		EnsureCanMarkNotRetrieved(domain.StatusConsumed, today, today),
		domain.ErrOrderTerminal)
	require.ErrorIs(t,
		EnsureCanMarkNotRetrieved(domain.StatusPreOrdered, tomorrow, today),
		domain.ErrNotConsumptionDay)
	require.ErrorIs(t,
		EnsureCanMarkNotRetrieved(domain.StatusPreOrdered, pastDay, today),
		domain.ErrNotConsumptionDay)
}

func TestEnsureBillable(t *testing.T) {
	require.NoError(t, EnsureBillable(domain.StatusPreOrdered, domain.ClientInternal, false, pastDay, today))
	require.NoError(t, EnsureBillable(domain.StatusConsumed, domain.ClientInternal, false, pastDay, today))

	require.ErrorIs(t,
		EnsureBillable(domain.StatusPreOrdered, domain.ClientInternal, true, pastDay, today),
		domain.ErrRecordExists)
	require.ErrorIs(t,
		EnsureBillable(domain.StatusPreOrdered, domain.ClientVisitor, false, pastDay, today),
		domain.ErrNotBillable)
	require.ErrorIs(t,
		EnsureBillable(domain.StatusCancelled, domain.ClientInternal, false, pastDay, today),
		domain.ErrNotBillable)
	// Same-day orders are not yet billable: only strictly past dates.
	require.ErrorIs(t,
		EnsureBillable(domain.StatusPreOrdered, domain.ClientInternal, false, today, today),
		domain.ErrNotBillable)
}
