package domain

import (
	"testing"

	orderdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/order/domain"
	"github.com/stretchr/testify/require"
)

func TestRemainingFloorsAtZero(t *testing.T) {
	quota := DailyQuota{
		DayCapacity:   5,
		DayConsumed:   8,
		NightCapacity: 3,
		NightConsumed: 1,
	}
	require.Equal(t, 0, quota.Remaining(orderdomain.PeriodDay))
	require.Equal(t, 2, quota.Remaining(orderdomain.PeriodNight))
}
