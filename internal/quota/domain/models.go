package domain

import (
	"context"
	"errors"
	"time"

	orderdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/order/domain"
	"github.com/bwmarrin/snowflake"
)

var (
	ErrGroupNotFound  = errors.New("group_not_found")
	ErrQuotaExhausted = errors.New("quota_exhausted")
	ErrInvalidPeriod  = errors.New("invalid_service_period")
)

// Group is an external client category with its own daily meal allowances.
type Group struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Name         string       `gorm:"not null"`
	Code         string       `gorm:"uniqueIndex;not null"`
	DayQuota     int          `gorm:"not null;default:0"`
	NightQuota   int          `gorm:"not null;default:0"`
	StandardOnly bool         `gorm:"not null;default:false"`
	Deleted      bool         `gorm:"not null;default:false"`
	CreatedAt    time.Time    `gorm:"not null"`
	UpdatedAt    time.Time    `gorm:"not null"`
}

func (Group) TableName() string { return "groups" }

// DailyQuota tracks consumed meal slots for one group on one date.
// Uniqueness on (group, date); rows are created on demand from the group's
// default capacities.
type DailyQuota struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	GroupID       snowflake.ID `gorm:"not null;uniqueIndex:ux_daily_quota,priority:1"`
	Date          time.Time    `gorm:"not null;uniqueIndex:ux_daily_quota,priority:2"`
	DayCapacity   int          `gorm:"not null;default:0"`
	NightCapacity int          `gorm:"not null;default:0"`
	DayConsumed   int          `gorm:"not null;default:0"`
	NightConsumed int          `gorm:"not null;default:0"`
	StandardOnly  bool         `gorm:"not null;default:false"`
	CreatedAt     time.Time    `gorm:"not null"`
	UpdatedAt     time.Time    `gorm:"not null"`
}

func (DailyQuota) TableName() string { return "daily_quotas" }

// Remaining is capacity minus consumed for the period, floored at zero.
func (q DailyQuota) Remaining(period orderdomain.ServicePeriod) int {
	var remaining int
	switch period {
	case orderdomain.PeriodNight:
		remaining = q.NightCapacity - q.NightConsumed
	default:
		remaining = q.DayCapacity - q.DayConsumed
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Service is the quota ledger consulted on order creation and cancellation.
// The standard-only restriction is surfaced on the quota row; enforcing it
// against the chosen formula is the order-creation flow's job.
type Service interface {
	GetOrCreate(ctx context.Context, groupID snowflake.ID, date time.Time) (DailyQuota, error)
	TryConsume(ctx context.Context, groupID snowflake.ID, date time.Time, period orderdomain.ServicePeriod, qty int) error
	Release(ctx context.Context, groupID snowflake.ID, date time.Time, period orderdomain.ServicePeriod, qty int) error
}
