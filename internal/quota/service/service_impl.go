package service

import (
	"context"
	"errors"
	"time"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/clock"
	orderdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/order/domain"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/quota/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("quota"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *service) GetOrCreate(ctx context.Context, groupID snowflake.ID, date time.Time) (domain.DailyQuota, error) {
	date = truncateDay(date)
	var quota domain.DailyQuota

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("group_id = ? AND date = ?", groupID, date).First(&quota).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var group domain.Group
		err = tx.Where("id = ? AND deleted = ?", groupID, false).First(&group).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrGroupNotFound
		}
		if err != nil {
			return err
		}

		now := s.clock.Now()
		quota = domain.DailyQuota{
			ID:            s.genID.Generate(),
			GroupID:       groupID,
			Date:          date,
			DayCapacity:   group.DayQuota,
			NightCapacity: group.NightQuota,
			StandardOnly:  group.StandardOnly,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.Create(&quota).Error
	})
	if err != nil {
		return domain.DailyQuota{}, err
	}
	return quota, nil
}

// TryConsume atomically checks remaining capacity and increments the period
// counter. The conditional UPDATE is the atomicity guarantee; RowsAffected
// zero means the quota was exhausted (or the row raced away).
func (s *service) TryConsume(ctx context.Context, groupID snowflake.ID, date time.Time, period orderdomain.ServicePeriod, qty int) error {
	column, err := consumedColumn(period)
	if err != nil {
		return err
	}
	capacity := "day_capacity"
	if period == orderdomain.PeriodNight {
		capacity = "night_capacity"
	}

	if _, err := s.GetOrCreate(ctx, groupID, date); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Exec(
		`UPDATE daily_quotas
		 SET `+column+` = `+column+` + ?, updated_at = ?
		 WHERE group_id = ? AND date = ? AND `+capacity+` - `+column+` >= ?`,
		qty, s.clock.Now(), groupID, truncateDay(date), qty,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrQuotaExhausted
	}
	return nil
}

// Release returns slots to the ledger when an order is cancelled. Consumed
// counters never go below zero.
func (s *service) Release(ctx context.Context, groupID snowflake.ID, date time.Time, period orderdomain.ServicePeriod, qty int) error {
	column, err := consumedColumn(period)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Exec(
		`UPDATE daily_quotas
		 SET `+column+` = CASE WHEN `+column+` >= ? THEN `+column+` - ? ELSE 0 END,
		     updated_at = ?
		 WHERE group_id = ? AND date = ?`,
		qty, qty, s.clock.Now(), groupID, truncateDay(date),
	).Error
}

func consumedColumn(period orderdomain.ServicePeriod) (string, error) {
	switch period {
	case orderdomain.PeriodDay:
		return "day_consumed", nil
	case orderdomain.PeriodNight:
		return "night_consumed", nil
	default:
		return "", domain.ErrInvalidPeriod
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
