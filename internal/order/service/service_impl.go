package service

import (
	"context"
	"strconv"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/clock"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/order/domain"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/order/guard"
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
		log:   p.Log.Named("order"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// Consume transitions a PRE_ORDERED order to CONSUMED and inserts exactly
// one physical consumption record, in one transaction. The record existence
// check and the status-conditioned UPDATE together keep the operation safe
// against concurrent consumption of the same order.
func (s *service) Consume(ctx context.Context, req domain.ConsumeRequest) error {
	orderID, err := strconv.ParseInt(req.OrderID, 10, 64)
	if err != nil {
		return domain.ErrOrderNotFound
	}
	now := s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order domain.Order
		if err := tx.Raw(
			`SELECT * FROM orders WHERE id = ? AND deleted = ? LIMIT 1`,
			orderID, false,
		).Scan(&order).Error; err != nil {
			return err
		}
		if order.ID == 0 {
			return domain.ErrOrderNotFound
		}

		var recordCount int64
		if err := tx.Raw(
			`SELECT COUNT(1) FROM consumption_records WHERE order_id = ? AND deleted = ?`,
			order.ID, false,
		).Scan(&recordCount).Error; err != nil {
			return err
		}

		if err := guard.EnsureCanConsume(order.Status, recordCount > 0); err != nil {
			return err
		}

		result := tx.Exec(
			`UPDATE orders
			 SET status = ?, updated_by = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			domain.StatusConsumed, req.Actor, now,
			order.ID, domain.StatusPreOrdered,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrOrderNotPreOrdered
		}

		return tx.Create(&domain.ConsumptionRecord{
			ID:        s.genID.Generate(),
			OrderID:   order.ID,
			UserEmail: order.UserEmail,
			Date:      now,
			Type:      order.FormulaName,
			Quantity:  order.Quantity,
			Kind:      domain.RecordPhysical,
			Location:  req.Location,
			CreatedBy: req.Actor,
			CreatedAt: now,
		}).Error
	})
	if err != nil {
		return err
	}

	s.log.Info("order.consumed",
		zap.String("order_id", req.OrderID),
		zap.String("location", req.Location),
		zap.String("actor", req.Actor),
	)
	return nil
}
