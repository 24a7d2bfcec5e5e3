package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/notification"
	obsmetrics "github.com/MamadouKernel/CantineObeli-sub002/internal/observability/metrics"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/order/domain"
	orderguard "github.com/MamadouKernel/CantineObeli-sub002/internal/order/guard"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/scheduler/guard"
	settingsdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/settings/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweepActor = "scheduler"

type sweepPayload struct {
	RanAt         time.Time `json:"ran_at"`
	Mode          string    `json:"mode"`
	ProcessedRows int64     `json:"processed_rows"`
	ErrorCount    int       `json:"error_count,omitempty"`
}

// StatusSweepJob runs the end-of-day sweep in the last minute of the day.
// Default mode flips today's remaining PRE_ORDERED orders to NOT_RETRIEVED;
// with auto-confirmation enabled it consumes them instead. The success marker
// is durable, so a restart between 23:59 and midnight cannot double-sweep.
func (s *Scheduler) StatusSweepJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	now := s.clock.Now()

	if !shouldSweep(now) {
		return nil
	}

	done, err := s.guard.HasRunToday(ctx, guard.KeySweepDone)
	if err != nil {
		s.logSchedulerError(run, "sweep.guard.failed", err)
		return err
	}
	if done {
		return nil
	}

	var (
		processed int64
		errCount  int
		mode      = "not_retrieved"
	)
	if s.autoConfirmEnabled(ctx) {
		mode = "auto_confirm"
		processed, errCount, err = s.autoConfirmToday(ctx, now)
	} else {
		processed, err = s.markNotRetrieved(ctx, now)
	}
	if err != nil {
		s.logSchedulerError(run, "sweep.failed", err, zap.String("mode", mode))
		return err
	}

	run.AddProcessed(int(processed))
	obsmetrics.Scheduler().AddOrdersSwept(int(processed))
	s.log.Info("sweep.completed",
		zap.String("run_id", runID(run)),
		zap.String("mode", mode),
		zap.Int64("processed_rows", processed),
		zap.Int("error_count", errCount),
	)
	s.emitEvent(ctx, notification.Event{
		Job:            JobSweep,
		RunID:          runID(run),
		OccurredAt:     now,
		ProcessedCount: int(processed),
	})
	return nil
}

// shouldSweep gates the sweep to the last minute of the day. The one minute
// poll guarantees at least one tick lands in the window.
func shouldSweep(now time.Time) bool {
	return now.Hour() == 23 && now.Minute() >= 59
}

func (s *Scheduler) autoConfirmEnabled(ctx context.Context) bool {
	raw, err := s.settings.Get(ctx, settingsdomain.KeyAutoConfirmation)
	if err != nil {
		if !errors.Is(err, settingsdomain.ErrNotFound) {
			s.log.Warn("auto-confirmation setting unreadable, sweeping to NOT_RETRIEVED", zap.Error(err))
		}
		return false
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "oui", "on":
		return true
	}
	return false
}

// markNotRetrieved flips today's leftover PRE_ORDERED orders. Each candidate
// passes through the state-machine guard before the update; the re-checked
// status filter keeps the update idempotent and the daily marker commits in
// the same transaction as the sweep itself.
func (s *Scheduler) markNotRetrieved(ctx context.Context, now time.Time) (int64, error) {
	dayStart, dayEnd := dayWindow(now)

	type sweepRow struct {
		ID              int64
		Status          domain.OrderStatus
		ConsumptionDate time.Time
	}
	var rows []sweepRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, status, consumption_date FROM orders
		 WHERE deleted = ? AND status = ?
		   AND consumption_date >= ? AND consumption_date < ?`,
		false, domain.StatusPreOrdered, dayStart, dayEnd,
	).Scan(&rows).Error
	if err != nil {
		return 0, err
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if err := orderguard.EnsureCanMarkNotRetrieved(row.Status, row.ConsumptionDate, now); err != nil {
			s.log.Warn("sweep candidate rejected",
				zap.Int64("order_id", row.ID),
				zap.Error(err),
			)
			continue
		}
		ids = append(ids, row.ID)
	}

	var affected int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ids) > 0 {
			res := tx.Exec(
				`UPDATE orders
				 SET status = ?, updated_by = ?, updated_at = ?
				 WHERE id IN ? AND status = ?`,
				domain.StatusNotRetrieved, sweepActor, now,
				ids, domain.StatusPreOrdered,
			)
			if res.Error != nil {
				return res.Error
			}
			affected = res.RowsAffected
		}

		payload, _ := json.Marshal(sweepPayload{RanAt: now, Mode: "not_retrieved", ProcessedRows: affected})
		return s.guard.MarkRanToday(ctx, tx, guard.KeySweepDone, string(payload))
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// autoConfirmToday consumes today's leftover PRE_ORDERED orders one by one
// through the regular consumption flow. A single failed order is logged and
// skipped; the sweep only fails when no order could be processed at all.
func (s *Scheduler) autoConfirmToday(ctx context.Context, now time.Time) (int64, int, error) {
	dayStart, dayEnd := dayWindow(now)

	var orderIDs []int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM orders
		 WHERE deleted = ? AND status = ?
		   AND consumption_date >= ? AND consumption_date < ?
		 ORDER BY id`,
		false, domain.StatusPreOrdered, dayStart, dayEnd,
	).Scan(&orderIDs).Error
	if err != nil {
		return 0, 0, err
	}

	var (
		consumed int64
		errCount int
		lastErr  error
	)
	for _, id := range orderIDs {
		req := domain.ConsumeRequest{
			OrderID:  strconv.FormatInt(id, 10),
			Location: "AUTO",
			Actor:    sweepActor,
		}
		if err := s.orderSvc.Consume(ctx, req); err != nil {
			errCount++
			lastErr = err
			s.log.Warn("auto-confirmation failed for order",
				zap.Int64("order_id", id),
				zap.Error(err),
			)
			continue
		}
		consumed++
	}
	if len(orderIDs) > 0 && consumed == 0 && lastErr != nil {
		return 0, errCount, lastErr
	}

	payload, _ := json.Marshal(sweepPayload{
		RanAt: now, Mode: "auto_confirm", ProcessedRows: consumed, ErrorCount: errCount,
	})
	if err := s.guard.MarkRanToday(ctx, nil, guard.KeySweepDone, string(payload)); err != nil {
		return consumed, errCount, err
	}
	return consumed, errCount, nil
}

func dayWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
