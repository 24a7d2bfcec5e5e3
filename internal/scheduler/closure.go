package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/notification"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/order/domain"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/scheduler/guard"
	settingsdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/settings/domain"
	"go.uber.org/zap"
)

const (
	defaultClosureWeekday = time.Friday
	defaultClosureHour    = 12
)

// closureCutoff is the weekly cutoff after which next week's orders are
// considered locked.
type closureCutoff struct {
	Weekday time.Weekday
	Hour    int
}

type closurePayload struct {
	RanAt       time.Time `json:"ran_at"`
	WindowStart string    `json:"window_start"`
	WindowEnd   string    `json:"window_end"`
	OrderCount  int64     `json:"order_count"`
}

// ClosureJob locks next week's Mon-Fri orders once the configured cutoff has
// passed. Locking does not touch order rows: the visible effect is the daily
// marker and the counted log line, which downstream surfaces read to refuse
// further edits.
func (s *Scheduler) ClosureJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	now := s.clock.Now()

	cutoff := s.readClosureCutoff(ctx)
	if !isBlockingTime(now, cutoff) {
		return nil
	}

	done, err := s.guard.HasRunToday(ctx, guard.KeyClosureDone)
	if err != nil {
		s.logSchedulerError(run, "closure.guard.failed", err)
		return err
	}
	if done {
		return nil
	}

	windowStart, windowEnd := nextWeekWindow(now)

	var count int64
	err = s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM orders
		 WHERE deleted = ? AND status = ?
		   AND consumption_date >= ? AND consumption_date < ?`,
		false, domain.StatusPreOrdered, windowStart, windowEnd,
	).Scan(&count).Error
	if err != nil {
		s.logSchedulerError(run, "closure.count.failed", err)
		if markErr := s.guard.MarkError(ctx, guard.KeyClosureError, err); markErr != nil {
			s.log.Error("closure error marker write failed", zap.Error(markErr))
		}
		return err
	}

	payload, _ := json.Marshal(closurePayload{
		RanAt:       now,
		WindowStart: windowStart.Format("2006-01-02"),
		WindowEnd:   windowEnd.Format("2006-01-02"),
		OrderCount:  count,
	})
	if err := s.guard.MarkRanToday(ctx, nil, guard.KeyClosureDone, string(payload)); err != nil {
		s.logSchedulerError(run, "closure.marker.failed", err)
		if markErr := s.guard.MarkError(ctx, guard.KeyClosureError, err); markErr != nil {
			s.log.Error("closure error marker write failed", zap.Error(markErr))
		}
		return err
	}

	run.AddProcessed(int(count))
	s.log.Info("closure.completed",
		zap.String("run_id", runID(run)),
		zap.Time("window_start", windowStart),
		zap.Time("window_end", windowEnd),
		zap.Int64("locked_orders", count),
	)
	s.emitEvent(ctx, notification.Event{
		Job:            JobClosure,
		RunID:          runID(run),
		OccurredAt:     now,
		ProcessedCount: int(count),
	})
	return nil
}

// readClosureCutoff loads the cutoff weekday and hour. Missing or
// unparseable settings fall back to Friday 12:00 so the weekly lock still
// happens on a misconfigured deployment.
func (s *Scheduler) readClosureCutoff(ctx context.Context) closureCutoff {
	cutoff := closureCutoff{Weekday: defaultClosureWeekday, Hour: defaultClosureHour}

	raw, err := s.settings.Get(ctx, settingsdomain.KeyClosureWeekday)
	switch {
	case err == nil:
		if wd, parseErr := parseWeekday(raw); parseErr == nil {
			cutoff.Weekday = wd
		} else {
			s.log.Warn("invalid closure weekday setting, using default",
				zap.String("value", raw))
		}
	case !errors.Is(err, settingsdomain.ErrNotFound):
		s.log.Warn("closure weekday setting unreadable, using default", zap.Error(err))
	}

	raw, err = s.settings.Get(ctx, settingsdomain.KeyClosureHour)
	switch {
	case err == nil:
		if hour, parseErr := strconv.Atoi(strings.TrimSpace(raw)); parseErr == nil && hour >= 0 && hour <= 23 {
			cutoff.Hour = hour
		} else {
			s.log.Warn("invalid closure hour setting, using default",
				zap.String("value", raw))
		}
	case !errors.Is(err, settingsdomain.ErrNotFound):
		s.log.Warn("closure hour setting unreadable, using default", zap.Error(err))
	}

	return cutoff
}

var weekdayNames = map[string]time.Weekday{
	"LUNDI":     time.Monday,
	"MARDI":     time.Tuesday,
	"MERCREDI":  time.Wednesday,
	"JEUDI":     time.Thursday,
	"VENDREDI":  time.Friday,
	"SAMEDI":    time.Saturday,
	"DIMANCHE":  time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
	"SUNDAY":    time.Sunday,
}

func parseWeekday(raw string) (time.Weekday, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if wd, ok := weekdayNames[name]; ok {
		return wd, nil
	}
	// Numeric form, Monday-based 1..7.
	if n, err := strconv.Atoi(name); err == nil && n >= 1 && n <= 7 {
		return time.Weekday(n % 7), nil
	}
	return time.Sunday, errors.New("unknown_weekday")
}

// mondayIndex maps a weekday onto a Monday-started week, Monday=0..Sunday=6.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// isBlockingTime reports whether the weekly cutoff has passed: exactly on the
// cutoff weekday at or after the cutoff hour, or any later weekday of the
// same Monday-started week.
func isBlockingTime(now time.Time, cutoff closureCutoff) bool {
	nowIdx := mondayIndex(now.Weekday())
	cutoffIdx := mondayIndex(cutoff.Weekday)
	if nowIdx > cutoffIdx {
		return true
	}
	return nowIdx == cutoffIdx && now.Hour() >= cutoff.Hour
}

// nextWeekWindow returns [next Monday, next Saturday) in UTC days, the Mon-Fri
// range the closure locks.
func nextWeekWindow(now time.Time) (time.Time, time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	nextMonday := today.AddDate(0, 0, 7-mondayIndex(now.Weekday()))
	return nextMonday, nextMonday.AddDate(0, 0, 5)
}
