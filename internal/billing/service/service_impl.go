package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/billing/domain"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/clock"
	obsmetrics "github.com/MamadouKernel/CantineObeli-sub002/internal/observability/metrics"
	orderdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/order/domain"
	orderguard "github.com/MamadouKernel/CantineObeli-sub002/internal/order/guard"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/scheduler/guard"
	settingsdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/settings/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Settings settingsdomain.Store
	Guard    *guard.Guard
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	settings settingsdomain.Store
	guard    *guard.Guard
}

func New(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("billing"),
		genID:    p.GenID,
		clock:    p.Clock,
		settings: p.Settings,
		guard:    p.Guard,
	}
}

// workOrder is the slim projection the reconciler claims per run.
type workOrder struct {
	ID              snowflake.ID
	ConsumptionDate time.Time
	UserEmail       string
	FormulaName     string
	Quantity        int
	Status          orderdomain.OrderStatus
	Amount          decimal.Decimal
}

type decision struct {
	order   workOrder
	outcome domain.Outcome
	charge  decimal.Decimal
}

// ReconcileUnconsumed finds internal-user orders with a past consumption
// date and no consumption record, applies exemption rules per user in
// consumption-date order, charges the rest, and writes one BILLED record per
// charged order plus the daily idempotency marker — all in one transaction.
// Order status is never touched: billing and physical status are orthogonal.
func (s *service) ReconcileUnconsumed(ctx context.Context) (domain.Summary, error) {
	now := s.clock.Now()
	summary := domain.Summary{RanAt: now, Total: decimal.Zero}

	policy := domain.LoadPolicy(ctx, s.settings)
	if !policy.Active {
		summary.Skipped = true
		summary.SkipReason = "billing_disabled"
		return summary, nil
	}

	ran, err := s.guard.HasRunToday(ctx, guard.KeyBillingDone)
	if err != nil {
		return summary, err
	}
	if ran {
		summary.Skipped = true
		summary.SkipReason = "already_ran_today"
		return summary, nil
	}

	orders, err := s.fetchCandidates(ctx, now)
	if err != nil {
		return summary, err
	}

	// The query preselects candidates; the state-machine guard re-checks
	// every row before a record is written.
	eligible := make([]workOrder, 0, len(orders))
	for _, o := range orders {
		if err := orderguard.EnsureBillable(o.Status, orderdomain.ClientInternal, false, o.ConsumptionDate, now); err != nil {
			s.log.Warn("billing candidate rejected",
				zap.Int64("order_id", int64(o.ID)),
				zap.Error(err),
			)
			continue
		}
		eligible = append(eligible, o)
	}

	decisions := walk(eligible, policy)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range decisions {
			if d.outcome == domain.OutcomeBilled {
				amount := d.charge
				if err := tx.Create(&orderdomain.ConsumptionRecord{
					ID:        s.genID.Generate(),
					OrderID:   d.order.ID,
					UserEmail: d.order.UserEmail,
					Date:      now,
					Type:      recordType(d.order.FormulaName),
					Quantity:  d.order.Quantity,
					Kind:      orderdomain.RecordBilled,
					Amount:    &amount,
					Reason:    orderdomain.BilledReason,
					CreatedBy: "scheduler",
					CreatedAt: now,
				}).Error; err != nil {
					return err
				}
				summary.BilledCount++
				summary.Total = summary.Total.Add(amount)
				continue
			}

			// Exempted orders get no record so they stay visible to
			// future runs; only the audit stamp moves.
			if err := tx.Exec(
				`UPDATE orders SET updated_by = ?, updated_at = ? WHERE id = ?`,
				"scheduler", now, d.order.ID,
			).Error; err != nil {
				return err
			}
			summary.ExemptedCount++
		}

		payload, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		return s.guard.MarkRanToday(ctx, tx, guard.KeyBillingDone, string(payload))
	})
	if err != nil {
		summary.BilledCount = 0
		summary.ExemptedCount = 0
		summary.Total = decimal.Zero
		if markErr := s.guard.MarkError(ctx, guard.KeyBillingError, err); markErr != nil {
			s.log.Warn("billing error marker write failed", zap.Error(markErr))
		}
		return summary, err
	}

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddOrdersBilled(summary.BilledCount)
	schedMetrics.AddOrdersExempted(summary.ExemptedCount)
	total, _ := summary.Total.Float64()
	schedMetrics.AddBilledAmount(total)
	schedMetrics.IncMarkerWritten("billing", "done")

	s.log.Info("billing.reconciled",
		zap.Int("billed_count", summary.BilledCount),
		zap.Int("exempted_count", summary.ExemptedCount),
		zap.String("total", summary.Total.StringFixed(2)),
	)
	return summary, nil
}

func (s *service) fetchCandidates(ctx context.Context, now time.Time) ([]workOrder, error) {
	today := truncateDay(now)
	var orders []workOrder
	err := s.db.WithContext(ctx).Raw(
		`SELECT o.id, o.consumption_date, o.user_email, o.formula_name, o.quantity, o.status, o.amount
		 FROM orders o
		 WHERE o.deleted = ?
		   AND o.consumption_date < ?
		   AND o.status IN (?, ?)
		   AND o.client_type = ?
		   AND NOT EXISTS (
			   SELECT 1 FROM consumption_records r
			   WHERE r.order_id = o.id AND r.deleted = ?
		   )
		 ORDER BY o.user_email ASC, o.consumption_date ASC, o.id ASC`,
		false,
		today,
		orderdomain.StatusPreOrdered, orderdomain.StatusConsumed,
		orderdomain.ClientInternal,
		false,
	).Scan(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// walk applies the exemption rules per user over orders already sorted by
// (user, consumption date). Priority is strict: weekend, then holiday, then
// grace allowance, then charge. Weekend and holiday exemptions never consume
// grace absences.
func walk(orders []workOrder, policy domain.Policy) []decision {
	decisions := make([]decision, 0, len(orders))
	graceLeft := 0
	currentUser := ""

	for _, o := range orders {
		if o.UserEmail != currentUser {
			currentUser = o.UserEmail
			graceLeft = policy.GraceAbsences
		}

		switch {
		case domain.IsWeekend(o.ConsumptionDate) && !policy.BillWeekends:
			decisions = append(decisions, decision{order: o, outcome: domain.OutcomeExemptWeekend})
		case domain.IsHoliday(o.ConsumptionDate) && !policy.BillHolidays:
			decisions = append(decisions, decision{order: o, outcome: domain.OutcomeExemptHoliday})
		case graceLeft > 0:
			graceLeft--
			decisions = append(decisions, decision{order: o, outcome: domain.OutcomeExemptGrace})
		default:
			decisions = append(decisions, decision{
				order:   o,
				outcome: domain.OutcomeBilled,
				charge:  policy.Charge(o.Amount),
			})
		}
	}
	return decisions
}

func recordType(formulaName string) string {
	if formulaName == "" {
		return orderdomain.BilledReason
	}
	return formulaName
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
