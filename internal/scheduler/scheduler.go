package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	billingdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/billing/domain"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/clock"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/notification"
	obsmetrics "github.com/MamadouKernel/CantineObeli-sub002/internal/observability/metrics"
	orderdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/order/domain"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/scheduler/guard"
	settingsdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/settings/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

const (
	JobClosure = "closure"
	JobSweep   = "status_sweep"
	JobBilling = "billing"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Settings   settingsdomain.Store
	Guard      *guard.Guard
	OrderSvc   orderdomain.Service
	BillingSvc billingdomain.Service
	Sink       notification.Sink
	Holder     *ConfigHolder `optional:"true"`
}

// Scheduler owns the three background loops: weekly closure (5 min poll),
// nightly status sweep (1 min poll) and daily billing (1 hour poll). Loops
// never share state beyond disjoint order predicates and the durable daily
// markers; an iteration failure is logged and retried on the next tick.
type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        *ConfigHolder
	genID      *snowflake.Node
	clock      clock.Clock
	settings   settingsdomain.Store
	guard      *guard.Guard
	orderSvc   orderdomain.Service
	billingSvc billingdomain.Service
	sink       notification.Sink
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Settings == nil || p.Guard == nil || p.OrderSvc == nil || p.BillingSvc == nil {
		return nil, ErrInvalidConfig
	}
	holder := p.Holder
	if holder == nil {
		holder = NewStaticHolder(DefaultConfig())
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        holder,
		genID:      p.GenID,
		clock:      p.Clock,
		settings:   p.Settings,
		guard:      p.Guard,
		orderSvc:   p.OrderSvc,
		billingSvc: p.BillingSvc,
		sink:       p.Sink,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	timeout := s.cfg.Get().JobTimeout
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.newJobRun(ctx, name)
	s.logJobStart(run)

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(run)
	if err == nil {
		return nil
	}

	schedMetrics.IncJobError(name)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job once. Loops use it indirectly; tests and
// operational one-shots call it directly.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, job := range s.jobs() {
		if !s.isJobEnabled(job.name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.name, job.fn))
	}
	return err
}

// RunForever starts one polling goroutine per job and blocks until the
// context is cancelled. The enabled-job list is re-read every iteration, so
// a config reload can switch a job on or off without a restart. In-flight
// iterations finish before return.
func (s *Scheduler) RunForever(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs() {
		wg.Add(1)
		go func(name string, interval time.Duration, fn func(context.Context) error) {
			defer wg.Done()
			s.runLoop(ctx, name, interval, fn)
		}(job.name, job.interval, job.fn)
	}
	wg.Wait()
}

type jobSpec struct {
	name     string
	interval time.Duration
	fn       func(context.Context) error
}

func (s *Scheduler) jobs() []jobSpec {
	cfg := s.cfg.Get()
	return []jobSpec{
		{JobClosure, cfg.ClosureInterval, s.ClosureJob},
		{JobSweep, cfg.SweepInterval, s.StatusSweepJob},
		{JobBilling, cfg.BillingInterval, s.BillingJob},
	}
}

func (s *Scheduler) runLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if s.isJobEnabled(name) {
			if err := s.runJob(ctx, name, fn); err != nil {
				s.log.Warn("scheduler run failed", zap.String("job", name), zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	enabledJobs := s.cfg.Get().EnabledJobs
	// Empty list means all jobs enabled (monolith mode).
	if len(enabledJobs) == 0 {
		return true
	}
	for _, enabled := range enabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// BillingJob delegates to the billing reconciler. The reconciler owns its
// own enable flag and daily marker, so an hourly poll costs two lookups on
// days it has already run.
func (s *Scheduler) BillingJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)

	summary, err := s.billingSvc.ReconcileUnconsumed(ctx)
	if err != nil {
		s.logSchedulerError(run, "billing.reconcile.failed", err)
		return err
	}
	if summary.Skipped {
		obsmetrics.Scheduler().IncJobSkip(JobBilling, summary.SkipReason)
		return nil
	}

	run.AddProcessed(summary.BilledCount + summary.ExemptedCount)
	s.emitEvent(ctx, notification.Event{
		Job:            JobBilling,
		RunID:          runID(run),
		OccurredAt:     summary.RanAt,
		ProcessedCount: summary.BilledCount + summary.ExemptedCount,
		BilledCount:    summary.BilledCount,
		ExemptedCount:  summary.ExemptedCount,
		TotalBilled:    summary.Total.StringFixed(2),
	})
	return nil
}

func (s *Scheduler) emitEvent(ctx context.Context, event notification.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(ctx, event); err != nil {
		s.log.Warn("job event publish failed",
			zap.String("job", event.Job),
			zap.Error(err),
		)
	}
}

func runID(run *jobRun) string {
	if run == nil {
		return ""
	}
	return run.runID
}
