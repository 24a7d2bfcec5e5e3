package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	billingdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/billing/domain"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/clock"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/notification"
	ordersvc "github.com/MamadouKernel/CantineObeli-sub002/internal/order/service"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/scheduler/guard"
	settingsdomain "github.com/MamadouKernel/CantineObeli-sub002/internal/settings/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeStore struct {
	values map[string]string
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return "", settingsdomain.ErrNotFound
}

func (f *fakeStore) Set(_ context.Context, key, value, _ string) error {
	f.values[key] = value
	return nil
}

type captureSink struct {
	events []notification.Event
}

func (c *captureSink) Publish(_ context.Context, event notification.Event) error {
	c.events = append(c.events, event)
	return nil
}

type mockBillingSvc struct {
	fn func(ctx context.Context) (billingdomain.Summary, error)
}

func (m *mockBillingSvc) ReconcileUnconsumed(ctx context.Context) (billingdomain.Summary, error) {
	if m.fn != nil {
		return m.fn(ctx)
	}
	return billingdomain.Summary{Total: decimal.Zero}, nil
}

func openSchedulerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			consumption_date DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'PRE_ORDERED',
			period TEXT NOT NULL DEFAULT 'DAY',
			quantity INTEGER NOT NULL DEFAULT 1,
			client_type TEXT NOT NULL,
			formula_id INTEGER,
			formula_name TEXT,
			user_email TEXT,
			group_id INTEGER,
			visitor_name TEXT,
			amount NUMERIC NOT NULL DEFAULT 0,
			cancel_reason TEXT,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_by TEXT,
			updated_by TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE consumption_records (
			id INTEGER PRIMARY KEY,
			order_id INTEGER NOT NULL,
			user_email TEXT,
			date DATETIME,
			type TEXT,
			quantity INTEGER NOT NULL DEFAULT 1,
			kind TEXT NOT NULL,
			location TEXT,
			amount NUMERIC,
			reason TEXT,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_by TEXT,
			created_at DATETIME
		)`,
		`CREATE TABLE job_markers (
			id INTEGER PRIMARY KEY,
			key TEXT NOT NULL,
			payload TEXT,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME
		)`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

// Each test scheduler gets its own snowflake node number: two nodes sharing a
// number generate colliding IDs when called within the same millisecond.
var testNodeSeq atomic.Int64

func newTestScheduler(t *testing.T, db *gorm.DB, fc *clock.FakeClock, store *fakeStore) (*Scheduler, *captureSink) {
	t.Helper()
	node, err := snowflake.NewNode(testNodeSeq.Add(1) % 1024)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	sink := &captureSink{}
	s := &Scheduler{
		db:    db,
		log:   zap.NewNop(),
		cfg:   NewStaticHolder(DefaultConfig()),
		genID: node,
		clock: fc,

		settings: store,
		guard:    guard.New(guard.Params{DB: db, GenID: node, Clock: fc}),
		orderSvc: ordersvc.New(ordersvc.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: fc}),
		billingSvc: &mockBillingSvc{fn: func(context.Context) (billingdomain.Summary, error) {
			return billingdomain.Summary{RanAt: fc.Now(), Total: decimal.Zero}, nil
		}},
		sink: sink,
	}
	return s, sink
}

func markerCount(t *testing.T, db *gorm.DB, keyPrefix string) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(
		`SELECT COUNT(1) FROM job_markers WHERE key LIKE ? AND deleted = FALSE`, keyPrefix+"%",
	).Scan(&count).Error; err != nil {
		t.Fatalf("count markers: %v", err)
	}
	return count
}

func TestBillingJobEmitsEventOnRealRun(t *testing.T) {
	db := openSchedulerTestDB(t)
	fc := clock.NewFakeClock(time.Date(2026, 3, 13, 7, 0, 0, 0, time.UTC))
	s, sink := newTestScheduler(t, db, fc, &fakeStore{values: map[string]string{}})
	s.billingSvc = &mockBillingSvc{fn: func(context.Context) (billingdomain.Summary, error) {
		return billingdomain.Summary{
			RanAt:         fc.Now(),
			BilledCount:   2,
			ExemptedCount: 1,
			Total:         decimal.NewFromInt(1600),
		}, nil
	}}

	if err := s.BillingJob(context.Background()); err != nil {
		t.Fatalf("billing job: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.events))
	}
	event := sink.events[0]
	if event.Job != JobBilling || event.BilledCount != 2 || event.ExemptedCount != 1 {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.TotalBilled != "1600.00" {
		t.Fatalf("expected total 1600.00, got %s", event.TotalBilled)
	}
}

func TestBillingJobSkippedRunEmitsNothing(t *testing.T) {
	db := openSchedulerTestDB(t)
	fc := clock.NewFakeClock(time.Date(2026, 3, 13, 7, 0, 0, 0, time.UTC))
	s, sink := newTestScheduler(t, db, fc, &fakeStore{values: map[string]string{}})
	s.billingSvc = &mockBillingSvc{fn: func(context.Context) (billingdomain.Summary, error) {
		return billingdomain.Summary{Skipped: true, SkipReason: "billing_disabled", Total: decimal.Zero}, nil
	}}

	if err := s.BillingJob(context.Background()); err != nil {
		t.Fatalf("billing job: %v", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no events, got %d", len(sink.events))
	}
}

func TestRunJobTimeoutIsNotAnError(t *testing.T) {
	db := openSchedulerTestDB(t)
	fc := clock.NewFakeClock(time.Date(2026, 3, 13, 7, 0, 0, 0, time.UTC))
	s, _ := newTestScheduler(t, db, fc, &fakeStore{values: map[string]string{}})
	s.cfg = NewStaticHolder(Config{JobTimeout: 5 * time.Millisecond})

	err := s.runJob(context.Background(), "timeout_job", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected soft timeout, got %v", err)
	}
}

func TestRunOnceJoinsJobErrors(t *testing.T) {
	db := openSchedulerTestDB(t)
	fc := clock.NewFakeClock(time.Date(2026, 3, 13, 7, 0, 0, 0, time.UTC))
	s, _ := newTestScheduler(t, db, fc, &fakeStore{values: map[string]string{}})

	wantErr := errors.New("reconcile blew up")
	s.billingSvc = &mockBillingSvc{fn: func(context.Context) (billingdomain.Summary, error) {
		return billingdomain.Summary{Total: decimal.Zero}, wantErr
	}}

	err := s.RunOnce(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected billing error, got %v", err)
	}
}

func TestIsJobEnabled(t *testing.T) {
	db := openSchedulerTestDB(t)
	fc := clock.NewFakeClock(time.Time{})
	s, _ := newTestScheduler(t, db, fc, &fakeStore{values: map[string]string{}})

	if !s.isJobEnabled(JobSweep) {
		t.Fatal("empty list should enable all jobs")
	}
	s.cfg = NewStaticHolder(Config{EnabledJobs: []string{"Billing"}})
	if !s.isJobEnabled(JobBilling) {
		t.Fatal("case-insensitive match expected")
	}
	if s.isJobEnabled(JobSweep) {
		t.Fatal("sweep should be disabled")
	}
}

func TestEnabledJobsFollowConfigReload(t *testing.T) {
	db := openSchedulerTestDB(t)
	fc := clock.NewFakeClock(time.Date(2026, 3, 13, 7, 0, 0, 0, time.UTC))
	s, _ := newTestScheduler(t, db, fc, &fakeStore{values: map[string]string{}})

	holder := NewStaticHolder(DefaultConfig())
	s.cfg = holder
	if !s.isJobEnabled(JobSweep) {
		t.Fatal("sweep should start enabled")
	}

	// A reload into the shared holder is observed without rebuilding the
	// scheduler: the running loops read the holder on every iteration.
	holder.set(Config{EnabledJobs: []string{JobBilling}})
	if s.isJobEnabled(JobSweep) {
		t.Fatal("reloaded config should disable sweep")
	}
	if !s.isJobEnabled(JobBilling) {
		t.Fatal("billing should stay enabled after reload")
	}
	if got := s.cfg.Get().JobTimeout; got != DefaultConfig().JobTimeout {
		t.Fatalf("reload must re-apply defaults, timeout %s", got)
	}
}
