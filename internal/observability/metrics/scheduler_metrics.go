package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config carries the static labels stamped onto every scheduler metric.
type Config struct {
	ServiceName string
	Environment string
}

// SchedulerMetrics captures job health signals for the background pipeline.
type SchedulerMetrics struct {
	jobRuns       *prometheus.CounterVec
	jobSkips      *prometheus.CounterVec
	jobErrors     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	ordersSwept   prometheus.Counter
	ordersBilled  prometheus.Counter
	ordersExempt  prometheus.Counter
	amountBilled  prometheus.Counter
	markerWritten *prometheus.CounterVec
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(cfg Config) *SchedulerMetrics {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "cantine"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	return &SchedulerMetrics{
		jobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "cantine_scheduler_job_runs_total",
			Help:        "Number of scheduler job iterations started.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "cantine_scheduler_job_skips_total",
			Help:        "Iterations skipped by the daily idempotency marker or window check.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		jobErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "cantine_scheduler_job_errors_total",
			Help:        "Scheduler job iterations that ended in error.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "cantine_scheduler_job_duration_seconds",
			Help:        "Scheduler job iteration duration.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"job"}),
		ordersSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "cantine_orders_swept_total",
			Help:        "Orders flipped to NOT_RETRIEVED by the nightly sweep.",
			ConstLabels: constLabels,
		}),
		ordersBilled: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "cantine_orders_billed_total",
			Help:        "Unconsumed orders charged by the billing reconciler.",
			ConstLabels: constLabels,
		}),
		ordersExempt: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "cantine_orders_exempted_total",
			Help:        "Unconsumed orders exempted from billing.",
			ConstLabels: constLabels,
		}),
		amountBilled: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "cantine_billed_amount_total",
			Help:        "Cumulative billed amount, in currency units.",
			ConstLabels: constLabels,
		}),
		markerWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "cantine_job_markers_written_total",
			Help:        "Durable idempotency and error markers written.",
			ConstLabels: constLabels,
		}, []string{"job", "kind"}),
	}
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobSkip(job, reason string) {
	if m == nil {
		return
	}
	m.jobSkips.WithLabelValues(job, reason).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) AddOrdersSwept(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ordersSwept.Add(float64(count))
}

func (m *SchedulerMetrics) AddOrdersBilled(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ordersBilled.Add(float64(count))
}

func (m *SchedulerMetrics) AddOrdersExempted(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ordersExempt.Add(float64(count))
}

func (m *SchedulerMetrics) AddBilledAmount(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.amountBilled.Add(amount)
}

func (m *SchedulerMetrics) IncMarkerWritten(job, kind string) {
	if m == nil {
		return
	}
	m.markerWritten.WithLabelValues(job, kind).Inc()
}
