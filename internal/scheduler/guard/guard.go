package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/clock"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Job marker keys. A success marker suppresses re-runs for the rest of the
// calendar day; error markers are audit records only and never block a retry.
const (
	KeyClosureDone  = "CLOSURE_DONE"
	KeyClosureError = "CLOSURE_ERROR"
	KeySweepDone    = "STATUT_AUTO_EFFECTUE"
	KeyBillingDone  = "FACTURATION_EFFECTUEE"
	KeyBillingError = "FACTURATION_ERREUR"
)

// Marker is one append-only idempotency or error record. Markers are owned
// exclusively by the job that wrote them and are never edited, only
// soft-deleted by operators.
type Marker struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Key       string       `gorm:"column:key;not null;index"`
	Payload   string       `gorm:""`
	Deleted   bool         `gorm:"not null;default:false"`
	CreatedAt time.Time    `gorm:"not null"`
}

func (Marker) TableName() string { return "job_markers" }

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
	Clock clock.Clock
}

// Guard ensures each scheduled job runs at most once per calendar day.
// Single-instance deployment assumed; across instances the existence check
// and insert would need a distributed lock.
type Guard struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) *Guard {
	return &Guard{db: p.DB, genID: p.GenID, clock: p.Clock}
}

// DayKey builds the durable marker key for a job on a given date.
func DayKey(jobKey string, date time.Time) string {
	return fmt.Sprintf("%s_%s", jobKey, date.UTC().Format("20060102"))
}

// HasRunToday reports whether a success marker exists for the job on the
// guard clock's current date.
func (g *Guard) HasRunToday(ctx context.Context, jobKey string) (bool, error) {
	return g.HasRunOn(ctx, jobKey, g.clock.Now())
}

func (g *Guard) HasRunOn(ctx context.Context, jobKey string, date time.Time) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM job_markers WHERE key = ? AND deleted = ?`,
		DayKey(jobKey, date), false,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkRanToday inserts the success marker. When tx is non-nil the marker
// commits atomically with the job's own writes, closing the crash window
// between business success and marker write.
func (g *Guard) MarkRanToday(ctx context.Context, tx *gorm.DB, jobKey, payload string) error {
	db := tx
	if db == nil {
		db = g.db.WithContext(ctx)
	}
	return db.Create(&Marker{
		ID:        g.genID.Generate(),
		Key:       DayKey(jobKey, g.clock.Now()),
		Payload:   payload,
		CreatedAt: g.clock.Now(),
	}).Error
}

// MarkError appends an error marker for later audit. It never suppresses a
// retry: only the success marker does.
func (g *Guard) MarkError(ctx context.Context, jobKey string, runErr error) error {
	payload := ""
	if runErr != nil {
		payload = runErr.Error()
	}
	return g.db.WithContext(ctx).Create(&Marker{
		ID:        g.genID.Generate(),
		Key:       DayKey(jobKey, g.clock.Now()),
		Payload:   payload,
		CreatedAt: g.clock.Now(),
	}).Error
}

var Module = fx.Module("scheduler.guard",
	fx.Provide(New),
)
