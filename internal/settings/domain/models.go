package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Operational setting keys consumed by the background pipeline.
const (
	KeyClosureWeekday    = "COMMANDE_JOUR_CLOTURE"
	KeyClosureHour       = "COMMANDE_HEURE_CLOTURE"
	KeyAutoConfirmation  = "COMMANDE_AUTO_CONFIRMATION"
	KeyBillingActive     = "FACTURATION_NON_CONSOMMEES_ACTIVE"
	KeyBillingPercentage = "FACTURATION_POURCENTAGE"
	KeyGraceAbsences     = "FACTURATION_ABSENCES_GRATUITES"
	KeyFreeCancelHours   = "FACTURATION_DELAI_ANNULATION_GRATUITE"
	KeyBillWeekends      = "FACTURATION_WEEKEND"
	KeyBillHolidays      = "FACTURATION_JOURS_FERIES"
)

var ErrNotFound = errors.New("setting_not_found")

// Entry is a key/value operational setting. Idempotency markers live in
// their own append-only table, not here.
type Entry struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Key         string       `gorm:"column:key;uniqueIndex;not null"`
	Value       string       `gorm:"not null"`
	Description string       `gorm:""`
	Deleted     bool         `gorm:"not null;default:false"`
	CreatedAt   time.Time    `gorm:"not null"`
	UpdatedAt   time.Time    `gorm:"not null"`
}

func (Entry) TableName() string { return "settings" }

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value, description string) error
}
