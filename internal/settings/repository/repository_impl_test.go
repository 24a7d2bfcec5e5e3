package repository

import (
	"context"
	"testing"
	"time"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/clock"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/settings/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openSettingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE settings (
		id INTEGER PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		value TEXT NOT NULL,
		description TEXT,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME,
		updated_at DATETIME
	)`).Error)
	return db
}

func newTestStore(t *testing.T, db *gorm.DB) domain.Store {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC))
	return Provide(Params{DB: db, GenID: node, Clock: fc})
}

func TestGetMissingKey(t *testing.T) {
	store := newTestStore(t, openSettingsTestDB(t))

	_, err := store.Get(context.Background(), domain.KeyBillingActive)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetThenGet(t *testing.T) {
	store := newTestStore(t, openSettingsTestDB(t))

	require.NoError(t, store.Set(context.Background(), domain.KeyBillingActive, "true", "enable billing"))
	value, err := store.Get(context.Background(), domain.KeyBillingActive)
	require.NoError(t, err)
	require.Equal(t, "true", value)
}

func TestSetUpdatesExistingKey(t *testing.T) {
	db := openSettingsTestDB(t)
	store := newTestStore(t, db)

	require.NoError(t, store.Set(context.Background(), domain.KeyBillingPercentage, "100", ""))
	require.NoError(t, store.Set(context.Background(), domain.KeyBillingPercentage, "80", ""))

	value, err := store.Get(context.Background(), domain.KeyBillingPercentage)
	require.NoError(t, err)
	require.Equal(t, "80", value)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(1) FROM settings WHERE key = ?`, domain.KeyBillingPercentage).Scan(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestGetIgnoresDeletedEntries(t *testing.T) {
	db := openSettingsTestDB(t)
	store := newTestStore(t, db)

	require.NoError(t, store.Set(context.Background(), domain.KeyGraceAbsences, "2", ""))
	require.NoError(t, db.Exec(`UPDATE settings SET deleted = TRUE WHERE key = ?`, domain.KeyGraceAbsences).Error)

	_, err := store.Get(context.Background(), domain.KeyGraceAbsences)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
