package repository

import (
	"context"
	"errors"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/clock"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/settings/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
	Clock clock.Clock
}

type store struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func Provide(p Params) domain.Store {
	return &store{db: p.DB, genID: p.GenID, clock: p.Clock}
}

func (s *store) Get(ctx context.Context, key string) (string, error) {
	var entry domain.Entry
	err := s.db.WithContext(ctx).
		Where("key = ? AND deleted = ?", key, false).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (s *store) Set(ctx context.Context, key, value, description string) error {
	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE settings
			 SET value = ?, description = ?, updated_at = ?
			 WHERE key = ? AND deleted = ?`,
			value, description, now, key, false,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&domain.Entry{
			ID:          s.genID.Generate(),
			Key:         key,
			Value:       value,
			Description: description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}).Error
	})
}
