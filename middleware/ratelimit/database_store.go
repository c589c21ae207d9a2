package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateLimitEntry is one counter window. ResetAt is unix milliseconds.
type RateLimitEntry struct {
	ID         uint   `gorm:"primaryKey"`
	Identifier string `gorm:"uniqueIndex;size:255;not null"`
	Hits       int    `gorm:"not null;default:0"`
	ResetAt    int64  `gorm:"index;not null"`
	UpdatedAt  time.Time
}

type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db, now: time.Now}
}

func (s *DatabaseStore) Get(ctx context.Context, key string) (int, time.Time, error) {
	var row RateLimitEntry
	err := s.db.WithContext(ctx).Where("identifier = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, time.Time{}, nil
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to read rate limit entry: %w", err)
	}

	resetAt := time.UnixMilli(row.ResetAt)
	if !s.now().Before(resetAt) {
		return 0, time.Time{}, nil
	}
	return row.Hits, resetAt, nil
}

// Increment upserts the counter in one statement. An expired window restarts at one hit.
func (s *DatabaseStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	resetMs := now.Add(window).UnixMilli()

	var row RateLimitEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "identifier"}},
			DoUpdates: clause.Assignments(map[string]any{
				"hits":       gorm.Expr("CASE WHEN rate_limit_entries.reset_at <= ? THEN 1 ELSE rate_limit_entries.hits + 1 END", nowMs),
				"reset_at":   gorm.Expr("CASE WHEN rate_limit_entries.reset_at <= ? THEN ? ELSE rate_limit_entries.reset_at END", nowMs, resetMs),
				"updated_at": now,
			}),
		}).Create(&RateLimitEntry{Identifier: key, Hits: 1, ResetAt: resetMs, UpdatedAt: now})
		if upsert.Error != nil {
			return upsert.Error
		}
		return tx.Where("identifier = ?", key).First(&row).Error
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to increment rate limit entry: %w", err)
	}

	return row.Hits, time.UnixMilli(row.ResetAt), nil
}

func (s *DatabaseStore) Reset(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("identifier = ?", key).Delete(&RateLimitEntry{}).Error; err != nil {
		return fmt.Errorf("failed to reset rate limit entry: %w", err)
	}
	return nil
}

func (s *DatabaseStore) Cleanup(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("reset_at <= ?", s.now().UnixMilli()).Delete(&RateLimitEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clean up rate limit entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}
