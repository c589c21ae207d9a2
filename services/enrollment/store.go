package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driplo/twofa/services/totp"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("two-factor enrollment not found")
	ErrNotEnabled     = errors.New("two-factor authentication is not enabled")
	ErrAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	ErrEmptySecret    = errors.New("cannot enable two-factor authentication without a secret")
)

const consumeAttempts = 3

// Store is the persistence contract for enrollment records. Every mutation is a single-row update.
type Store interface {
	Get(ctx context.Context, userID uint) (*Enrollment, error)
	Enable(ctx context.Context, userID uint, secret string, codes []string) error
	Disable(ctx context.Context, userID uint) error
	ConsumeBackupCode(ctx context.Context, userID uint, submitted string) (bool, error)
	ReplaceBackupCodes(ctx context.Context, userID uint, codes []string) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, userID uint) (*Enrollment, error) {
	var record Enrollment
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	return &record, nil
}

func (s *GormStore) Enable(ctx context.Context, userID uint, secret string, codes []string) error {
	if secret == "" {
		return ErrEmptySecret
	}

	now := time.Now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Enrollment
		err := tx.Where("user_id = ?", userID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			record := &Enrollment{
				UserID:      userID,
				Enabled:     true,
				Secret:      secret,
				BackupCodes: BackupCodes(codes),
				EnabledAt:   &now,
			}
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("failed to create enrollment: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load enrollment: %w", err)
		}
		if existing.Enabled {
			return ErrAlreadyEnabled
		}

		result := tx.Model(&Enrollment{}).
			Where("user_id = ? AND enabled = ?", userID, false).
			Updates(map[string]any{
				"enabled":      true,
				"secret":       secret,
				"backup_codes": BackupCodes(codes),
				"enabled_at":   now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to enable enrollment: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyEnabled
		}
		return nil
	})
}

// Disable clears the enabled flag, secret and backup codes in one statement.
func (s *GormStore) Disable(ctx context.Context, userID uint) error {
	result := s.db.WithContext(ctx).Model(&Enrollment{}).
		Where("user_id = ? AND enabled = ?", userID, true).
		Updates(map[string]any{
			"enabled":      false,
			"secret":       "",
			"backup_codes": nil,
			"enabled_at":   nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to disable enrollment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotEnabled
	}
	return nil
}

// ConsumeBackupCode removes the stored code matching submitted and reports whether one was removed.
// The update only applies if the stored list is unchanged since it was read, so two requests
// racing on the same code cannot both succeed.
func (s *GormStore) ConsumeBackupCode(ctx context.Context, userID uint, submitted string) (bool, error) {
	for attempt := 0; attempt < consumeAttempts; attempt++ {
		record, err := s.Get(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !record.Enabled {
			return false, nil
		}

		matched, ok := totp.VerifyBackupCode(submitted, record.BackupCodes)
		if !ok {
			return false, nil
		}

		current, err := record.BackupCodes.Value()
		if err != nil {
			return false, fmt.Errorf("failed to encode backup codes: %w", err)
		}

		result := s.db.WithContext(ctx).Model(&Enrollment{}).
			Where("user_id = ? AND enabled = ? AND backup_codes = ?", userID, true, current).
			Update("backup_codes", record.BackupCodes.Without(matched))
		if result.Error != nil {
			return false, fmt.Errorf("failed to consume backup code: %w", result.Error)
		}
		if result.RowsAffected == 1 {
			return true, nil
		}
	}

	return false, nil
}

func (s *GormStore) ReplaceBackupCodes(ctx context.Context, userID uint, codes []string) error {
	result := s.db.WithContext(ctx).Model(&Enrollment{}).
		Where("user_id = ? AND enabled = ?", userID, true).
		Update("backup_codes", BackupCodes(codes))
	if result.Error != nil {
		return fmt.Errorf("failed to replace backup codes: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotEnabled
	}
	return nil
}
