package totp

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReplayWindow covers every step a code can be accepted in with Skew 1.
const ReplayWindow = 90 * time.Second

// ClaimCode records code as used by userID. A code already claimed inside ReplayWindow returns ErrCodeAlreadyUsed.
// It is a no-op when replay protection is switched off.
func (s *Service) ClaimCode(ctx context.Context, userID uint, code string) error {
	if s.config != nil && !s.config.TOTP.ReplayProtection {
		return nil
	}

	now := time.Now()
	cutoff := now.Add(-ReplayWindow).Unix()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND code = ? AND used_at < ?", userID, code, cutoff).Delete(&UsedCode{}).Error; err != nil {
			return fmt.Errorf("failed to clear stale used code: %w", err)
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&UsedCode{
			UserID: userID,
			Code:   code,
			UsedAt: now.Unix(),
		})
		if result.Error != nil {
			if s.logger != nil {
				s.logger.Error("failed to store used TOTP code", zap.Error(result.Error), zap.Uint("user_id", userID))
			}
			return fmt.Errorf("failed to store used code: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			if s.logger != nil {
				s.logger.Warn("TOTP code replay rejected", zap.Uint("user_id", userID))
			}
			return ErrCodeAlreadyUsed
		}

		return nil
	})
}

// VerifyAndClaim checks code against secret and then claims it for userID.
func (s *Service) VerifyAndClaim(ctx context.Context, userID uint, secret, code string) error {
	if !s.Verify(secret, code) {
		return ErrInvalidCode
	}
	return s.ClaimCode(ctx, userID, code)
}

func (s *Service) CleanupUsedCodes(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-ReplayWindow).Unix()

	result := s.db.WithContext(ctx).Where("used_at < ?", cutoff).Delete(&UsedCode{})
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to cleanup used TOTP codes", zap.Error(result.Error))
		}
		return 0, result.Error
	}

	if s.logger != nil && result.RowsAffected > 0 {
		s.logger.Debug("TOTP used codes cleanup completed", zap.Int64("cleaned_count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}
