package enrollment

import (
	"context"
	"errors"

	"github.com/driplo/twofa/services/logging"
	"go.uber.org/zap"
)

type Service struct {
	store  Store
	logger *logging.Service
}

func NewService(store Store, logger *logging.Service) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Get returns the user's record. A user who never enrolled gets an empty, disabled record.
func (s *Service) Get(ctx context.Context, userID uint) (*Enrollment, error) {
	record, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return &Enrollment{UserID: userID}, nil
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to load two-factor enrollment", zap.Error(err), zap.Uint("user_id", userID))
		}
		return nil, err
	}
	return record, nil
}

func (s *Service) IsEnabled(ctx context.Context, userID uint) (bool, error) {
	record, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return record.Enabled, nil
}

func (s *Service) Status(ctx context.Context, userID uint) (Status, error) {
	record, err := s.Get(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Enabled:          record.Enabled,
		BackupCodesCount: len(record.BackupCodes),
	}, nil
}

func (s *Service) Enable(ctx context.Context, userID uint, secret string, codes []string) error {
	if err := s.store.Enable(ctx, userID, secret, codes); err != nil {
		if s.logger != nil {
			s.logger.Warn("two-factor enable failed", zap.Error(err), zap.Uint("user_id", userID))
		}
		return err
	}

	if s.logger != nil {
		s.logger.Info("two-factor authentication enabled",
			zap.Uint("user_id", userID),
			zap.Int("backup_codes", len(codes)))
	}
	return nil
}

func (s *Service) Disable(ctx context.Context, userID uint) error {
	if err := s.store.Disable(ctx, userID); err != nil {
		if s.logger != nil {
			s.logger.Warn("two-factor disable failed", zap.Error(err), zap.Uint("user_id", userID))
		}
		return err
	}

	if s.logger != nil {
		s.logger.Info("two-factor authentication disabled", zap.Uint("user_id", userID))
	}
	return nil
}

func (s *Service) ConsumeBackupCode(ctx context.Context, userID uint, submitted string) (bool, error) {
	ok, err := s.store.ConsumeBackupCode(ctx, userID, submitted)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to consume backup code", zap.Error(err), zap.Uint("user_id", userID))
		}
		return false, err
	}

	if ok && s.logger != nil {
		s.logger.Info("backup code consumed", zap.Uint("user_id", userID))
	}
	return ok, nil
}

func (s *Service) ReplaceBackupCodes(ctx context.Context, userID uint, codes []string) error {
	if err := s.store.ReplaceBackupCodes(ctx, userID, codes); err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to replace backup codes", zap.Error(err), zap.Uint("user_id", userID))
		}
		return err
	}

	if s.logger != nil {
		s.logger.Info("backup codes regenerated", zap.Uint("user_id", userID))
	}
	return nil
}
