package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrPasswordTooShort      = errors.New("password is too short")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailTaken            = errors.New("email is already registered")
)

type Service struct {
	config *config.Config
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
	}
}

func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < s.config.Auth.MinLength {
		return "", fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooShort, s.config.Auth.MinLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("password hashing failed", zap.Error(err))
		}
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Service) CreateUser(ctx context.Context, user *User, password string) error {
	user.Email = normalizeEmail(user.Email)
	if user.AccountType == "" {
		user.AccountType = AccountPersonal
	}
	if user.Role == "" {
		user.Role = RoleUser
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash

	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("user created", zap.Uint("user_id", user.ID), zap.String("account_type", user.AccountType))
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, userID uint) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// Authenticate checks email and password. Unknown emails and wrong passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if s.logger != nil {
			s.logger.Warn("login attempt for unknown email")
		}
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.VerifyPassword(user.PasswordHash, password); err != nil {
		if s.logger != nil {
			s.logger.Warn("login attempt with wrong password", zap.Uint("user_id", user.ID))
		}
		return nil, err
	}

	return &user, nil
}

// CheckPassword re-authenticates an already identified user.
func (s *Service) CheckPassword(ctx context.Context, userID uint, password string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.VerifyPassword(user.PasswordHash, password)
}

// TwoFactorRequired reports whether 2FA is mandatory for the user and surfaces lookup failures.
func (s *Service) TwoFactorRequired(ctx context.Context, userID uint) (bool, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.RequiresTwoFactor(), nil
}

// IsTwoFactorRequired is the display variant of TwoFactorRequired. Lookup failures count as not required.
func (s *Service) IsTwoFactorRequired(ctx context.Context, userID uint) bool {
	required, err := s.TwoFactorRequired(ctx, userID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("could not determine whether 2FA is required", zap.Uint("user_id", userID), zap.Error(err))
		}
		return false
	}
	return required
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
