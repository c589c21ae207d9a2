package totp

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultIssuer = "Driplo Marketplace"
	Period        = 30
	Skew          = 1
	SecretSize    = 20
	Digits        = otp.DigitsSix
	Algorithm     = otp.AlgorithmSHA1
)

var (
	ErrInvalidCode     = errors.New("invalid TOTP code")
	ErrCodeAlreadyUsed = errors.New("TOTP code has already been used")
	ErrEmptyLabel      = errors.New("account label is required")
)

type Service struct {
	config *config.Config
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	if logger != nil {
		logger.Info("initializing TOTP service",
			zap.String("issuer", issuer(cfg)),
			zap.Bool("replay_protection", cfg.TOTP.ReplayProtection))
	}

	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
	}
}

func issuer(cfg *config.Config) string {
	if cfg == nil || cfg.TOTP.Issuer == "" {
		return DefaultIssuer
	}
	return cfg.TOTP.Issuer
}

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    Digits,
		Algorithm: Algorithm,
	}
}

// GenerateSecret creates a random base32 secret and the otpauth:// URI an authenticator app enrolls from.
func (s *Service) GenerateSecret(label string) (*Key, error) {
	if label == "" {
		return nil, ErrEmptyLabel
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer(s.config),
		AccountName: label,
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      Digits,
		Algorithm:   Algorithm,
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("TOTP key generation failed", zap.Error(err))
		}
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	return &Key{
		Secret: key.Secret(),
		URI:    key.URL(),
	}, nil
}

// QRCode renders a provisioning URI as a PNG data URL.
func (s *Service) QRCode(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse provisioning URI: %w", err)
	}

	size := 200
	if s.config != nil && s.config.TOTP.QRCodeSize > 0 {
		size = s.config.TOTP.QRCodeSize
	}

	img, err := key.Image(size, size)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *Service) Verify(secret, code string) bool {
	return s.VerifyAt(secret, code, time.Now())
}

// VerifyAt accepts codes for the step containing t and one step either side.
// Malformed secrets and codes are reported as invalid, never as errors.
func (s *Service) VerifyAt(secret, code string, t time.Time) bool {
	if secret == "" || code == "" {
		return false
	}

	valid, err := totp.ValidateCustom(code, secret, t, validateOpts())
	if err != nil {
		if s.logger != nil {
			s.logger.Debug("TOTP validation rejected input", zap.Error(err))
		}
		return false
	}
	return valid
}

// GenerateCode returns the code for secret at t. Used by tests and tooling.
func GenerateCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, validateOpts())
}
