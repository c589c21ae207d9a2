package marker

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TypeVerified = "2fa_verified"
	TypeSetup    = "2fa_setup"
)

var (
	ErrInvalidToken     = errors.New("invalid two-factor token")
	ErrExpiredToken     = errors.New("two-factor token has expired")
	ErrMalformedToken   = errors.New("malformed two-factor token")
	ErrInvalidSignature = errors.New("invalid two-factor token signature")
	ErrWrongType        = errors.New("two-factor token has the wrong type")
	ErrWrongUser        = errors.New("two-factor token was issued to another user")
)

type Claims struct {
	UserID    uint   `json:"user_id"`
	TokenType string `json:"token_type"`
	Secret    string `json:"secret,omitempty"`
	jwt.RegisteredClaims
}

// Service signs the session marker that proves the second factor was passed,
// and the short-lived token that carries an enrollment secret between start and verify.
type Service struct {
	config *config.Config
	logger *logging.Service
	now    func() time.Time
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) IssueVerified(userID uint) (string, time.Time, error) {
	expiresAt := s.now().Add(s.config.TwoFactor.VerifiedLifetime)
	token, err := s.sign(Claims{UserID: userID, TokenType: TypeVerified}, expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateVerified accepts only an unexpired marker minted for userID.
func (s *Service) ValidateVerified(token string, userID uint) (*Claims, error) {
	return s.parse(token, TypeVerified, userID)
}

func (s *Service) IssueSetup(userID uint, secret string) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("setup secret is required")
	}
	expiresAt := s.now().Add(s.config.TwoFactor.SetupLifetime)
	token, err := s.sign(Claims{UserID: userID, TokenType: TypeSetup, Secret: secret}, expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *Service) ParseSetup(token string, userID uint) (string, error) {
	claims, err := s.parse(token, TypeSetup, userID)
	if err != nil {
		return "", err
	}
	if claims.Secret == "" {
		return "", ErrInvalidToken
	}
	return claims.Secret, nil
}

func (s *Service) sign(claims Claims, expiresAt time.Time) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    s.config.App.Name,
		Subject:   strconv.FormatUint(uint64(claims.UserID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.TwoFactor.SigningKey))
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to sign two-factor token", zap.String("token_type", claims.TokenType), zap.Error(err))
		}
		return "", fmt.Errorf("failed to sign two-factor token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(tokenString, tokenType string, userID uint) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TwoFactor.SigningKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.App.Name),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongType
	}
	if claims.UserID != userID || claims.Subject != strconv.FormatUint(uint64(userID), 10) {
		if s.logger != nil {
			s.logger.Warn("two-factor token presented by another user",
				zap.Uint("token_user_id", claims.UserID),
				zap.Uint("user_id", userID))
		}
		return nil, ErrWrongUser
	}

	return claims, nil
}
