package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	Session   SessionConfig   `envPrefix:"SESSION_"`
	CSRF      CSRFConfig      `envPrefix:"CSRF_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	TOTP      TOTPConfig      `envPrefix:"TOTP_"`
	TwoFactor TwoFactorConfig `envPrefix:"TWOFA_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Mail      MailConfig      `envPrefix:"MAIL_"`
	OpenAPI   OpenAPIConfig   `envPrefix:"OPENAPI_"`
}

type AppConfig struct {
	Name        string `env:"NAME" envDefault:"Driplo Marketplace"`
	URL         string `env:"URL" envDefault:"http://localhost:8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// IsProduction reports whether error responses must be stripped of field detail.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Environment, "production")
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Host           string   `env:"HOST" envDefault:"localhost"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	TLSCertFile    string   `env:"TLS_CERT_FILE"`
	TLSKeyFile     string   `env:"TLS_KEY_FILE"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"twofa.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type SessionConfig struct {
	Store    string        `env:"STORE" envDefault:"database"`
	Name     string        `env:"NAME" envDefault:"session"`
	MaxAge   time.Duration `env:"MAX_AGE" envDefault:"720h"`
	Path     string        `env:"PATH" envDefault:"/"`
	Domain   string        `env:"DOMAIN"`
	Secure   bool          `env:"SECURE" envDefault:"true"`
	HttpOnly bool          `env:"HTTP_ONLY" envDefault:"true"`
	SameSite string        `env:"SAME_SITE" envDefault:"lax"`
}

// CSRFConfig drives the double-submit token check on unsafe methods. The cookie stays readable
// by scripts so the client can echo it back in the header.
type CSRFConfig struct {
	Enabled        bool   `env:"ENABLED" envDefault:"true"`
	TokenLength    uint8  `env:"TOKEN_LENGTH" envDefault:"32"`
	TokenLookup    string `env:"TOKEN_LOOKUP" envDefault:"header:X-CSRF-Token"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"_csrf"`
	CookiePath     string `env:"COOKIE_PATH" envDefault:"/"`
	CookieMaxAge   int    `env:"COOKIE_MAX_AGE" envDefault:"86400"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"true"`
	CookieSameSite string `env:"COOKIE_SAME_SITE" envDefault:"strict"`
}

type AuthConfig struct {
	MinLength  int `env:"MIN_LENGTH" envDefault:"8"`
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`
}

type TOTPConfig struct {
	Issuer           string `env:"ISSUER" envDefault:"Driplo Marketplace"`
	ReplayProtection bool   `env:"REPLAY_PROTECTION" envDefault:"true"`
	QRCodeSize       int    `env:"QR_CODE_SIZE" envDefault:"200"`
}

type TwoFactorConfig struct {
	SigningKey       string        `env:"SIGNING_KEY"`
	APIPrefix        string        `env:"API_PREFIX" envDefault:"/api/auth/2fa"`
	VerifyPage       string        `env:"VERIFY_PAGE" envDefault:"/2fa-verify"`
	VerifiedCookie   string        `env:"VERIFIED_COOKIE" envDefault:"2fa_verified"`
	RedirectCookie   string        `env:"REDIRECT_COOKIE" envDefault:"2fa_redirect"`
	SetupCookie      string        `env:"SETUP_COOKIE" envDefault:"2fa_setup_secret"`
	VerifiedLifetime time.Duration `env:"VERIFIED_LIFETIME" envDefault:"24h"`
	RedirectLifetime time.Duration `env:"REDIRECT_LIFETIME" envDefault:"10m"`
	SetupLifetime    time.Duration `env:"SETUP_LIFETIME" envDefault:"10m"`
	CookieSecure     bool          `env:"COOKIE_SECURE" envDefault:"true"`
	PublicRoutes     []string      `env:"PUBLIC_ROUTES" envSeparator:"," envDefault:"/login,/register,/forgot-password,/reset-password,/auth/confirm,/auth/callback,/api/auth/resend-verification,/openapi.json,/openapi.yaml"`
	AuthOnlyRoutes   []string      `env:"AUTH_ONLY_ROUTES" envSeparator:"," envDefault:"/api/auth/2fa/enable,/api/auth/2fa/verify,/2fa-verify,/logout"`
}

type RateLimitConfig struct {
	Enabled       bool          `env:"ENABLED" envDefault:"true"`
	Store         string        `env:"STORE" envDefault:"database"`
	Rate          int           `env:"RATE" envDefault:"5"`
	Period        time.Duration `env:"PERIOD" envDefault:"15m"`
	CountMode     CountingMode  `env:"COUNT_MODE" envDefault:"failures"`
	CleanupPeriod time.Duration `env:"CLEANUP_PERIOD" envDefault:"1h"`
}

type MailConfig struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	Host        string `env:"HOST" envDefault:"localhost"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME" envDefault:"Driplo Marketplace"`
}

type OpenAPIConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Title   string `env:"TITLE" envDefault:"Driplo two-factor API"`
	Version string `env:"VERSION" envDefault:"1.0.0"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return c.Validate()
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validateTwoFactorConfig(&c.TwoFactor); err != nil {
		return err
	}
	return validateRateLimitConfig(&c.RateLimit)
}

var weakKeyPatterns = []string{"password", "secret", "test", "example", "default", "change"}

func validateTwoFactorConfig(cfg *TwoFactorConfig) error {
	if len(cfg.SigningKey) < 32 {
		return errors.New("two-factor signing key must be at least 32 characters long")
	}

	lower := strings.ToLower(cfg.SigningKey)
	for _, pattern := range weakKeyPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("two-factor signing key contains weak patterns (%q)", pattern)
		}
	}

	if !strings.HasPrefix(cfg.VerifyPage, "/") {
		return fmt.Errorf("two-factor verify page must be an absolute path, got %q", cfg.VerifyPage)
	}

	return nil
}

func validateRateLimitConfig(cfg *RateLimitConfig) error {
	switch cfg.Store {
	case "memory", "database":
	default:
		return fmt.Errorf("rate limit store must be: memory or database, got %q", cfg.Store)
	}

	switch cfg.CountMode {
	case CountAll, CountFailures, CountSuccess:
	default:
		return fmt.Errorf("rate limit count mode must be: all, failures, or success, got %q", cfg.CountMode)
	}

	return nil
}
