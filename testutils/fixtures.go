package testutils

import (
	"time"

	"github.com/driplo/twofa/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "Test Marketplace",
			URL:         "http://localhost:8080",
			Environment: "test",
		},
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: "0",
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "console",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		Session: config.SessionConfig{
			Store:    "memory",
			Name:     "session",
			MaxAge:   time.Hour,
			Path:     "/",
			Secure:   false,
			HttpOnly: true,
			SameSite: "lax",
		},
		CSRF: config.CSRFConfig{
			Enabled:        false,
			TokenLength:    32,
			TokenLookup:    "header:X-CSRF-Token",
			CookieName:     "_csrf",
			CookiePath:     "/",
			CookieMaxAge:   86400,
			CookieSecure:   false,
			CookieSameSite: "strict",
		},
		Auth: config.AuthConfig{
			MinLength:  8,
			BcryptCost: bcrypt.MinCost,
		},
		TOTP: config.TOTPConfig{
			Issuer:           "Test Marketplace",
			ReplayProtection: true,
			QRCodeSize:       200,
		},
		TwoFactor: config.TwoFactorConfig{
			SigningKey:       "k9Vq2mXr7Lp4Zt8Wc1Nb6Hy3Js5Df0Ga",
			APIPrefix:        "/api/auth/2fa",
			VerifyPage:       "/2fa-verify",
			VerifiedCookie:   "2fa_verified",
			RedirectCookie:   "2fa_redirect",
			SetupCookie:      "2fa_setup_secret",
			VerifiedLifetime: 24 * time.Hour,
			RedirectLifetime: 10 * time.Minute,
			SetupLifetime:    10 * time.Minute,
			CookieSecure:     false,
			PublicRoutes: []string{
				"/login", "/register", "/forgot-password", "/reset-password",
				"/auth/confirm", "/auth/callback", "/api/auth/resend-verification",
				"/openapi.json", "/openapi.yaml",
			},
			AuthOnlyRoutes: []string{
				"/api/auth/2fa/enable", "/api/auth/2fa/verify", "/2fa-verify", "/logout",
			},
		},
		RateLimit: config.RateLimitConfig{
			Enabled:       true,
			Store:         "memory",
			Rate:          5,
			Period:        15 * time.Minute,
			CountMode:     config.CountFailures,
			CleanupPeriod: time.Hour,
		},
		Mail: config.MailConfig{
			Enabled: false,
		},
		OpenAPI: config.OpenAPIConfig{
			Enabled: true,
			Title:   "Test API",
			Version: "0.0.1",
		},
	}
}

var TestPasswords = struct {
	Valid    string
	Wrong    string
	TooShort string
}{
	Valid:    "Password123",
	Wrong:    "NotMyPassword1",
	TooShort: "Pass1",
}

type TestUser struct {
	Username    string
	Email       string
	Password    string
	AccountType string
	Role        string
}

var TestUsers = struct {
	Personal TestUser
	Brand    TestUser
	Admin    TestUser
}{
	Personal: TestUser{
		Username:    "seller",
		Email:       "seller@example.com",
		Password:    "Password123",
		AccountType: "personal",
		Role:        "user",
	},
	Brand: TestUser{
		Username:    "brand",
		Email:       "brand@example.com",
		Password:    "Password123",
		AccountType: "brand",
		Role:        "user",
	},
	Admin: TestUser{
		Username:    "admin",
		Email:       "admin@example.com",
		Password:    "Password123",
		AccountType: "personal",
		Role:        "admin",
	},
}
