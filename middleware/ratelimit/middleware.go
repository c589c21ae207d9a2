package ratelimit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

// Middleware enforces Rate hits per Period for each key. Store errors let the request through.
func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.KeyGenerator(c)

			count, resetAt, err := cfg.Store.Get(ctx, key)
			if err != nil {
				cfg.Logger.Warn("rate limit lookup failed, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			if count >= cfg.Rate {
				setHeaders(c, cfg.Rate, 0, resetAt)
				cfg.Logger.Warn("rate limit exceeded", zap.String("key", key), zap.String("path", c.Path()))
				return cfg.OnLimitReached(c)
			}

			if cfg.CountMode == config.CountAll {
				newCount, newReset, err := cfg.Store.Increment(ctx, key, cfg.Period)
				if err != nil {
					cfg.Logger.Warn("rate limit increment failed", zap.String("key", key), zap.Error(err))
				} else {
					setHeaders(c, cfg.Rate, max(cfg.Rate-newCount, 0), newReset)
				}
				return next(c)
			}

			if resetAt.IsZero() {
				resetAt = time.Now().Add(cfg.Period)
			}
			setHeaders(c, cfg.Rate, max(cfg.Rate-count-1, 0), resetAt)

			err = next(c)

			status := responseStatus(c, err)
			shouldCount := false
			switch cfg.CountMode {
			case config.CountFailures:
				shouldCount = status >= 400
			case config.CountSuccess:
				shouldCount = status < 400
			}

			if shouldCount {
				if _, _, incErr := cfg.Store.Increment(ctx, key, cfg.Period); incErr != nil {
					cfg.Logger.Warn("rate limit increment failed", zap.String("key", key), zap.Error(incErr))
				}
			}

			return err
		}
	}
}

func setHeaders(c echo.Context, limit, remaining int, resetAt time.Time) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// responseStatus resolves the status a handler produced, including errors not yet rendered.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		if status := c.Response().Status; status != 0 {
			return status
		}
		return http.StatusOK
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return "rate_limit:ip:" + realIP
}

// IdentityKeyGenerator keys by user id for authenticated requests and by client IP otherwise.
func IdentityKeyGenerator(scope string, identity func(c echo.Context) (uint, bool)) func(c echo.Context) string {
	return func(c echo.Context) string {
		if identity != nil {
			if userID, ok := identity(c); ok {
				return "rate_limit:" + scope + ":user:" + strconv.FormatUint(uint64(userID), 10)
			}
		}
		realIP := c.RealIP()
		if realIP == "" {
			realIP = "fallback"
		}
		return "rate_limit:" + scope + ":ip:" + realIP
	}
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests. Please try again later.")
}
