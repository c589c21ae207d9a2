package csrf

import (
	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const ContextKey = "csrf"

// Middleware checks the token on unsafe methods. Disabled config yields a pass-through.
func Middleware(cfg *config.CSRFConfig) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLength:    cfg.TokenLength,
		TokenLookup:    cfg.TokenLookup,
		ContextKey:     ContextKey,
		CookieName:     cfg.CookieName,
		CookiePath:     cfg.CookiePath,
		CookieMaxAge:   cfg.CookieMaxAge,
		CookieSecure:   cfg.CookieSecure,
		CookieHTTPOnly: false,
		CookieSameSite: session.MapSameSite(cfg.CookieSameSite),
	})
}

func GetToken(c echo.Context) string {
	if token, ok := c.Get(ContextKey).(string); ok {
		return token
	}
	return ""
}
