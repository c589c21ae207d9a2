package twofactor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"github.com/driplo/twofa/services/marker"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type EnrollmentChecker interface {
	IsEnabled(ctx context.Context, userID uint) (bool, error)
}

type MarkerService interface {
	ValidateVerified(token string, userID uint) (*marker.Claims, error)
	RedirectCookie(target string) *http.Cookie
}

type IdentityFunc func(c echo.Context) (uint, bool)

type Config struct {
	TwoFactor  *config.TwoFactorConfig
	Rules      []Rule
	Enrollment EnrollmentChecker
	Markers    MarkerService
	Identity   IdentityFunc
	Logger     *logging.Service
}

type Decision struct {
	State  State
	UserID uint
	Rule   string
	// Redirect is false for an unverified request that already targets the verify page.
	Redirect bool
	Err      error
}

type Gate struct {
	cfg   *config.TwoFactorConfig
	rules []Rule

	enrollment EnrollmentChecker
	markers    MarkerService
	identity   IdentityFunc
	logger     *logging.Service
}

func New(cfg Config) *Gate {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules(cfg.TwoFactor)
	}
	return &Gate{
		cfg:        cfg.TwoFactor,
		rules:      rules,
		enrollment: cfg.Enrollment,
		markers:    cfg.Markers,
		identity:   cfg.Identity,
		logger:     cfg.Logger,
	}
}

// Decide classifies the request. A fault while deciding yields StateNotRequired with Err set,
// so the request is let through.
func (g *Gate) Decide(c echo.Context) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = Decision{State: StateNotRequired, UserID: d.UserID, Err: fmt.Errorf("panic in two-factor gate: %v", r)}
		}
	}()

	path := c.Request().URL.Path

	if rule, ok := classify(g.rules, path); ok {
		return Decision{State: rule.Outcome, Rule: rule.Name}
	}

	userID, ok := g.identity(c)
	if !ok {
		return Decision{State: StateUnauthenticated}
	}
	d.UserID = userID

	enabled, err := g.enrollment.IsEnabled(c.Request().Context(), userID)
	if err != nil {
		return Decision{State: StateNotRequired, UserID: userID, Err: fmt.Errorf("failed to load enrollment: %w", err)}
	}
	if !enabled {
		return Decision{State: StateNotRequired, UserID: userID}
	}

	if cookie, err := c.Cookie(g.cfg.VerifiedCookie); err == nil && cookie.Value != "" {
		if _, err := g.markers.ValidateVerified(cookie.Value, userID); err == nil {
			return Decision{State: StateVerified, UserID: userID}
		}
	}

	return Decision{
		State:    StateUnverified,
		UserID:   userID,
		Redirect: !matchPrefix(g.cfg.VerifyPage)(path),
	}
}

func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := g.Decide(c)

			if d.Err != nil {
				if g.logger != nil {
					g.logger.Error("two-factor gate fault, allowing request",
						zap.Uint("user_id", d.UserID),
						zap.String("path", c.Request().URL.Path),
						zap.Error(d.Err))
				}
				return next(c)
			}

			if d.State != StateUnverified || !d.Redirect {
				return next(c)
			}

			target := c.Request().URL.RequestURI()
			c.SetCookie(g.markers.RedirectCookie(target))

			if g.logger != nil {
				g.logger.Debug("two-factor verification required",
					zap.Uint("user_id", d.UserID),
					zap.String("target", target))
			}

			return c.Redirect(http.StatusFound, g.cfg.VerifyPage)
		}
	}
}
