package twofactor

import (
	"context"
	"net/http"
	"strings"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/openapi"
	"github.com/driplo/twofa/services/audit"
	"github.com/driplo/twofa/services/auth"
	"github.com/driplo/twofa/services/enrollment"
	"github.com/driplo/twofa/services/logging"
	"github.com/driplo/twofa/services/marker"
	"github.com/driplo/twofa/services/totp"
	"github.com/driplo/twofa/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	msgInvalidCode     = "Invalid verification code"
	msgNotEnabled      = "Two-factor authentication is not enabled"
	msgAlreadyEnabled  = "Two-factor authentication is already enabled"
	msgNoPendingSetup  = "No pending two-factor setup, start again"
	msgCodeRequired    = "Verification code is required"
	msgInvalidPassword = "Invalid password"
	msgMandatory       = "Two-factor authentication is required for your account"
	msgInvalidRequest  = "Invalid request format"
)

type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}

type Notifier interface {
	SendSecurityNotice(ctx context.Context, to, event string, data map[string]any) error
}

type IdentityFunc func(c echo.Context) (uint, bool)

type Deps struct {
	Config     *config.Config
	Enrollment *enrollment.Service
	TOTP       *totp.Service
	Markers    *marker.Service
	Users      *auth.Service
	Audit      Auditor
	Notifier   Notifier
	Identity   IdentityFunc
	Docs       *openapi.Document
	Logger     *logging.Service
}

type Handler struct {
	cfg        *config.TwoFactorConfig
	enrollment *enrollment.Service
	totp       *totp.Service
	markers    *marker.Service
	users      *auth.Service
	audit      Auditor
	notifier   Notifier
	identity   IdentityFunc
	docs       *openapi.Document
	logger     *logging.Service
}

func NewHandler(deps Deps) *Handler {
	identity := deps.Identity
	if identity == nil {
		identity = session.Identity
	}
	return &Handler{
		cfg:        &deps.Config.TwoFactor,
		enrollment: deps.Enrollment,
		totp:       deps.TOTP,
		markers:    deps.Markers,
		users:      deps.Users,
		audit:      deps.Audit,
		notifier:   deps.Notifier,
		identity:   identity,
		docs:       deps.Docs,
		logger:     deps.Logger,
	}
}

// Register mounts the API under the configured prefix and the verify page. Both require a session;
// limiter middleware applies to the API group only.
func (h *Handler) Register(e *echo.Echo, limiters ...echo.MiddlewareFunc) {
	requireAuth := h.requireIdentity()

	g := e.Group(h.cfg.APIPrefix, append([]echo.MiddlewareFunc{requireAuth}, limiters...)...)
	g.POST("/enable", h.Enable)
	g.POST("/verify", h.Verify)
	g.POST("/disable", h.Disable)
	g.GET("/backup-codes", h.BackupCodesCount)
	g.POST("/backup-codes", h.RegenerateBackupCodes)
	g.GET("/status", h.Status)

	e.GET(h.cfg.VerifyPage, h.VerifyPage, requireAuth)

	h.document()
}

func (h *Handler) requireIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := h.identity(c); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			return next(c)
		}
	}
}

func (h *Handler) userID(c echo.Context) uint {
	id, _ := h.identity(c)
	return id
}

func (h *Handler) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidRequest)
	}
	return c.Validate(req)
}

func (h *Handler) record(c echo.Context, userID uint, typ audit.EventType, metadata map[string]any) {
	if h.audit == nil {
		return
	}
	h.audit.Record(c.Request().Context(), audit.Event{
		UserID:    userID,
		Type:      typ,
		Metadata:  metadata,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
}

// notify sends a security e-mail. Failures are logged and never reach the caller.
func (h *Handler) notify(c echo.Context, userID uint, event string) {
	if h.notifier == nil {
		return
	}

	ctx := c.Request().Context()
	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		h.logger.Warn("skipping security notice, user lookup failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}

	device := audit.DescribeUserAgent(c.Request().UserAgent())
	data := map[string]any{
		"Username":  user.Username,
		"IPAddress": c.RealIP(),
		"Browser":   device.Browser,
		"OS":        device.OS,
	}

	if err := h.notifier.SendSecurityNotice(ctx, user.Email, event, data); err != nil {
		h.logger.Warn("failed to send security notice",
			zap.Uint("user_id", userID),
			zap.String("event", event),
			zap.Error(err))
	}
}

func (h *Handler) expireCookie(c echo.Context, name string) {
	c.SetCookie(h.markers.ExpiredCookie(name))
}

// safeRedirect keeps only same-origin absolute paths.
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.ContainsAny(target, "\\\r\n") {
		return "/"
	}
	return target
}

func (h *Handler) redirectTarget(c echo.Context) string {
	cookie, err := c.Cookie(h.cfg.RedirectCookie)
	if err != nil {
		return "/"
	}
	return safeRedirect(cookie.Value)
}

// formatManualKey groups the secret in blocks of four for typing into an authenticator.
func formatManualKey(secret string) string {
	var b strings.Builder
	for i, r := range secret {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, message)
}
