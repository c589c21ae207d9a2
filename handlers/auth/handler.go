package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/openapi"
	"github.com/driplo/twofa/services/audit"
	userauth "github.com/driplo/twofa/services/auth"
	"github.com/driplo/twofa/services/enrollment"
	"github.com/driplo/twofa/services/logging"
	"github.com/driplo/twofa/services/marker"
	"github.com/driplo/twofa/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgInvalidRequest     = "Invalid request format"
)

type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}

type Deps struct {
	Config     *config.Config
	Users      *userauth.Service
	Enrollment *enrollment.Service
	Markers    *marker.Service
	Audit      Auditor
	Docs       *openapi.Document
	Logger     *logging.Service
}

type Handler struct {
	cfg        *config.TwoFactorConfig
	users      *userauth.Service
	enrollment *enrollment.Service
	markers    *marker.Service
	audit      Auditor
	docs       *openapi.Document
	logger     *logging.Service
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		cfg:        &deps.Config.TwoFactor,
		users:      deps.Users,
		enrollment: deps.Enrollment,
		markers:    deps.Markers,
		audit:      deps.Audit,
		docs:       deps.Docs,
		logger:     deps.Logger,
	}
}

// Register mounts the login, logout and current-user routes. limiters apply to login only.
func (h *Handler) Register(e *echo.Echo, limiters ...echo.MiddlewareFunc) {
	e.POST("/login", h.Login, limiters...)
	e.POST("/logout", h.Logout, session.RequireAuth())
	e.GET("/api/me", h.Me, session.RequireAuth())

	h.document()
}

// Login checks credentials and binds the user to a fresh session.
// Any marker left by a previous session is cleared so the second factor is asked again.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidRequest)
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()

	user, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, userauth.ErrInvalidCredentials) {
			h.record(c, 0, audit.EventLoginFailed, map[string]any{"email": req.Email})
			return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidCredentials)
		}
		return err
	}

	if err := session.Login(c, user.ID); err != nil {
		return err
	}
	h.expireCookie(c, h.cfg.VerifiedCookie)

	pending, err := h.enrollment.IsEnabled(ctx, user.ID)
	if err != nil {
		h.logger.Warn("could not load two-factor state after login", zap.Uint("user_id", user.ID), zap.Error(err))
		pending = false
	}

	redirect := "/"
	if pending {
		redirect = h.cfg.VerifyPage
	}

	h.record(c, user.ID, audit.EventLogin, nil)
	h.logger.Info("user logged in", zap.Uint("user_id", user.ID), zap.Bool("two_factor_pending", pending))

	return c.JSON(http.StatusOK, LoginResponse{
		Success:          true,
		User:             toUserResponse(user),
		TwoFactorPending: pending,
		Redirect:         redirect,
	})
}

// Logout destroys the session and drops the two-factor cookies with it.
func (h *Handler) Logout(c echo.Context) error {
	userID, _ := session.Identity(c)

	if err := session.Logout(c); err != nil {
		return err
	}
	h.expireCookie(c, h.cfg.VerifiedCookie)
	h.expireCookie(c, h.cfg.RedirectCookie)

	h.record(c, userID, audit.EventLogout, nil)
	h.logger.Info("user logged out", zap.Uint("user_id", userID))

	return c.JSON(http.StatusOK, LogoutResponse{Success: true})
}

func (h *Handler) Me(c echo.Context) error {
	userID, _ := session.Identity(c)
	ctx := c.Request().Context()

	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, userauth.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
		}
		return err
	}

	enabled, err := h.enrollment.IsEnabled(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MeResponse{
		User:             toUserResponse(user),
		TwoFactorEnabled: enabled,
	})
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

func (h *Handler) expireCookie(c echo.Context, name string) {
	c.SetCookie(h.markers.ExpiredCookie(name))
}

func toUserResponse(user *userauth.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		AccountType: user.AccountType,
		Role:        user.Role,
	}
}
