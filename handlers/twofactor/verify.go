package twofactor

import (
	"errors"
	"net/http"

	"github.com/driplo/twofa/services/audit"
	"github.com/driplo/twofa/services/totp"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Verify checks a TOTP or backup code for an enrolled user and issues the session marker.
// Storage failures are returned as internal errors and never let the request through.
func (h *Handler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	if req.Type == "" {
		req.Type = CodeTypeTOTP
	}

	ctx := c.Request().Context()
	userID := h.userID(c)

	record, err := h.enrollment.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !record.Enabled {
		return badRequest(msgNotEnabled)
	}

	var valid bool
	switch req.Type {
	case CodeTypeBackup:
		valid, err = h.enrollment.ConsumeBackupCode(ctx, userID, req.Code)
		if err != nil {
			return err
		}
	default:
		err = h.totp.VerifyAndClaim(ctx, userID, record.Secret, req.Code)
		switch {
		case err == nil:
			valid = true
		case errors.Is(err, totp.ErrInvalidCode), errors.Is(err, totp.ErrCodeAlreadyUsed):
		default:
			return err
		}
	}

	if !valid {
		h.logger.Warn("two-factor verification failed", zap.Uint("user_id", userID), zap.String("type", req.Type))
		h.record(c, userID, audit.EventTwoFactorFailed, map[string]any{"type": req.Type})
		return badRequest(msgInvalidCode)
	}

	token, expiresAt, err := h.markers.IssueVerified(userID)
	if err != nil {
		return err
	}
	c.SetCookie(h.markers.VerifiedCookie(token, expiresAt))

	redirect := h.redirectTarget(c)
	h.expireCookie(c, h.cfg.RedirectCookie)

	if req.Type == CodeTypeBackup {
		h.record(c, userID, audit.EventBackupCodeUsed, map[string]any{"remaining": len(record.BackupCodes) - 1})
	}
	h.record(c, userID, audit.EventTwoFactorVerified, map[string]any{"type": req.Type})

	h.logger.Info("two-factor verification succeeded", zap.Uint("user_id", userID), zap.String("type", req.Type))

	return c.JSON(http.StatusOK, VerifyResponse{Success: true, Redirect: redirect})
}

// VerifyPage tells the client whether the second factor is still outstanding and where to go afterwards.
func (h *Handler) VerifyPage(c echo.Context) error {
	ctx := c.Request().Context()
	userID := h.userID(c)

	enabled, err := h.enrollment.IsEnabled(ctx, userID)
	if err != nil {
		return err
	}

	required := enabled
	if enabled {
		if cookie, err := c.Cookie(h.cfg.VerifiedCookie); err == nil {
			if _, err := h.markers.ValidateVerified(cookie.Value, userID); err == nil {
				required = false
			}
		}
	}

	return c.JSON(http.StatusOK, VerifyPageResponse{
		Required: required,
		Redirect: h.redirectTarget(c),
	})
}
