package twofactor

import (
	"errors"
	"net/http"

	"github.com/driplo/twofa/services/audit"
	"github.com/driplo/twofa/services/enrollment"
	"github.com/driplo/twofa/services/mail"
	"github.com/driplo/twofa/services/totp"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Enable runs the two enrollment phases. start hands out a secret carried in a signed cookie;
// verify persists it only once the user proves they can produce a code from it.
func (h *Handler) Enable(c echo.Context) error {
	var req EnableRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	if req.Action == ActionStart {
		return h.startEnrollment(c)
	}
	return h.completeEnrollment(c, req.Code)
}

func (h *Handler) startEnrollment(c echo.Context) error {
	ctx := c.Request().Context()
	userID := h.userID(c)

	record, err := h.enrollment.Get(ctx, userID)
	if err != nil {
		return err
	}
	if record.Enabled {
		return badRequest(msgAlreadyEnabled)
	}

	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	key, err := h.totp.GenerateSecret(user.DisplayName())
	if err != nil {
		return err
	}

	qrCode, err := h.totp.QRCode(key.URI)
	if err != nil {
		return err
	}

	token, expiresAt, err := h.markers.IssueSetup(userID, key.Secret)
	if err != nil {
		return err
	}
	c.SetCookie(h.markers.SetupCookie(token, expiresAt))

	h.logger.Info("two-factor enrollment started", zap.Uint("user_id", userID))

	return c.JSON(http.StatusOK, EnableStartResponse{
		Success:        true,
		Secret:         key.Secret,
		QRCode:         qrCode,
		ManualEntryKey: formatManualKey(key.Secret),
		Required:       user.RequiresTwoFactor(),
	})
}

func (h *Handler) completeEnrollment(c echo.Context, code string) error {
	ctx := c.Request().Context()
	userID := h.userID(c)

	if code == "" {
		return badRequest(msgCodeRequired)
	}

	cookie, err := c.Cookie(h.cfg.SetupCookie)
	if err != nil || cookie.Value == "" {
		return badRequest(msgNoPendingSetup)
	}

	secret, err := h.markers.ParseSetup(cookie.Value, userID)
	if err != nil {
		h.logger.Warn("rejected two-factor setup token", zap.Uint("user_id", userID), zap.Error(err))
		h.expireCookie(c, h.cfg.SetupCookie)
		return badRequest(msgNoPendingSetup)
	}

	if err := h.totp.VerifyAndClaim(ctx, userID, secret, code); err != nil {
		if errors.Is(err, totp.ErrInvalidCode) || errors.Is(err, totp.ErrCodeAlreadyUsed) {
			return badRequest(msgInvalidCode)
		}
		return err
	}

	codes, err := totp.GenerateBackupCodes()
	if err != nil {
		return err
	}

	if err := h.enrollment.Enable(ctx, userID, secret, codes); err != nil {
		if errors.Is(err, enrollment.ErrAlreadyEnabled) {
			return badRequest(msgAlreadyEnabled)
		}
		return err
	}

	h.expireCookie(c, h.cfg.SetupCookie)

	token, expiresAt, err := h.markers.IssueVerified(userID)
	if err != nil {
		return err
	}
	c.SetCookie(h.markers.VerifiedCookie(token, expiresAt))

	h.record(c, userID, audit.EventTwoFactorEnabled, map[string]any{"backup_codes": len(codes)})
	h.notify(c, userID, mail.EventTwoFactorEnabled)

	return c.JSON(http.StatusOK, BackupCodesResponse{Success: true, BackupCodes: codes})
}
