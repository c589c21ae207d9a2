package twofactor

import (
	"errors"
	"net/http"

	"github.com/driplo/twofa/services/audit"
	"github.com/driplo/twofa/services/auth"
	"github.com/driplo/twofa/services/enrollment"
	"github.com/driplo/twofa/services/mail"
	"github.com/driplo/twofa/services/totp"
	"github.com/labstack/echo/v4"
)

// Disable turns off 2FA after re-authentication with both the password and a current code.
// Accounts for which 2FA is mandatory cannot disable it.
func (h *Handler) Disable(c echo.Context) error {
	var req DisableRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	userID := h.userID(c)

	// lookup failures fail the request closed
	required, err := h.users.TwoFactorRequired(ctx, userID)
	if err != nil {
		return err
	}
	if required {
		return echo.NewHTTPError(http.StatusForbidden, msgMandatory)
	}

	record, err := h.enrollment.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !record.Enabled {
		return badRequest(msgNotEnabled)
	}

	if err := h.checkCode(c, userID, record, req.Code); err != nil {
		return err
	}

	if err := h.users.CheckPassword(ctx, userID, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return badRequest(msgInvalidPassword)
		}
		return err
	}

	if err := h.enrollment.Disable(ctx, userID); err != nil {
		if errors.Is(err, enrollment.ErrNotEnabled) {
			return badRequest(msgNotEnabled)
		}
		return err
	}

	h.expireCookie(c, h.cfg.VerifiedCookie)
	h.expireCookie(c, h.cfg.SetupCookie)

	h.record(c, userID, audit.EventTwoFactorDisabled, nil)
	h.notify(c, userID, mail.EventTwoFactorDisabled)

	return c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Two-factor authentication has been disabled",
	})
}

// checkCode accepts a current TOTP code or one of the stored backup codes without consuming it.
func (h *Handler) checkCode(c echo.Context, userID uint, record *enrollment.Enrollment, code string) error {
	err := h.totp.VerifyAndClaim(c.Request().Context(), userID, record.Secret, code)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, totp.ErrInvalidCode):
		if _, ok := totp.VerifyBackupCode(code, record.BackupCodes); ok {
			return nil
		}
	case errors.Is(err, totp.ErrCodeAlreadyUsed):
	default:
		return err
	}

	h.record(c, userID, audit.EventTwoFactorFailed, map[string]any{"action": "disable"})
	return badRequest(msgInvalidCode)
}

func (h *Handler) BackupCodesCount(c echo.Context) error {
	record, err := h.enrollment.Get(c.Request().Context(), h.userID(c))
	if err != nil {
		return err
	}
	if !record.Enabled {
		return badRequest(msgNotEnabled)
	}

	return c.JSON(http.StatusOK, BackupCodesCountResponse{Success: true, Count: len(record.BackupCodes)})
}

// RegenerateBackupCodes replaces every backup code after a TOTP check and returns the new set once.
func (h *Handler) RegenerateBackupCodes(c echo.Context) error {
	var req RegenerateRequest
	if err := h.bind(c, &req); err != nil {
		return err
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

	if err := h.totp.VerifyAndClaim(ctx, userID, record.Secret, req.Code); err != nil {
		if errors.Is(err, totp.ErrInvalidCode) || errors.Is(err, totp.ErrCodeAlreadyUsed) {
			h.record(c, userID, audit.EventTwoFactorFailed, map[string]any{"action": "regenerate_backup_codes"})
			return badRequest(msgInvalidCode)
		}
		return err
	}

	codes, err := totp.GenerateBackupCodes()
	if err != nil {
		return err
	}

	if err := h.enrollment.ReplaceBackupCodes(ctx, userID, codes); err != nil {
		if errors.Is(err, enrollment.ErrNotEnabled) {
			return badRequest(msgNotEnabled)
		}
		return err
	}

	h.record(c, userID, audit.EventBackupCodesRegenerated, nil)
	h.notify(c, userID, mail.EventBackupCodesRegenerated)

	return c.JSON(http.StatusOK, BackupCodesResponse{Success: true, BackupCodes: codes})
}

func (h *Handler) Status(c echo.Context) error {
	ctx := c.Request().Context()
	userID := h.userID(c)

	status, err := h.enrollment.Status(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, StatusResponse{
		Enabled:          status.Enabled,
		Required:         h.users.IsTwoFactorRequired(ctx, userID),
		BackupCodesCount: status.BackupCodesCount,
	})
}
