package twofactor

import "net/http"

const docTag = "two-factor"

func (h *Handler) document() {
	if h.docs == nil {
		return
	}

	h.docs.Tag(docTag, "Enrollment, verification and management of the second factor")
	prefix := h.cfg.APIPrefix

	h.docs.Operation(http.MethodPost, prefix+"/enable").
		Summary("Start or complete two-factor enrollment").
		Description("action=start returns a new secret and sets the setup cookie. action=verify checks a code against it, enables 2FA and returns the backup codes once.").
		Tags(docTag).
		Body(EnableRequest{}, "Enrollment step").
		Response(http.StatusOK, EnableStartResponse{}, "Secret generated (start) or backup codes (verify)").
		Response(http.StatusBadRequest, ErrorResponse{}, "Already enabled, missing setup or invalid code").
		RequiresSession().
		Build()

	h.docs.Operation(http.MethodPost, prefix+"/verify").
		Summary("Verify the second factor for this session").
		Tags(docTag).
		Body(VerifyRequest{}, "TOTP or backup code").
		Response(http.StatusOK, VerifyResponse{}, "Verified; sets the session marker cookie").
		Response(http.StatusBadRequest, ErrorResponse{}, "Not enabled or invalid code").
		Response(http.StatusTooManyRequests, ErrorResponse{}, "Too many failed attempts").
		RequiresSession().
		Build()

	h.docs.Operation(http.MethodPost, prefix+"/disable").
		Summary("Disable two-factor authentication").
		Tags(docTag).
		Body(DisableRequest{}, "Current code and password").
		Response(http.StatusOK, SuccessResponse{}, "Disabled").
		Response(http.StatusBadRequest, ErrorResponse{}, "Not enabled, invalid code or invalid password").
		Response(http.StatusForbidden, ErrorResponse{}, "Mandatory for this account").
		RequiresSession().
		Build()

	h.docs.Operation(http.MethodGet, prefix+"/backup-codes").
		Summary("Count remaining backup codes").
		Tags(docTag).
		Response(http.StatusOK, BackupCodesCountResponse{}, "Remaining codes").
		RequiresSession().
		Build()

	h.docs.Operation(http.MethodPost, prefix+"/backup-codes").
		Summary("Regenerate backup codes").
		Tags(docTag).
		Body(RegenerateRequest{}, "Current TOTP code").
		Response(http.StatusOK, BackupCodesResponse{}, "New backup codes").
		Response(http.StatusBadRequest, ErrorResponse{}, "Not enabled or invalid code").
		RequiresSession().
		Build()

	h.docs.Operation(http.MethodGet, prefix+"/status").
		Summary("Two-factor status for the current user").
		Tags(docTag).
		Response(http.StatusOK, StatusResponse{}, "Status").
		RequiresSession().
		Build()

	h.docs.Operation(http.MethodGet, h.cfg.VerifyPage).
		Summary("Verification page state").
		Tags(docTag).
		Response(http.StatusOK, VerifyPageResponse{}, "Whether verification is outstanding and where to go next").
		RequiresSession().
		Build()
}
