package twofactor

const (
	ActionStart  = "start"
	ActionVerify = "verify"

	CodeTypeTOTP   = "totp"
	CodeTypeBackup = "backup"
)

type EnableRequest struct {
	Action string `json:"action" validate:"required,oneof=start verify" doc:"start or verify"`
	Code   string `json:"code,omitempty" doc:"code from the authenticator app, required for verify"`
}

type EnableStartResponse struct {
	Success        bool   `json:"success"`
	Secret         string `json:"secret"`
	QRCode         string `json:"qrCode" doc:"PNG data URL of the otpauth URI"`
	ManualEntryKey string `json:"manualEntryKey"`
	Required       bool   `json:"required"`
}

type BackupCodesResponse struct {
	Success     bool     `json:"success"`
	BackupCodes []string `json:"backupCodes"`
}

type VerifyRequest struct {
	Code string `json:"code" validate:"required"`
	Type string `json:"type,omitempty" validate:"omitempty,oneof=totp backup" doc:"totp (default) or backup"`
}

type VerifyResponse struct {
	Success  bool   `json:"success"`
	Redirect string `json:"redirect"`
}

type DisableRequest struct {
	Code     string `json:"code" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegenerateRequest struct {
	Code string `json:"code" validate:"required"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type BackupCodesCountResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type StatusResponse struct {
	Enabled          bool `json:"enabled"`
	Required         bool `json:"required"`
	BackupCodesCount int  `json:"backupCodesCount"`
}

type VerifyPageResponse struct {
	Required bool   `json:"required"`
	Redirect string `json:"redirect"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
