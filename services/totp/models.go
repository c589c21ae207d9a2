package totp

// Key is a freshly generated enrollment secret and its otpauth:// provisioning URI.
type Key struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// UsedCode records a TOTP code accepted for a user so it cannot be replayed inside the window.
type UsedCode struct {
	ID     uint   `gorm:"primaryKey"`
	UserID uint   `gorm:"uniqueIndex:idx_user_code,priority:1;not null"`
	Code   string `gorm:"uniqueIndex:idx_user_code,priority:2;size:16;not null"`
	UsedAt int64  `gorm:"index:idx_used_at;not null"`
}
