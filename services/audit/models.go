package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventLogin                  EventType = "login"
	EventLoginFailed            EventType = "login_failed"
	EventLogout                 EventType = "logout"
	EventTwoFactorEnabled       EventType = "2fa_enabled"
	EventTwoFactorDisabled      EventType = "2fa_disabled"
	EventTwoFactorVerified      EventType = "2fa_verified"
	EventTwoFactorFailed        EventType = "2fa_failed"
	EventBackupCodeUsed         EventType = "2fa_backup_code_used"
	EventBackupCodesRegenerated EventType = "2fa_backup_codes_regenerated"
)

type AuthEvent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Type      EventType `gorm:"size:64;index;not null" json:"type"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	UserAgent string    `gorm:"size:512" json:"user_agent"`
	Browser   string    `gorm:"size:128" json:"browser"`
	OS        string    `gorm:"size:128" json:"os"`
	Device    string    `gorm:"size:32" json:"device"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type Metadata map[string]any

func (Metadata) GormDataType() string {
	return "text"
}

func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported metadata column type %T", value)
	}

	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}
