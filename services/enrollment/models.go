package enrollment

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Enrollment is a user's two-factor state. Enabled implies Secret is set.
type Enrollment struct {
	gorm.Model
	UserID      uint        `json:"user_id" gorm:"uniqueIndex;not null"`
	Enabled     bool        `json:"enabled" gorm:"not null;default:false"`
	Secret      string      `json:"-" gorm:"size:64"`
	BackupCodes BackupCodes `json:"-"`
	EnabledAt   *time.Time  `json:"enabled_at"`
}

// BackupCodes is an ordered list persisted as a JSON array in a text column.
type BackupCodes []string

func (BackupCodes) GormDataType() string {
	return "text"
}

func (b BackupCodes) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	data, err := json.Marshal([]string(b))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (b *BackupCodes) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*b = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported backup codes column type %T", value)
	}

	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return fmt.Errorf("failed to decode backup codes: %w", err)
	}
	*b = codes
	return nil
}

// Without returns a copy of b minus the first occurrence of code.
func (b BackupCodes) Without(code string) BackupCodes {
	out := make(BackupCodes, 0, len(b))
	removed := false
	for _, c := range b {
		if !removed && c == code {
			removed = true
			continue
		}
		out = append(out, c)
	}
	return out
}

type Status struct {
	Enabled          bool `json:"enabled"`
	BackupCodesCount int  `json:"backupCodesCount"`
}
