package auth

import "gorm.io/gorm"

const (
	AccountPersonal = "personal"
	AccountBrand    = "brand"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	gorm.Model
	Email        string `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Username     string `json:"username" gorm:"size:100"`
	PasswordHash string `json:"-" gorm:"not null"`
	AccountType  string `json:"account_type" gorm:"size:20;not null;default:personal"`
	Role         string `json:"role" gorm:"size:20;not null;default:user"`
}

// RequiresTwoFactor reports whether the account class makes the second factor mandatory.
func (u *User) RequiresTwoFactor() bool {
	return u.AccountType == AccountBrand || u.Role == RoleAdmin
}

// DisplayName labels the account in authenticator apps. Accounts without a username fall back to the email.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
