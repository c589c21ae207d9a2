package auth

import "github.com/driplo/twofa/server"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	AccountType string `json:"accountType"`
	Role        string `json:"role"`
}

type LoginResponse struct {
	Success bool         `json:"success"`
	User    UserResponse `json:"user"`
	// TwoFactorPending is set when the account must pass the second factor before using the site.
	TwoFactorPending bool   `json:"twoFactorPending"`
	Redirect         string `json:"redirect" doc:"where the client should navigate next"`
}

type LogoutResponse struct {
	Success bool `json:"success"`
}

type MeResponse struct {
	User             UserResponse `json:"user"`
	TwoFactorEnabled bool         `json:"twoFactorEnabled"`
}

type ErrorResponse = server.ErrorResponse
