package auth

import (
	"time"

	"github.com/angelmondragon/orderdesk/internal/users"
)

// LoginRequest captures the credentials sent with the login action.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued session token and the sanitized user.
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *users.UserDTO `json:"user"`
}

// ChangePasswordRequest rotates the caller's credentials.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}
