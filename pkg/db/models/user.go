package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/enums"
)

// User is an operator account: admin, customer-service agent, or supplier.
type User struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Username       string           `gorm:"column:username;type:text;not null;uniqueIndex"`
	PasswordHash   string           `gorm:"column:password_hash;not null"`
	Salt           string           `gorm:"column:salt;not null"`
	Role           enums.Role       `gorm:"column:role;type:text;not null"`
	GameID         *uuid.UUID       `gorm:"column:game_id;type:uuid;index"`
	Status         enums.UserStatus `gorm:"column:status;type:text;not null;default:'enabled'"`
	Token          *string          `gorm:"column:token;uniqueIndex"`
	TokenExpiresAt *time.Time       `gorm:"column:token_expires_at"`
	Nickname       string           `gorm:"column:nickname;not null;default:''"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// DisplayName prefers the nickname and falls back to the username.
func (u User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}
