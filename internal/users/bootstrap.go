package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/security"
)

const generatedPasswordLength = 16

type adminStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// AdminSeed describes the first administrator account.
type AdminSeed struct {
	Username string
	Password string
	Nickname string
}

// SeedResult reports what EnsureAdmin did. GeneratedPassword is set only when the seed had
// no password and the account was created.
type SeedResult struct {
	User              *UserDTO
	Created           bool
	GeneratedPassword string
}

// EnsureAdmin creates the administrator unless the username is already taken. An existing
// account is left untouched whatever its role.
func EnsureAdmin(ctx context.Context, store adminStore, hasher security.Hasher, seed AdminSeed, now time.Time) (*SeedResult, error) {
	username := strings.TrimSpace(seed.Username)
	if username == "" {
		return nil, fmt.Errorf("admin username is required")
	}

	existing, err := store.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return &SeedResult{User: FromModel(existing)}, nil
	case !IsNotFound(err):
		return nil, fmt.Errorf("lookup admin: %w", err)
	}

	result := &SeedResult{Created: true}
	password := seed.Password
	if password == "" {
		password, err = security.GenerateTempPassword(generatedPasswordLength)
		if err != nil {
			return nil, fmt.Errorf("generate admin password: %w", err)
		}
		result.GeneratedPassword = password
	}
	salt, hash, err := hasher.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	nickname := strings.TrimSpace(seed.Nickname)
	if nickname == "" {
		nickname = username
	}
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		Role:         enums.RoleAdmin,
		Status:       enums.UserStatusEnabled,
		Nickname:     nickname,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	result.User = FromModel(user)
	return result, nil
}
