// Package auth holds the authenticated identity shared by the service and transport layers.
package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
)

// Principal is the identity resolved from a session token.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Nickname string
	Role     enums.Role
	GameID   *uuid.UUID
	Status   enums.UserStatus
}

// PrincipalFromUser snapshots the authorization-relevant fields of u.
func PrincipalFromUser(u *models.User) Principal {
	if u == nil {
		return Principal{}
	}
	var gameID *uuid.UUID
	if u.GameID != nil {
		id := *u.GameID
		gameID = &id
	}
	return Principal{
		UserID:   u.ID,
		Username: u.Username,
		Nickname: u.Nickname,
		Role:     u.Role,
		GameID:   gameID,
		Status:   u.Status,
	}
}

func (p Principal) IsAdmin() bool    { return p.Role == enums.RoleAdmin }
func (p Principal) IsCS() bool       { return p.Role == enums.RoleCS }
func (p Principal) IsSupplier() bool { return p.Role == enums.RoleSupplier }

// HasGame reports whether the principal is bound to a tenant.
func (p Principal) HasGame() bool {
	return p.GameID != nil && *p.GameID != uuid.Nil
}

// InGame reports whether the principal belongs to gameID.
func (p Principal) InGame(gameID uuid.UUID) bool {
	return p.HasGame() && *p.GameID == gameID
}

// IsDisabled reports whether the account has been switched off by an admin.
func (p Principal) IsDisabled() bool {
	return p.Status == enums.UserStatusDisabled
}

// DisplayName prefers the nickname and falls back to the username.
func (p Principal) DisplayName() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.Username
}

type principalKey struct{}

// WithPrincipal stores p on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
