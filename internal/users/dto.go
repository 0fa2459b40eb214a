package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/types"
)

// UnassignedGameName is shown for users without a game.
const UnassignedGameName = "unassigned"

// UserDTO is the transport shape that omits credentials and session state.
type UserDTO struct {
	ID        uuid.UUID        `json:"id"`
	Username  string           `json:"username"`
	Nickname  string           `json:"nickname"`
	Role      enums.Role       `json:"role"`
	Status    enums.UserStatus `json:"status"`
	GameID    *uuid.UUID       `json:"game_id,omitempty"`
	GameName  string           `json:"game_name,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// SupplierDTO is the minimal shape used to pick a fulfiller.
type SupplierDTO struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Nickname string    `json:"nickname"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Username:  u.Username,
		Nickname:  u.Nickname,
		Role:      u.Role,
		Status:    u.Status,
		GameID:    u.GameID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func fromListRow(row UserWithGame) UserDTO {
	dto := FromModel(&row.User)
	switch {
	case row.GameName != nil:
		dto.GameName = *row.GameName
	case row.Role.RequiresGame() || row.GameID != nil:
		dto.GameName = UnassignedGameName
	}
	return *dto
}

func supplierFromModel(u models.User) SupplierDTO {
	return SupplierDTO{ID: u.ID, Username: u.Username, Nickname: u.Nickname}
}

// AddUserInput carries the admin's request to create an account.
type AddUserInput struct {
	Username string
	Password string
	Role     enums.Role
	Nickname string
	GameID   *uuid.UUID
}

// UpdateUserInput carries optional field changes. Nil pointers are left untouched;
// GameID distinguishes "absent" from an explicit null.
type UpdateUserInput struct {
	UserID   uuid.UUID
	Role     *enums.Role
	Status   *enums.UserStatus
	Nickname *string
	GameID   types.NullableUUID
}

// Empty reports whether no change was requested.
func (in UpdateUserInput) Empty() bool {
	return in.Role == nil && in.Status == nil && in.Nickname == nil && !in.GameID.Valid
}

// ListUsersInput filters the admin user listing.
type ListUsersInput struct {
	Role     enums.Role
	Status   enums.UserStatus
	Page     int
	PageSize int
}
