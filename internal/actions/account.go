package actions

import (
	"context"

	"github.com/angelmondragon/orderdesk/internal/auth"
	"github.com/angelmondragon/orderdesk/internal/games"
	"github.com/angelmondragon/orderdesk/internal/users"
	pkgauth "github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/types"
)

// Account action tags.
const (
	ActionLogin              = "login"
	ActionCheckAuth          = "checkAuth"
	ActionLogout             = "logout"
	ActionChangePassword     = "changePassword"
	ActionGetGames           = "getGames"
	ActionAddGame            = "addGame"
	ActionUpdateGame         = "updateGame"
	ActionDeleteGame         = "deleteGame"
	ActionAdminAddUser       = "adminAddUser"
	ActionAdminUpdateUser    = "adminUpdateUser"
	ActionAdminDeleteUser    = "adminDeleteUser"
	ActionAdminListUsers     = "adminListUsers"
	ActionGetActiveSuppliers = "getActiveSuppliers"
)

// AccountDeps are the services behind the account endpoint.
type AccountDeps struct {
	Auth  auth.Service
	Users users.Service
	Games games.Service
}

type accountHandlers struct {
	AccountDeps
}

// NewAccountRegistry registers every account, game and user management action.
func NewAccountRegistry(deps AccountDeps) (*Registry, error) {
	h := accountHandlers{deps}
	return NewRegistry(
		Command{Name: ActionLogin, Public: true, Handler: h.login},
		Command{Name: ActionCheckAuth, Handler: h.checkAuth},
		Command{Name: ActionLogout, Handler: h.logout},
		Command{Name: ActionChangePassword, Handler: h.changePassword},
		Command{Name: ActionGetGames, Handler: h.getGames},
		Command{Name: ActionAddGame, Handler: h.addGame},
		Command{Name: ActionUpdateGame, Handler: h.updateGame},
		Command{Name: ActionDeleteGame, Handler: h.deleteGame},
		Command{Name: ActionAdminAddUser, Handler: h.adminAddUser},
		Command{Name: ActionAdminUpdateUser, Handler: h.adminUpdateUser},
		Command{Name: ActionAdminDeleteUser, Handler: h.adminDeleteUser},
		Command{Name: ActionAdminListUsers, Handler: h.adminListUsers},
		Command{Name: ActionGetActiveSuppliers, Handler: h.getActiveSuppliers},
	)
}

func (h accountHandlers) login(ctx context.Context, _ pkgauth.Principal, req Request) (*Result, error) {
	var in auth.LoginRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	session, err := h.Auth.Login(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "login successful", Data: session}, nil
}

func (h accountHandlers) checkAuth(ctx context.Context, p pkgauth.Principal, _ Request) (*Result, error) {
	user, err := h.Auth.CheckAuth(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Result{Message: "authenticated", Data: user}, nil
}

func (h accountHandlers) logout(ctx context.Context, p pkgauth.Principal, _ Request) (*Result, error) {
	if err := h.Auth.Logout(ctx, p); err != nil {
		return nil, err
	}
	return &Result{Message: "logged out"}, nil
}

func (h accountHandlers) changePassword(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in auth.ChangePasswordRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if err := h.Auth.ChangePassword(ctx, p, in); err != nil {
		return nil, err
	}
	return &Result{Message: "password changed"}, nil
}

type gameDetails struct {
	Name        string `json:"name" validate:"max=100"`
	Description string `json:"description" validate:"max=500"`
}

type gamePayload struct {
	GameID      string      `json:"gameId"`
	GameDetails gameDetails `json:"gameDetails"`
}

func (h accountHandlers) getGames(ctx context.Context, p pkgauth.Principal, _ Request) (*Result, error) {
	list, err := h.Games.List(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Result{Data: list}, nil
}

func (h accountHandlers) addGame(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in gamePayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	game, err := h.Games.Add(ctx, p, games.GameInput{Name: in.GameDetails.Name, Description: in.GameDetails.Description})
	if err != nil {
		return nil, err
	}
	return &Result{Message: "game added", Data: game}, nil
}

func (h accountHandlers) updateGame(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in gamePayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	id, err := parseID("gameId", in.GameID)
	if err != nil {
		return nil, err
	}
	game, err := h.Games.Update(ctx, p, id, games.GameInput{Name: in.GameDetails.Name, Description: in.GameDetails.Description})
	if err != nil {
		return nil, err
	}
	return &Result{Message: "game updated", Data: game}, nil
}

func (h accountHandlers) deleteGame(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in gamePayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	id, err := parseID("gameId", in.GameID)
	if err != nil {
		return nil, err
	}
	if err := h.Games.Delete(ctx, p, id); err != nil {
		return nil, err
	}
	return &Result{Message: "game deleted"}, nil
}

type newUserDetails struct {
	Username string  `json:"username" validate:"max=64"`
	Password string  `json:"password" validate:"max=128"`
	Role     string  `json:"role"`
	Nickname string  `json:"nickname" validate:"max=64"`
	GameID   *string `json:"game_id"`
}

type addUserPayload struct {
	NewUserDetails newUserDetails `json:"newUserDetails"`
}

func (h accountHandlers) adminAddUser(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in addUserPayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	gameID, err := parseOptionalID("game_id", in.NewUserDetails.GameID)
	if err != nil {
		return nil, err
	}
	user, err := h.Users.AddUser(ctx, p, users.AddUserInput{
		Username: in.NewUserDetails.Username,
		Password: in.NewUserDetails.Password,
		Role:     enums.Role(in.NewUserDetails.Role),
		Nickname: in.NewUserDetails.Nickname,
		GameID:   gameID,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Message: "user added", Data: user}, nil
}

type updateUserPayload struct {
	UserID      string             `json:"userIdToUpdate"`
	NewRole     *string            `json:"newRole"`
	NewStatus   statusField        `json:"newStatus"`
	NewNickname *string            `json:"newNickname"`
	GameID      types.NullableUUID `json:"game_id"`
}

func (h accountHandlers) adminUpdateUser(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in updateUserPayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	id, err := parseID("userIdToUpdate", in.UserID)
	if err != nil {
		return nil, err
	}
	var role *enums.Role
	if in.NewRole != nil {
		r := enums.Role(*in.NewRole)
		role = &r
	}
	user, err := h.Users.UpdateUser(ctx, p, users.UpdateUserInput{
		UserID:   id,
		Role:     role,
		Status:   in.NewStatus.ptr(),
		Nickname: in.NewNickname,
		GameID:   in.GameID,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Message: "user updated", Data: user}, nil
}

type deleteUserPayload struct {
	UserID string `json:"userIdToDelete"`
}

func (h accountHandlers) adminDeleteUser(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in deleteUserPayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	id, err := parseID("userIdToDelete", in.UserID)
	if err != nil {
		return nil, err
	}
	if err := h.Users.DeleteUser(ctx, p, id); err != nil {
		return nil, err
	}
	return &Result{Message: "user deleted"}, nil
}

type listUsersPayload struct {
	RoleFilter   string      `json:"roleFilter"`
	StatusFilter statusField `json:"statusFilter"`
	Page         int         `json:"page" validate:"gte=0"`
	PageSize     int         `json:"pageSize" validate:"gte=0,lte=100"`
}

func (h accountHandlers) adminListUsers(ctx context.Context, p pkgauth.Principal, req Request) (*Result, error) {
	var in listUsersPayload
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	page, err := h.Users.ListUsers(ctx, p, users.ListUsersInput{
		Role:     enums.Role(in.RoleFilter),
		Status:   in.StatusFilter.Value,
		Page:     in.Page,
		PageSize: in.PageSize,
	})
	if err != nil {
		return nil, err
	}
	total := page.Total
	return &Result{Data: page.Items, Total: &total}, nil
}

func (h accountHandlers) getActiveSuppliers(ctx context.Context, p pkgauth.Principal, _ Request) (*Result, error) {
	suppliers, err := h.Users.ListActiveSuppliers(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Result{Data: suppliers}, nil
}
