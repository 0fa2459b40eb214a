package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/internal/policy"
	"github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/pagination"
	"github.com/angelmondragon/orderdesk/pkg/security"
	"github.com/angelmondragon/orderdesk/pkg/types"
)

const (
	defaultUserPageSize = 20
	usernameConstraint  = "users_username_key"
)

// Service manages operator accounts on behalf of administrators.
type Service interface {
	AddUser(ctx context.Context, actor auth.Principal, in AddUserInput) (*UserDTO, error)
	UpdateUser(ctx context.Context, actor auth.Principal, in UpdateUserInput) (*UserDTO, error)
	DeleteUser(ctx context.Context, actor auth.Principal, userID uuid.UUID) error
	ListUsers(ctx context.Context, actor auth.Principal, in ListUsersInput) (*types.Page[UserDTO], error)
	ListActiveSuppliers(ctx context.Context, actor auth.Principal) ([]SupplierDTO, error)
}

type userRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, changes map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, page pagination.Params) ([]UserWithGame, int64, error)
	ListActiveSuppliers(ctx context.Context, gameID *uuid.UUID) ([]models.User, error)
}

type gameLookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// ServiceParams bundles the dependencies required to build a users service.
type ServiceParams struct {
	Repo              userRepository
	Games             gameLookup
	Hasher            security.Hasher
	MinPasswordLength int
	Now               func() time.Time
}

type service struct {
	repo      userRepository
	games     gameLookup
	hasher    security.Hasher
	minPwdLen int
	now       func() time.Time
}

// NewService constructs a users service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Games == nil {
		return nil, fmt.Errorf("game lookup is required")
	}
	now := params.Now
	if now == nil {
		now = db.UTCNow
	}
	return &service{
		repo:      params.Repo,
		games:     params.Games,
		hasher:    params.Hasher,
		minPwdLen: params.MinPasswordLength,
		now:       now,
	}, nil
}

func (s *service) AddUser(ctx context.Context, actor auth.Principal, in AddUserInput) (*UserDTO, error) {
	if err := policy.Authorize(actor, policy.ActionManageUsers, policy.Target{}).Err(); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	nickname := strings.TrimSpace(in.Nickname)
	if username == "" || in.Password == "" || in.Role == "" || nickname == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username, password, role and nickname are required")
	}
	if !in.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	if s.minPwdLen > 0 && len(in.Password) < s.minPwdLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", s.minPwdLen))
	}

	var gameID *uuid.UUID
	if in.Role.RequiresGame() {
		if in.GameID == nil || *in.GameID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "game_id is required for cs and supplier accounts")
		}
		if err := s.ensureGame(ctx, *in.GameID); err != nil {
			return nil, err
		}
		id := *in.GameID
		gameID = &id
	}

	salt, hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		Role:         in.Role,
		GameID:       gameID,
		Status:       enums.UserStatusEnabled,
		Nickname:     nickname,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, usernameConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "username already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return FromModel(user), nil
}

func (s *service) UpdateUser(ctx context.Context, actor auth.Principal, in UpdateUserInput) (*UserDTO, error) {
	if in.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "userIdToUpdate is required")
	}
	if in.Empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if in.Role != nil && !in.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	if in.Status != nil && !in.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}

	decision := policy.Authorize(actor, policy.ActionUpdateUser, policy.Target{
		UserID:    in.UserID,
		NewRole:   in.Role,
		NewStatus: in.Status,
	})
	if err := decision.Err(); err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, in.UserID)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	role := current.Role
	if in.Role != nil {
		role = *in.Role
	}
	gameID := current.GameID
	if in.GameID.Valid {
		gameID = in.GameID.Value
	}
	if role == enums.RoleAdmin {
		gameID = nil
	}
	if role.RequiresGame() {
		if gameID == nil || *gameID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "game_id is required for cs and supplier accounts")
		}
		if in.GameID.Valid || in.Role != nil {
			if err := s.ensureGame(ctx, *gameID); err != nil {
				return nil, err
			}
		}
	}

	changes := map[string]any{
		"role":       role,
		"game_id":    gameID,
		"updated_at": s.now(),
	}
	if in.Status != nil {
		changes["status"] = *in.Status
	}
	if in.Nickname != nil {
		nickname := strings.TrimSpace(*in.Nickname)
		if nickname == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "nickname cannot be empty")
		}
		changes["nickname"] = nickname
	}

	if err := s.repo.Update(ctx, in.UserID, changes); err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}

	updated, err := s.repo.FindByID(ctx, in.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload user")
	}
	return FromModel(updated), nil
}

func (s *service) DeleteUser(ctx context.Context, actor auth.Principal, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "userIdToDelete is required")
	}
	if err := policy.Authorize(actor, policy.ActionDeleteUser, policy.Target{UserID: userID}).Err(); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		if IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
	}
	return nil
}

func (s *service) ListUsers(ctx context.Context, actor auth.Principal, in ListUsersInput) (*types.Page[UserDTO], error) {
	if err := policy.Authorize(actor, policy.ActionManageUsers, policy.Target{}).Err(); err != nil {
		return nil, err
	}
	if in.Role != "" && !in.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role filter")
	}
	if in.Status != "" && !in.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = defaultUserPageSize
	}
	page := pagination.Params{Page: in.Page, PageSize: pageSize}.Normalize()

	rows, total, err := s.repo.List(ctx, ListFilter{Role: in.Role, Status: in.Status}, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}

	items := make([]UserDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, fromListRow(row))
	}
	return &types.Page[UserDTO]{Items: items, Total: total}, nil
}

func (s *service) ListActiveSuppliers(ctx context.Context, actor auth.Principal) ([]SupplierDTO, error) {
	decision := policy.Authorize(actor, policy.ActionListSuppliers, policy.Target{})
	if err := decision.Err(); err != nil {
		return nil, err
	}

	suppliers, err := s.repo.ListActiveSuppliers(ctx, decision.GameID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suppliers")
	}
	out := make([]SupplierDTO, 0, len(suppliers))
	for _, supplier := range suppliers {
		out = append(out, supplierFromModel(supplier))
	}
	return out, nil
}

func (s *service) ensureGame(ctx context.Context, id uuid.UUID) error {
	ok, err := s.games.Exists(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load game")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "game not found")
	}
	return nil
}
