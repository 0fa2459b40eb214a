package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/pagination"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user. A zero ID is replaced with a fresh one.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByUsername retrieves the user matching the provided username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByToken loads the user currently holding token.
func (r *Repository) FindByToken(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateSession overwrites the user's session token and its expiry.
func (r *Repository) UpdateSession(ctx context.Context, id uuid.UUID, token string, expiresAt, at time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{
		"token":            token,
		"token_expires_at": expiresAt,
		"updated_at":       at,
	})
}

// ClearSession drops the user's session token.
func (r *Repository) ClearSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{
		"token":            nil,
		"token_expires_at": nil,
		"updated_at":       at,
	})
}

// UpdatePassword rotates the stored salt and hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, salt, hash string, at time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{
		"salt":          salt,
		"password_hash": hash,
		"updated_at":    at,
	})
}

// Update applies the given column changes. Returns gorm.ErrRecordNotFound when the user is gone.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, changes map[string]any) error {
	return r.updateColumns(ctx, id, changes)
}

func (r *Repository) updateColumns(ctx context.Context, id uuid.UUID, changes map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the user permanently.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListFilter narrows List results. Zero values are ignored.
type ListFilter struct {
	Role   enums.Role
	Status enums.UserStatus
	GameID *uuid.UUID
}

// UserWithGame is a user row decorated with its game's name.
type UserWithGame struct {
	models.User
	GameName *string `gorm:"column:game_name"`
}

// List returns one page of users, newest first, plus the total matching count.
func (r *Repository) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]UserWithGame, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.User{})
	if filter.Role != "" {
		base = base.Where("users.role = ?", filter.Role)
	}
	if filter.Status != "" {
		base = base.Where("users.status = ?", filter.Status)
	}
	if filter.GameID != nil {
		base = base.Where("users.game_id = ?", *filter.GameID)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []UserWithGame
	err := base.
		Select("users.*, games.name AS game_name").
		Joins("LEFT JOIN games ON games.id = users.game_id").
		Order("users.created_at DESC").
		Order("users.id").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountByGame returns how many users belong to gameID.
func (r *Repository) CountByGame(ctx context.Context, gameID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("game_id = ?", gameID).Count(&count).Error
	return count, err
}

// ListActiveSuppliers returns enabled suppliers ordered by nickname, optionally for one game.
func (r *Repository) ListActiveSuppliers(ctx context.Context, gameID *uuid.UUID) ([]models.User, error) {
	query := r.db.WithContext(ctx).
		Where("role = ? AND status = ?", enums.RoleSupplier, enums.UserStatusEnabled)
	if gameID != nil {
		query = query.Where("game_id = ?", *gameID)
	}
	var suppliers []models.User
	if err := query.Order("nickname ASC").Order("username ASC").Find(&suppliers).Error; err != nil {
		return nil, err
	}
	return suppliers, nil
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
