package games

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
)

// Repository persists game tenants.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a games repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, game *models.Game) error {
	if game.ID == uuid.Nil {
		game.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(game).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	var game models.Game
	if err := r.db.WithContext(ctx).First(&game, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &game, nil
}

// Exists reports whether a game with id is present.
func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Game{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns every game, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id").Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

// Update overwrites name and description. Returns gorm.ErrRecordNotFound when the game is gone.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, description string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"name": name, "description": description})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// References counts the users and orders that point at a game.
func (r *Repository) References(ctx context.Context, id uuid.UUID) (users int64, orders int64, err error) {
	if err = r.db.WithContext(ctx).Model(&models.User{}).Where("game_id = ?", id).Count(&users).Error; err != nil {
		return 0, 0, err
	}
	if err = r.db.WithContext(ctx).Model(&models.Order{}).Where("game_id = ?", id).Count(&orders).Error; err != nil {
		return 0, 0, err
	}
	return users, orders, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Game{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
