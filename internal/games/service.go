package games

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/internal/policy"
	"github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

// GameDTO is the transport shape of a game.
type GameDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func FromModel(g *models.Game) GameDTO {
	return GameDTO{ID: g.ID, Name: g.Name, Description: g.Description, CreatedAt: g.CreatedAt}
}

// GameInput carries the editable game fields.
type GameInput struct {
	Name        string
	Description string
}

// Service manages game tenants. Every operation is admin-only.
type Service interface {
	List(ctx context.Context, actor auth.Principal) ([]GameDTO, error)
	Add(ctx context.Context, actor auth.Principal, in GameInput) (*GameDTO, error)
	Update(ctx context.Context, actor auth.Principal, id uuid.UUID, in GameInput) (*GameDTO, error)
	Delete(ctx context.Context, actor auth.Principal, id uuid.UUID) error
}

type gameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Game, error)
	List(ctx context.Context) ([]models.Game, error)
	Update(ctx context.Context, id uuid.UUID, name, description string) error
	References(ctx context.Context, id uuid.UUID) (int64, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo gameRepository
	now  func() time.Time
}

// NewService builds a games service. now defaults to the UTC wall clock.
func NewService(repo gameRepository, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("game repository required")
	}
	if now == nil {
		now = db.UTCNow
	}
	return &service{repo: repo, now: now}, nil
}

func (s *service) List(ctx context.Context, actor auth.Principal) ([]GameDTO, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list games")
	}
	out := make([]GameDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Add(ctx context.Context, actor auth.Principal, in GameInput) (*GameDTO, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "game name is required")
	}
	game := &models.Game{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, game); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create game")
	}
	dto := FromModel(game)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, actor auth.Principal, id uuid.UUID, in GameInput) (*GameDTO, error) {
	if err := authorize(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if id == uuid.Nil || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gameId and name are required")
	}
	if err := s.repo.Update(ctx, id, name, strings.TrimSpace(in.Description)); err != nil {
		return nil, mapRepoError(err, "update game")
	}
	game, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "reload game")
	}
	dto := FromModel(game)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, actor auth.Principal, id uuid.UUID) error {
	if err := authorize(actor); err != nil {
		return err
	}
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gameId is required")
	}
	users, orders, err := s.repo.References(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count game references")
	}
	if users > 0 || orders > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "game still has users or orders").
			WithDetails(map[string]int64{"users": users, "orders": orders})
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err, "delete game")
	}
	return nil
}

func authorize(actor auth.Principal) error {
	return policy.Authorize(actor, policy.ActionManageGames, policy.Target{}).Err()
}

func mapRepoError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "game not found")
	}
	// A user or order added after the reference count still blocks the delete.
	if db.IsForeignKeyViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "game still has users or orders")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
