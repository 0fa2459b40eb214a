package games

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/db/dbtest"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

var admin = auth.Principal{UserID: uuid.New(), Username: "root", Role: enums.RoleAdmin, Status: enums.UserStatusEnabled}

func newService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	tick := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc, err := NewService(repo, func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	require.NoError(t, err)
	return svc, repo
}

func TestGameCRUD(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Add(ctx, admin, GameInput{Name: " Aurora ", Description: "first"})
	require.NoError(t, err)
	assert.Equal(t, "Aurora", first.Name)

	second, err := svc.Add(ctx, admin, GameInput{Name: "Borealis"})
	require.NoError(t, err)

	list, err := svc.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	updated, err := svc.Update(ctx, admin, first.ID, GameInput{Name: "Aurora II"})
	require.NoError(t, err)
	assert.Equal(t, "Aurora II", updated.Name)
	assert.Equal(t, "", updated.Description)

	require.NoError(t, svc.Delete(ctx, admin, second.ID))
	err = svc.Delete(ctx, admin, second.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestGameValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, admin, GameInput{Name: "   "})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Update(ctx, admin, uuid.Nil, GameInput{Name: "x"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Update(ctx, admin, uuid.New(), GameInput{Name: "x"})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestDeleteGameWithDependentsConflicts(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	game, err := svc.Add(ctx, admin, GameInput{Name: "Aurora"})
	require.NoError(t, err)

	gameID := game.ID
	require.NoError(t, repo.db.Create(&models.User{
		ID: uuid.New(), Username: "agent", PasswordHash: "h", Salt: "s",
		Role: enums.RoleCS, GameID: &gameID, Status: enums.UserStatusEnabled,
	}).Error)

	err = svc.Delete(ctx, admin, game.ID)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	ok, err := repo.Exists(ctx, game.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGamesRequireAdmin(t *testing.T) {
	svc, _ := newService(t)
	gameID := uuid.New()
	cs := auth.Principal{UserID: uuid.New(), Role: enums.RoleCS, GameID: &gameID, Status: enums.UserStatusEnabled}

	_, err := svc.List(context.Background(), cs)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
	assert.Equal(t, "ROLE_NOT_ALLOWED", typed.Reason())
}

// staleReferences reports no dependents, as if a user arrived after the count.
type staleReferences struct {
	*Repository
}

func (staleReferences) References(context.Context, uuid.UUID) (int64, int64, error) {
	return 0, 0, nil
}

func TestDeleteGameConflictsWhenDependentAppearsAfterCount(t *testing.T) {
	_, repo := newService(t)
	svc, err := NewService(staleReferences{repo}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	game, err := svc.Add(ctx, admin, GameInput{Name: "Aurora"})
	require.NoError(t, err)

	gameID := game.ID
	require.NoError(t, repo.db.Create(&models.User{
		ID: uuid.New(), Username: "late-agent", PasswordHash: "h", Salt: "s",
		Role: enums.RoleCS, GameID: &gameID, Status: enums.UserStatusEnabled,
	}).Error)

	err = svc.Delete(ctx, admin, game.ID)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	ok, err := repo.Exists(ctx, game.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
