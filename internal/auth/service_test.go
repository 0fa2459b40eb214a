package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/internal/users"
	"github.com/angelmondragon/orderdesk/pkg/auth/session"
	"github.com/angelmondragon/orderdesk/pkg/config"
	"github.com/angelmondragon/orderdesk/pkg/db/dbtest"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/security"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]uuid.UUID{}}
}

func (f *fakeCache) Remember(_ context.Context, token string, userID uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[token] = userID
	return nil
}

func (f *fakeCache) Lookup(_ context.Context, token string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.entries[token]
	if !ok {
		return uuid.Nil, session.ErrNotCached
	}
	return id, nil
}

func (f *fakeCache) Forget(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, token)
	return nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type fixture struct {
	svc   Service
	repo  *users.Repository
	conn  *gorm.DB
	cache *fakeCache
	clock *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := users.NewRepository(conn)
	cache := newFakeCache()
	clk := &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		UserRepo:          repo,
		TokenCache:        cache,
		Hasher:            security.DefaultHasher(),
		SessionConfig:     config.SessionConfig{TTL: 7 * 24 * time.Hour, TokenBytes: 32},
		MinPasswordLength: 6,
		Now:               clk.Now,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, repo: repo, conn: conn, cache: cache, clock: clk}
}

func (f *fixture) createUser(t *testing.T, username, password string, status enums.UserStatus) *models.User {
	t.Helper()
	salt, hash, err := security.DefaultHasher().HashPassword(password)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		Role:         enums.RoleAdmin,
		Status:       status,
		Nickname:     username,
	}
	require.NoError(t, f.conn.Create(user).Error)
	return user
}

func requireReason(t *testing.T, err error, code pkgerrors.Code, reason string) *pkgerrors.Error {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
	assert.Equal(t, reason, typed.Reason())
	return typed
}

func TestLoginIssuesSession(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "root", "secret1", enums.UserStatusEnabled)

	resp, err := f.svc.Login(context.Background(), LoginRequest{Username: "root", Password: "secret1"})
	require.NoError(t, err)
	assert.Len(t, resp.Token, 64)
	assert.Equal(t, f.clock.now.Add(7*24*time.Hour), resp.ExpiresAt)
	assert.Equal(t, user.ID, resp.User.ID)

	stored, err := f.repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Token)
	assert.Equal(t, resp.Token, *stored.Token)

	cached, err := f.cache.Lookup(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, cached)
}

func TestLoginFailuresShareMessage(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "root", "secret1", enums.UserStatusEnabled)
	ctx := context.Background()

	_, unknownErr := f.svc.Login(ctx, LoginRequest{Username: "nobody", Password: "secret1"})
	_, wrongErr := f.svc.Login(ctx, LoginRequest{Username: "root", Password: "wrong-password"})

	unknown := requireReason(t, unknownErr, pkgerrors.CodeUnauthorized, ReasonInvalidCredentials)
	wrong := requireReason(t, wrongErr, pkgerrors.CodeUnauthorized, ReasonInvalidCredentials)
	assert.Equal(t, unknown.Message(), wrong.Message())

	_, err := f.svc.Login(ctx, LoginRequest{Username: " ", Password: "x"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestLoginDisabledAccount(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "off", "secret1", enums.UserStatusDisabled)

	_, err := f.svc.Login(context.Background(), LoginRequest{Username: "off", Password: "secret1"})
	requireReason(t, err, pkgerrors.CodeForbidden, ReasonAccountDisabled)
}

func TestAuthenticateResolvesAndExpiresAtBoundary(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "root", "secret1", enums.UserStatusEnabled)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginRequest{Username: "root", Password: "secret1"})
	require.NoError(t, err)

	principal, err := f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, enums.RoleAdmin, principal.Role)

	f.clock.now = resp.ExpiresAt.Add(-time.Second)
	_, err = f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)

	f.clock.now = resp.ExpiresAt
	_, err = f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)

	f.clock.now = resp.ExpiresAt.Add(time.Nanosecond)
	_, err = f.svc.Authenticate(ctx, resp.Token)
	requireReason(t, err, pkgerrors.CodeUnauthorized, ReasonSessionExpired)
}

func TestAuthenticateWithoutCacheFallsBackToDatabase(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "root", "secret1", enums.UserStatusEnabled)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginRequest{Username: "root", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, f.cache.Forget(ctx, resp.Token))

	_, err = f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)

	_, err = f.cache.Lookup(ctx, resp.Token)
	assert.NoError(t, err, "database hit repopulates the cache")
}

func TestAuthenticateRejectsRotatedToken(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "root", "secret1", enums.UserStatusEnabled)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, LoginRequest{Username: "root", Password: "secret1"})
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, LoginRequest{Username: "root", Password: "secret1"})
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	// A stale cache entry must not revive the old token.
	require.NoError(t, f.cache.Remember(ctx, first.Token, user.ID, first.ExpiresAt))

	_, err = f.svc.Authenticate(ctx, first.Token)
	requireReason(t, err, pkgerrors.CodeUnauthorized, ReasonInvalidSession)

	_, err = f.svc.Authenticate(ctx, second.Token)
	require.NoError(t, err)
}

func TestAuthenticateFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "  ")
	missing := requireReason(t, err, pkgerrors.CodeUnauthorized, ReasonMissingToken)

	_, err = f.svc.Authenticate(ctx, "deadbeef")
	invalid := requireReason(t, err, pkgerrors.CodeUnauthorized, ReasonInvalidSession)

	assert.Equal(t, missing.Message(), invalid.Message())
}

func TestDisabledUserTokenStillAuthenticates(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "root", "secret1", enums.UserStatusEnabled)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginRequest{Username: "root", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, f.repo.Update(ctx, user.ID, map[string]any{"status": enums.UserStatusDisabled}))

	principal, err := f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.True(t, principal.IsDisabled())

	_, err = f.svc.CheckAuth(ctx, principal)
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, principal, ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"})
	requireReason(t, err, pkgerrors.CodeForbidden, "ACCOUNT_DISABLED")
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "root", "secret1", enums.UserStatusEnabled)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginRequest{Username: "root", Password: "secret1"})
	require.NoError(t, err)
	principal, err := f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, principal, ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "secret2"})
	requireReason(t, err, pkgerrors.CodeUnauthorized, ReasonInvalidCredentials)

	err = f.svc.ChangePassword(ctx, principal, ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "123"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	require.NoError(t, f.svc.ChangePassword(ctx, principal, ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"}))

	_, err = f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err, "session survives a password change")

	_, err = f.svc.Login(ctx, LoginRequest{Username: "root", Password: "secret1"})
	requireReason(t, err, pkgerrors.CodeUnauthorized, ReasonInvalidCredentials)
	_, err = f.svc.Login(ctx, LoginRequest{Username: "root", Password: "secret2"})
	require.NoError(t, err)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "root", "secret1", enums.UserStatusEnabled)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginRequest{Username: "root", Password: "secret1"})
	require.NoError(t, err)
	principal, err := f.svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, principal))

	_, err = f.cache.Lookup(ctx, resp.Token)
	assert.ErrorIs(t, err, session.ErrNotCached)

	_, err = f.svc.Authenticate(ctx, resp.Token)
	requireReason(t, err, pkgerrors.CodeUnauthorized, ReasonInvalidSession)
}
