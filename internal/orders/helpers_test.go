package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/internal/audit"
	"github.com/angelmondragon/orderdesk/internal/games"
	"github.com/angelmondragon/orderdesk/internal/users"
	"github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/db/dbtest"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *captureAudit) Record(_ context.Context, entry audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *captureAudit) actions() []enums.OrderLogAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]enums.OrderLogAction, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type captureMetrics struct {
	mu       sync.Mutex
	observed []string
}

func (m *captureMetrics) ObserveTransition(event, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = append(m.observed, event+":"+outcome)
}

func (m *captureMetrics) snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.observed...)
}

type fixture struct {
	svc     Service
	repo    *Repository
	conn    *gorm.DB
	clock   *testClock
	audit   *captureAudit
	metrics *captureMetrics

	game     *models.Game
	admin    auth.Principal
	cs       auth.Principal
	supplier auth.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{
		repo:    NewRepository(conn),
		conn:    conn,
		clock:   &testClock{now: fixedNow},
		audit:   &captureAudit{},
		metrics: &captureMetrics{},
	}
	svc, err := NewService(ServiceParams{
		Repo:    f.repo,
		Users:   users.NewRepository(conn),
		Games:   games.NewRepository(conn),
		Audit:   f.audit,
		Metrics: f.metrics,
		Now:     f.clock.Now,
	})
	require.NoError(t, err)
	f.svc = svc

	f.game = f.mustGame(t, "Aurora")
	f.admin = f.mustUser(t, enums.RoleAdmin, nil, "root")
	f.cs = f.mustUser(t, enums.RoleCS, &f.game.ID, "agent-a")
	f.supplier = f.mustUser(t, enums.RoleSupplier, &f.game.ID, "supplier-s")
	return f
}

func (f *fixture) mustGame(t *testing.T, name string) *models.Game {
	t.Helper()
	game := &models.Game{ID: uuid.New(), Name: name, CreatedAt: fixedNow}
	require.NoError(t, f.conn.Create(game).Error)
	return game
}

func (f *fixture) mustUser(t *testing.T, role enums.Role, gameID *uuid.UUID, nickname string) auth.Principal {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Username:     fmt.Sprintf("%s_%s", role, uuid.NewString()[:8]),
		PasswordHash: "hash",
		Salt:         "salt",
		Role:         role,
		GameID:       gameID,
		Status:       enums.UserStatusEnabled,
		Nickname:     nickname,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}
	require.NoError(t, f.conn.Create(user).Error)
	return auth.PrincipalFromUser(user)
}

func (f *fixture) createOrder(t *testing.T, actor auth.Principal, orderType enums.OrderType, number string) *OrderDTO {
	t.Helper()
	in := CreateOrderInput{
		OrderNumber:        number,
		BuyerGameID:        "buyer-" + number,
		OrderType:          orderType,
		OrderContentFileID: "file-content-" + number,
		BuyerIDPageFileID:  "file-buyer-" + number,
	}
	if actor.IsAdmin() {
		in.GameID = &f.game.ID
	}
	dto, err := f.svc.Create(context.Background(), actor, in)
	require.NoError(t, err)
	return dto
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), typed.Error())
	return typed
}

func requireReason(t *testing.T, err error, code pkgerrors.Code, reason string) {
	t.Helper()
	typed := requireCode(t, err, code)
	require.Equal(t, reason, typed.Reason())
}
