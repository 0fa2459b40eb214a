package actions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderdesk/internal/audit"
	"github.com/angelmondragon/orderdesk/internal/auth"
	"github.com/angelmondragon/orderdesk/internal/games"
	"github.com/angelmondragon/orderdesk/internal/orders"
	"github.com/angelmondragon/orderdesk/internal/users"
	"github.com/angelmondragon/orderdesk/pkg/config"
	"github.com/angelmondragon/orderdesk/pkg/db/dbtest"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/security"
)

var worldNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type discardAudit struct{}

func (discardAudit) Record(context.Context, audit.Entry) {}

type world struct {
	conn     *gorm.DB
	account  *Dispatcher
	orders   *Dispatcher
	now      time.Time
	adminTok string
}

func newWorld(t *testing.T) *world {
	t.Helper()
	conn := dbtest.Open(t)
	w := &world{conn: conn, now: worldNow}
	clock := func() time.Time { return w.now }

	hasher := security.DefaultHasher()
	userRepo := users.NewRepository(conn)
	gameRepo := games.NewRepository(conn)

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:          userRepo,
		Hasher:            hasher,
		SessionConfig:     config.SessionConfig{TTL: 7 * 24 * time.Hour, TokenBytes: 32},
		MinPasswordLength: 6,
		Logger:            logger.Nop(),
		Now:               clock,
	})
	require.NoError(t, err)
	userSvc, err := users.NewService(users.ServiceParams{
		Repo: userRepo, Games: gameRepo, Hasher: hasher, MinPasswordLength: 6, Now: clock,
	})
	require.NoError(t, err)
	gameSvc, err := games.NewService(gameRepo, clock)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(conn),
		Users:  userRepo,
		Games:  gameRepo,
		Audit:  discardAudit{},
		Logger: logger.Nop(),
		Now:    clock,
	})
	require.NoError(t, err)

	accountRegistry, err := NewAccountRegistry(AccountDeps{Auth: authSvc, Users: userSvc, Games: gameSvc})
	require.NoError(t, err)
	orderRegistry, err := NewOrderRegistry(orderSvc)
	require.NoError(t, err)
	w.account, err = NewDispatcher(accountRegistry, authSvc, logger.Nop())
	require.NoError(t, err)
	w.orders, err = NewDispatcher(orderRegistry, authSvc, logger.Nop())
	require.NoError(t, err)

	salt, hash, err := hasher.HashPassword("rootpass")
	require.NoError(t, err)
	require.NoError(t, conn.Create(&models.User{
		ID: uuid.New(), Username: "root", PasswordHash: hash, Salt: salt,
		Role: enums.RoleAdmin, Status: enums.UserStatusEnabled, Nickname: "Root",
	}).Error)
	w.adminTok = w.login(t, "root", "rootpass")
	return w
}

func envelope(action, token string, fields map[string]any) Request {
	body := map[string]any{"action": action}
	if token != "" {
		body["token"] = token
	}
	for k, v := range fields {
		body[k] = v
	}
	raw, _ := json.Marshal(body)
	return Request{Action: action, Token: token, Body: raw}
}

func (w *world) call(t *testing.T, d *Dispatcher, action, token string, fields map[string]any) (*Result, error) {
	t.Helper()
	_, res, err := d.Dispatch(context.Background(), envelope(action, token, fields))
	return res, err
}

func (w *world) mustCall(t *testing.T, d *Dispatcher, action, token string, fields map[string]any) *Result {
	t.Helper()
	res, err := w.call(t, d, action, token, fields)
	require.NoError(t, err, action)
	return res
}

func (w *world) login(t *testing.T, username, password string) string {
	t.Helper()
	res := w.mustCall(t, w.account, ActionLogin, "", map[string]any{"username": username, "password": password})
	session, ok := res.Data.(*auth.LoginResponse)
	require.True(t, ok)
	return session.Token
}

func (w *world) addGame(t *testing.T, name string) uuid.UUID {
	t.Helper()
	res := w.mustCall(t, w.account, ActionAddGame, w.adminTok, map[string]any{
		"gameDetails": map[string]any{"name": name, "description": name + " servers"},
	})
	return res.Data.(*games.GameDTO).ID
}

func (w *world) addUser(t *testing.T, username string, role enums.Role, gameID *uuid.UUID) uuid.UUID {
	t.Helper()
	details := map[string]any{"username": username, "password": "secret1", "role": role, "nickname": username}
	if gameID != nil {
		details["game_id"] = gameID.String()
	}
	res := w.mustCall(t, w.account, ActionAdminAddUser, w.adminTok, map[string]any{"newUserDetails": details})
	return res.Data.(*users.UserDTO).ID
}

func codeOf(err error) pkgerrors.Code { return pkgerrors.CodeOf(err) }

func reasonOf(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Reason()
	}
	return ""
}
