package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk/internal/actions"
	"github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/config"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
)

type tokenAuth struct{ token string }

func (a tokenAuth) Authenticate(_ context.Context, token string) (auth.Principal, error) {
	if token != a.token {
		return auth.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired session, please log in again")
	}
	return auth.Principal{}, nil
}

func newEndpoint(t *testing.T) http.HandlerFunc {
	t.Helper()
	total := int64(7)
	registry, err := actions.NewRegistry(
		actions.Command{Name: "echo", Handler: func(_ context.Context, _ auth.Principal, req actions.Request) (*actions.Result, error) {
			var body struct {
				Say string `json:"say"`
			}
			if err := json.Unmarshal(req.Body, &body); err != nil {
				return nil, err
			}
			return &actions.Result{Message: "echoed", Data: body.Say, Total: &total}, nil
		}},
		actions.Command{Name: "ping", Public: true, Handler: func(context.Context, auth.Principal, actions.Request) (*actions.Result, error) {
			return nil, nil
		}},
	)
	require.NoError(t, err)
	dispatcher, err := actions.NewDispatcher(registry, tokenAuth{token: "good"}, logger.Nop())
	require.NoError(t, err)
	return ActionEndpoint(dispatcher, logger.Nop())
}

func post(h http.Handler, body string, header string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestActionEndpointSuccessEnvelope(t *testing.T) {
	h := newEndpoint(t)

	rec, env := post(h, `{"action":"echo","token":"good","say":"hi"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(200), env["code"])
	assert.Equal(t, "echoed", env["message"])
	assert.Equal(t, "hi", env["data"])
	assert.Equal(t, float64(7), env["total"])

	rec, env = post(h, `{"action":"ping"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", env["message"])
	_, hasData := env["data"]
	assert.False(t, hasData)
}

func TestActionEndpointAcceptsBearerHeader(t *testing.T) {
	h := newEndpoint(t)

	rec, _ := post(h, `{"action":"echo","say":"hi"}`, "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := post(h, `{"action":"echo","say":"hi"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, float64(401), env["code"])
}

func TestActionEndpointErrorStatuses(t *testing.T) {
	h := newEndpoint(t)

	rec, env := post(h, `{"action":"nope","token":"good"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown action", env["message"])

	rec, _ = post(h, `{"token":"good"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = post(h, `not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), map[string]Pinger{"db": ok, "redis": nil})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"ok"`)
	assert.Equal(t, "dev", rec.Header().Get("X-OrderDesk-Env"))

	rec = httptest.NewRecorder()
	HealthReady(cfg, logger.Nop(), map[string]Pinger{"db": ok, "redis": down})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	HealthLive(cfg)(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
