package actions

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgauth "github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
)

type stubAuthenticator struct {
	principal pkgauth.Principal
	err       error
	tokens    []string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (pkgauth.Principal, error) {
	s.tokens = append(s.tokens, token)
	return s.principal, s.err
}

func noop(context.Context, pkgauth.Principal, Request) (*Result, error) { return nil, nil }

func TestRegistryRejectsDuplicatesAndBlankNames(t *testing.T) {
	_, err := NewRegistry(Command{Name: "a", Handler: noop}, Command{Name: "a", Handler: noop})
	assert.Error(t, err)
	_, err = NewRegistry(Command{Name: " ", Handler: noop})
	assert.Error(t, err)
	_, err = NewRegistry(Command{Name: "a"})
	assert.Error(t, err)

	r, err := NewRegistry(Command{Name: "b", Handler: noop}, Command{Name: "a", Handler: noop})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestDispatchUnknownActionIsNotFound(t *testing.T) {
	authn := &stubAuthenticator{}
	r, err := NewRegistry(Command{Name: "known", Handler: noop})
	require.NoError(t, err)
	d, err := NewDispatcher(r, authn, logger.Nop())
	require.NoError(t, err)

	_, _, err = d.Dispatch(context.Background(), Request{Action: "bogus"})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Empty(t, authn.tokens, "unknown actions never reach authentication")

	_, _, err = d.Dispatch(context.Background(), Request{})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestDispatchAuthenticatesPrivateCommands(t *testing.T) {
	gameID := uuid.New()
	authn := &stubAuthenticator{principal: pkgauth.Principal{UserID: uuid.New(), Role: enums.RoleCS, GameID: &gameID}}
	var seen pkgauth.Principal
	var fromCtx bool
	r, err := NewRegistry(
		Command{Name: "private", Handler: func(ctx context.Context, p pkgauth.Principal, _ Request) (*Result, error) {
			seen = p
			_, fromCtx = pkgauth.PrincipalFromContext(ctx)
			return &Result{Data: "x"}, nil
		}},
		Command{Name: "public", Public: true, Handler: noop},
	)
	require.NoError(t, err)
	d, err := NewDispatcher(r, authn, nil)
	require.NoError(t, err)

	_, res, err := d.Dispatch(context.Background(), Request{Action: "private", Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Message)
	assert.Equal(t, authn.principal.UserID, seen.UserID)
	assert.True(t, fromCtx)
	assert.Equal(t, []string{"tok"}, authn.tokens)

	_, res, err = d.Dispatch(context.Background(), Request{Action: "public"})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Len(t, authn.tokens, 1, "public commands skip authentication")
}

func TestDispatchReturnsAuthenticationErrors(t *testing.T) {
	authn := &stubAuthenticator{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session")}
	called := false
	r, err := NewRegistry(Command{Name: "private", Handler: func(context.Context, pkgauth.Principal, Request) (*Result, error) {
		called = true
		return nil, nil
	}})
	require.NoError(t, err)
	d, err := NewDispatcher(r, authn, nil)
	require.NoError(t, err)

	_, _, err = d.Dispatch(context.Background(), Request{Action: "private"})
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
	assert.False(t, called)
}

func TestNewDispatcherRequiresDependencies(t *testing.T) {
	_, err := NewDispatcher(nil, &stubAuthenticator{}, nil)
	assert.Error(t, err)
	r, _ := NewRegistry()
	_, err = NewDispatcher(r, nil, nil)
	assert.Error(t, err)
}

func TestDecodeReportsFieldPaths(t *testing.T) {
	var in createOrderPayload
	err := decode(Request{Body: []byte(`{"orderInput":{"remarks":1}}`)}, &in)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), "type mismatch")

	body := `{"orderInput":{"orderNumber":"` + strings.Repeat("x", 70) + `"}}`
	err = decode(Request{Body: []byte(body)}, &in)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at most 64", details["orderInput.orderNumber"])
}
