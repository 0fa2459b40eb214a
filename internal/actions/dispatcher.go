package actions

import (
	"context"
	"fmt"

	"github.com/angelmondragon/orderdesk/pkg/auth"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
)

type authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Principal, error)
}

// Dispatcher resolves the command for a request and runs it for the authenticated caller.
type Dispatcher struct {
	registry *Registry
	auth     authenticator
	logg     *logger.Logger
}

// NewDispatcher builds a dispatcher over registry.
func NewDispatcher(registry *Registry, authn authenticator, logg *logger.Logger) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("action registry required")
	}
	if authn == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{registry: registry, auth: authn, logg: logg}, nil
}

// Dispatch runs req. An unknown action is NOT_FOUND before any token check.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (context.Context, *Result, error) {
	ctx = d.logg.WithAction(ctx, req.Action)
	if req.Action == "" {
		return ctx, nil, pkgerrors.New(pkgerrors.CodeValidation, "action is required")
	}
	cmd, ok := d.registry.Lookup(req.Action)
	if !ok {
		return ctx, nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown action").
			WithDetails(map[string]any{"action": req.Action})
	}

	var principal auth.Principal
	if !cmd.Public {
		p, err := d.auth.Authenticate(ctx, req.Token)
		if err != nil {
			return ctx, nil, err
		}
		principal = p
		ctx = auth.WithPrincipal(ctx, principal)
		ctx = d.logg.WithUserID(ctx, principal.UserID.String())
		ctx = d.logg.WithActorRole(ctx, string(principal.Role))
		if principal.GameID != nil {
			ctx = d.logg.WithGameID(ctx, principal.GameID.String())
		}
	}

	result, err := cmd.Handler(ctx, principal, req)
	if err != nil {
		return ctx, nil, err
	}
	if result == nil {
		result = &Result{}
	}
	if result.Message == "" {
		result.Message = "ok"
	}
	return ctx, result, nil
}
