package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/internal/policy"
	"github.com/angelmondragon/orderdesk/internal/users"
	pkgauth "github.com/angelmondragon/orderdesk/pkg/auth"
	"github.com/angelmondragon/orderdesk/pkg/auth/session"
	"github.com/angelmondragon/orderdesk/pkg/config"
	"github.com/angelmondragon/orderdesk/pkg/db"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"github.com/angelmondragon/orderdesk/pkg/security"
)

// Service issues, verifies, and revokes session tokens.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Authenticate(ctx context.Context, token string) (pkgauth.Principal, error)
	CheckAuth(ctx context.Context, principal pkgauth.Principal) (*users.UserDTO, error)
	ChangePassword(ctx context.Context, principal pkgauth.Principal, req ChangePasswordRequest) error
	Logout(ctx context.Context, principal pkgauth.Principal) error
}

type userRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByToken(ctx context.Context, token string) (*models.User, error)
	UpdateSession(ctx context.Context, id uuid.UUID, token string, expiresAt, at time.Time) error
	ClearSession(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, salt, hash string, at time.Time) error
}

type tokenCache interface {
	Remember(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error
	Lookup(ctx context.Context, token string) (uuid.UUID, error)
	Forget(ctx context.Context, token string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo userRepository
	// TokenCache is optional; without it every token is resolved from the database.
	TokenCache        tokenCache
	Hasher            security.Hasher
	SessionConfig     config.SessionConfig
	MinPasswordLength int
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	users     userRepository
	cache     tokenCache
	hasher    security.Hasher
	ttl       time.Duration
	tokenSize int
	minPwdLen int
	logg      *logger.Logger
	now       func() time.Time
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	ttl := params.SessionConfig.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	now := params.Now
	if now == nil {
		now = db.UTCNow
	}
	return &service{
		users:     params.UserRepo,
		cache:     params.TokenCache,
		hasher:    params.Hasher,
		ttl:       ttl,
		tokenSize: params.SessionConfig.TokenBytes,
		minPwdLen: params.MinPasswordLength,
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and password are required")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if users.IsNotFound(err) {
			return nil, errInvalidCredentials()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if !s.hasher.VerifyPassword(req.Password, user.PasswordHash, user.Salt) {
		return nil, errInvalidCredentials()
	}
	if user.Status == enums.UserStatusDisabled {
		return nil, errAccountDisabled()
	}

	token, err := security.GenerateSessionToken(s.tokenSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate token")
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)

	if err := s.users.UpdateSession(ctx, user.ID, token, expiresAt, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session")
	}
	if user.Token != nil {
		s.forget(ctx, *user.Token)
	}
	s.remember(ctx, token, user.ID, expiresAt)

	user.Token = &token
	user.TokenExpiresAt = &expiresAt
	user.UpdatedAt = now

	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      users.FromModel(user),
	}, nil
}

func (s *service) Authenticate(ctx context.Context, token string) (pkgauth.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return pkgauth.Principal{}, errSession(ReasonMissingToken)
	}

	user, fromCache, err := s.resolve(ctx, token)
	if err != nil {
		return pkgauth.Principal{}, err
	}

	// The stored token is authoritative; a cached owner whose token rotated is rejected.
	if user.Token == nil || subtle.ConstantTimeCompare([]byte(*user.Token), []byte(token)) != 1 {
		s.forget(ctx, token)
		return pkgauth.Principal{}, errSession(ReasonInvalidSession)
	}
	if user.TokenExpiresAt == nil || s.now().After(*user.TokenExpiresAt) {
		s.forget(ctx, token)
		return pkgauth.Principal{}, errSession(ReasonSessionExpired)
	}
	if !fromCache {
		s.remember(ctx, token, user.ID, *user.TokenExpiresAt)
	}

	return pkgauth.PrincipalFromUser(user), nil
}

func (s *service) resolve(ctx context.Context, token string) (*models.User, bool, error) {
	if s.cache != nil {
		userID, err := s.cache.Lookup(ctx, token)
		switch {
		case err == nil:
			user, findErr := s.users.FindByID(ctx, userID)
			if findErr == nil {
				return user, true, nil
			}
			if !users.IsNotFound(findErr) {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load session user")
			}
			s.forget(ctx, token)
			return nil, false, errSession(ReasonInvalidSession)
		case !errors.Is(err, session.ErrNotCached):
			s.warn(ctx, "auth.session_cache.lookup_failed", err)
		}
	}

	user, err := s.users.FindByToken(ctx, token)
	if err != nil {
		if users.IsNotFound(err) {
			return nil, false, errSession(ReasonInvalidSession)
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup session")
	}
	return user, false, nil
}

func (s *service) CheckAuth(ctx context.Context, principal pkgauth.Principal) (*users.UserDTO, error) {
	if err := policy.Authorize(principal, policy.ActionCheckAuth, policy.Target{}).Err(); err != nil {
		return nil, err
	}
	user, err := s.loadSelf(ctx, principal)
	if err != nil {
		return nil, err
	}
	return users.FromModel(user), nil
}

func (s *service) ChangePassword(ctx context.Context, principal pkgauth.Principal, req ChangePasswordRequest) error {
	if err := policy.Authorize(principal, policy.ActionChangePassword, policy.Target{}).Err(); err != nil {
		return err
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "currentPassword and newPassword are required")
	}
	if s.minPwdLen > 0 && len(req.NewPassword) < s.minPwdLen {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("new password must be at least %d characters", s.minPwdLen))
	}

	user, err := s.loadSelf(ctx, principal)
	if err != nil {
		return err
	}
	if !s.hasher.VerifyPassword(req.CurrentPassword, user.PasswordHash, user.Salt) {
		return errInvalidCredentials()
	}

	salt, hash, err := s.hasher.HashPassword(req.NewPassword)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, salt, hash, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}
	return nil
}

func (s *service) Logout(ctx context.Context, principal pkgauth.Principal) error {
	if err := policy.Authorize(principal, policy.ActionLogout, policy.Target{}).Err(); err != nil {
		return err
	}
	user, err := s.loadSelf(ctx, principal)
	if err != nil {
		return err
	}
	if err := s.users.ClearSession(ctx, user.ID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear session")
	}
	if user.Token != nil {
		s.forget(ctx, *user.Token)
	}
	return nil
}

func (s *service) loadSelf(ctx context.Context, principal pkgauth.Principal) (*models.User, error) {
	user, err := s.users.FindByID(ctx, principal.UserID)
	if err != nil {
		if users.IsNotFound(err) {
			return nil, errSession(ReasonInvalidSession)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) remember(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Remember(ctx, token, userID, expiresAt); err != nil {
		s.warn(ctx, "auth.session_cache.remember_failed", err)
	}
}

func (s *service) forget(ctx context.Context, token string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Forget(ctx, token); err != nil {
		s.warn(ctx, "auth.session_cache.forget_failed", err)
	}
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
