package auth

import pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"

const (
	invalidCredentialsMessage = "invalid username or password"
	// Shared by every session failure.
	invalidSessionMessage = "invalid or expired session, please log in again"
)

// Reasons attached to authentication failures.
const (
	ReasonInvalidCredentials = "INVALID_CREDENTIALS"
	ReasonAccountDisabled    = "ACCOUNT_DISABLED"
	ReasonMissingToken       = "MISSING_TOKEN"
	ReasonInvalidSession     = "INVALID_SESSION"
	ReasonSessionExpired     = "SESSION_EXPIRED"
)

func errInvalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage).WithReason(ReasonInvalidCredentials)
}

func errAccountDisabled() error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "account is disabled").WithReason(ReasonAccountDisabled)
}

func errSession(reason string) error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidSessionMessage).WithReason(reason)
}
