package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/orderdesk/api/responses"
	"github.com/angelmondragon/orderdesk/api/validators"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/logger"
)

const loginAction = "login"

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// LoginRateLimitPolicy defines the throttling parameters for the login action.
type LoginRateLimitPolicy struct {
	window        time.Duration
	ipLimit       int
	usernameLimit int
}

// NewLoginRateLimitPolicy builds a policy with the supplied window and limits.
func NewLoginRateLimitPolicy(window time.Duration, ipLimit, usernameLimit int) LoginRateLimitPolicy {
	return LoginRateLimitPolicy{window: window, ipLimit: ipLimit, usernameLimit: usernameLimit}
}

func (p LoginRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.usernameLimit > 0)
}

// LoginRateLimit enforces per-IP and per-username counters on envelopes carrying the login
// action. Other actions on the same endpoint pass through untouched.
func LoginRateLimit(policy LoginRateLimitPolicy, limiter rateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(io.LimitReader(r.Body, validators.MaxBodyBytes+1))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			username, ok := loginUsername(body)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if policy.ipLimit > 0 {
				if ip := clientIP(r); ip != "" {
					if !check(ctx, w, logg, limiter, policy, "ip", ip, policy.ipLimit) {
						return
					}
				}
			}
			if policy.usernameLimit > 0 && username != "" {
				if !check(ctx, w, logg, limiter, policy, "username", hashValue(username), policy.usernameLimit) {
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func check(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, limiter rateLimiter, policy LoginRateLimitPolicy, scope, subject string, limit int) bool {
	allowed, count, err := limiter.FixedWindowAllow(ctx, fmt.Sprintf("login:%s:%s", scope, subject), int64(limit), policy.window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if allowed {
		return true
	}
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"scope":          scope,
			"subject":        subject,
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(policy.window.Seconds()),
		})
		logg.Warn(logCtx, "auth.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts, try again later"))
	return false
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// loginUsername reports whether the body is a login envelope and returns its normalized username.
func loginUsername(payload []byte) (string, bool) {
	var body struct {
		Action   string `json:"action"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", false
	}
	if strings.TrimSpace(body.Action) != loginAction {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(body.Username)), true
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
