package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
	"github.com/angelmondragon/orderdesk/pkg/types"
)

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func loginRequest(body, addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/account", strings.NewReader(body))
	req.RemoteAddr = addr
	return req
}

func TestLoginRateLimit_AllowsUnderLimitAndKeepsBody(t *testing.T) {
	store := newFakeRateStore()
	handler := LoginRateLimit(NewLoginRateLimitPolicy(time.Minute, 2, 2), store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !strings.Contains(string(body), `"username":"tester"`) {
			t.Fatalf("unexpected body: %s", string(body))
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{"action":"login","username":"tester","password":"secret"}`, "1.2.3.4:5678"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestLoginRateLimit_UsernameLimitTriggers(t *testing.T) {
	store := newFakeRateStore()
	handler := LoginRateLimit(NewLoginRateLimitPolicy(time.Minute, 0, 2), store, nil)(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		// Case and padding do not dodge the counter.
		name := []string{"Blocked", " blocked ", "BLOCKED"}[i]
		handler.ServeHTTP(rec, loginRequest(`{"action":"login","username":"`+name+`","password":"x"}`, "1.2.3.4:5678"))

		switch {
		case i < 2 && rec.Code != http.StatusOK:
			t.Fatalf("expected success before limit, got %d", rec.Code)
		case i >= 2:
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			var payload types.Envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if payload.Code != pkgerrors.MetadataFor(pkgerrors.CodeRateLimit).HTTPStatus {
				t.Fatalf("unexpected code: %d", payload.Code)
			}
		}
	}
}

func TestLoginRateLimit_IPLimitTriggers(t *testing.T) {
	store := newFakeRateStore()
	handler := LoginRateLimit(NewLoginRateLimitPolicy(time.Minute, 1, 0), store, nil)(http.HandlerFunc(okHandler))

	for i, name := range []string{"first", "second"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(`{"action":"login","username":"`+name+`"}`, "5.6.7.8:1234"))
		if i == 0 && rec.Code != http.StatusOK {
			t.Fatalf("expected success, got %d", rec.Code)
		}
		if i == 1 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
	}
}

func TestLoginRateLimit_IgnoresOtherActions(t *testing.T) {
	store := newFakeRateStore()
	handler := LoginRateLimit(NewLoginRateLimitPolicy(time.Minute, 1, 1), store, nil)(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, loginRequest(`{"action":"checkAuth","token":"abc"}`, "5.6.7.8:1234"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected pass-through, got %d", rec.Code)
		}
	}
	if len(store.counts) != 0 {
		t.Fatalf("expected no counters, got %v", store.counts)
	}
}

func TestLoginRateLimit_StoreFailureIsDependencyError(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis down")
	handler := LoginRateLimit(NewLoginRateLimitPolicy(time.Minute, 1, 1), store, nil)(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginRequest(`{"action":"login","username":"u"}`, "5.6.7.8:1234"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}
