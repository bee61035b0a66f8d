//go:build integration
// +build integration

package test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	costscope "github.com/costscope/costscope-go"
	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// stubBackend serves the auth endpoints the engine talks to. Access
// credentials are real signed JWTs so expiry inspection sees a usable exp
// claim; refresh credentials rotate per generation.
type stubBackend struct {
	generation atomic.Int64
	refreshes  atomic.Int64
	logouts    atomic.Int64
	// refreshDelay slows the refresh endpoint down to widen race windows.
	refreshDelay time.Duration
	// rejectRefresh makes the refresh endpoint answer 401 terminally.
	rejectRefresh atomic.Bool
}

func (b *stubBackend) mint(t *testing.T) string {
	t.Helper()

	n := b.generation.Add(1)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ID:        fmt.Sprintf("gen-%d", n),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("integration-key"))
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}
	return signed
}

func (b *stubBackend) grant(t *testing.T) map[string]any {
	return map[string]any{
		"access_token":  b.mint(t),
		"refresh_token": fmt.Sprintf("refresh-%d", b.generation.Load()),
		"token_type":    "bearer",
		"expires_in":    1800,
		"user": map[string]any{
			"id": "u-1", "username": "alice", "email": "alice@example.com",
			"role": "member", "is_active": true,
		},
		"organization": map[string]any{
			"id": "o-1", "name": "Acme Corp", "is_active": true,
		},
	}
}

func (b *stubBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.grant(t))
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		if b.refreshDelay > 0 {
			time.Sleep(b.refreshDelay)
		}
		if b.rejectRefresh.Load() {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"detail": map[string]any{
					"message":    "refresh credential rejected",
					"error_code": "INVALID_CREDENTIALS",
				},
			})
			return
		}
		b.refreshes.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  b.mint(t),
			"refresh_token": fmt.Sprintf("refresh-%d", b.generation.Load()),
			"token_type":    "bearer",
			"expires_in":    1800,
		})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.logouts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// integrationHarness bundles the stub backend with a miniredis-backed engine
// so restarts can rebuild an engine against the same store.
type integrationHarness struct {
	backend *stubBackend
	srv     *httptest.Server
	rdb     *redis.Client
}

func newIntegrationHarness(t *testing.T) *integrationHarness {
	t.Helper()

	backend := &stubBackend{}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &integrationHarness{backend: backend, srv: srv, rdb: rdb}
}

func (h *integrationHarness) newEngine(t *testing.T) *costscope.Engine {
	t.Helper()

	engine, err := costscope.New().
		WithBaseURL(h.srv.URL).
		WithRedis(h.rdb).
		WithMetrics().
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
