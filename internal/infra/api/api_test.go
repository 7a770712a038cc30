//go:build !integration

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/infra/api"
	"trailroom-billing/internal/infra/logging"
)

var nop = zerolog.Nop()

func okHandler(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", domain.ErrInvalidArgument), http.StatusBadRequest},
		{domain.ErrUnknownEvent, http.StatusBadRequest},
		{domain.ErrInvalidSignature, http.StatusUnauthorized},
		{domain.ErrInsufficientBalance, http.StatusPaymentRequired},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrAlreadyRefunded, http.StatusConflict},
		{domain.ErrInvalidState, http.StatusConflict},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrExternalService, http.StatusBadGateway},
		{domain.ErrQueueFull, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, api.StatusFor(c.err), c.err.Error())
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(logging.WithTraceID(req.Context(), "trace-1"))

	rec := httptest.NewRecorder()
	api.WriteError(rec, req, &nop, errors.New("pq: password authentication failed"))
	var body api.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, body.Detail)
	assert.Equal(t, "trace-1", body.TraceID)

	rec = httptest.NewRecorder()
	api.WriteError(rec, req, &nop, fmt.Errorf("%w: credits must be positive", domain.ErrInvalidArgument))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body.Detail, "credits must be positive")
}

func TestAuth(t *testing.T) {
	am := api.NewAuthManager("secret", time.Hour)

	t.Run("valid token sets principal", func(t *testing.T) {
		tok, err := am.Mint("acc-1", api.RoleAdmin)
		require.NoError(t, err)

		var got api.Principal
		h := api.RequireAuth(am, &nop)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = api.PrincipalFrom(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "acc-1", got.AccountID)
		assert.True(t, got.IsAdmin())
	})

	t.Run("expired and malformed tokens are rejected", func(t *testing.T) {
		expired := api.NewAuthManager("secret", time.Nanosecond)
		tok, err := expired.Mint("acc-1", "")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)

		for _, hdr := range []string{"", "Bearer", "Basic abc", "Bearer " + tok, "Bearer not.a.jwt"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if hdr != "" {
				req.Header.Set("Authorization", hdr)
			}
			_, err := am.ParseFromRequest(req)
			assert.Error(t, err, hdr)
		}
	})

	t.Run("role guard", func(t *testing.T) {
		h := api.Chain(http.HandlerFunc(okHandler), api.RequireAuth(am, &nop), api.RequireRole(api.RoleAdmin))

		user, _ := am.Mint("acc-1", "")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+user)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func TestRateLimit(t *testing.T) {
	withPrincipal := func(r *http.Request) *http.Request {
		return r.WithContext(api.WithPrincipal(r.Context(), api.Principal{AccountID: "acc-1"}))
	}

	t.Run("denied", func(t *testing.T) {
		l := &stubLimiter{allow: false}
		h := api.RateLimit(l, "orders", 5, time.Minute, &nop)(http.HandlerFunc(okHandler))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withPrincipal(httptest.NewRequest(http.MethodPost, "/", nil)))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Equal(t, []string{"rate_limit:acc-1:orders"}, l.keys)
	})

	t.Run("limiter outage fails open", func(t *testing.T) {
		l := &stubLimiter{err: errors.New("redis down")}
		h := api.RateLimit(l, "orders", 5, time.Minute, &nop)(http.HandlerFunc(okHandler))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withPrincipal(httptest.NewRequest(http.MethodPost, "/", nil)))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("nil limiter is a passthrough", func(t *testing.T) {
		h := api.RateLimit(nil, "orders", 5, time.Minute, &nop)(http.HandlerFunc(okHandler))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRouter(t *testing.T) {
	healthy := api.HealthCheck{Name: "postgres", Check: func(ctx context.Context) error { return nil }}
	down := api.HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return errors.New("down") }}

	t.Run("health degraded", func(t *testing.T) {
		r := api.NewRouter(time.Second, &nop, healthy, down)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "up", body.Checks["postgres"])
		assert.Equal(t, "down", body.Checks["redis"])
	})

	t.Run("trace id echoed and panics recovered", func(t *testing.T) {
		r := api.NewRouter(time.Second, &nop)
		r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("kaboom") })

		req := httptest.NewRequest(http.MethodGet, "/boom", nil)
		req.Header.Set(api.TraceHeader, "abc-123")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "abc-123", rec.Header().Get(api.TraceHeader))
	})

	t.Run("malformed trace id is replaced", func(t *testing.T) {
		r := api.NewRouter(time.Second, &nop)
		req := httptest.NewRequest(http.MethodGet, "/nope", nil)
		req.Header.Set(api.TraceHeader, "bad id\nwith newline")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		got := rec.Header().Get(api.TraceHeader)
		assert.NotEqual(t, "bad id\nwith newline", got)
		assert.Len(t, got, 36)
	})

	t.Run("unknown route is json 404", func(t *testing.T) {
		r := api.NewRouter(time.Second, &nop)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	})
}
