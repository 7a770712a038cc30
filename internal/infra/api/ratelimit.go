package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"trailroom-billing/internal/infra/logging"
	red "trailroom-billing/internal/infra/redis"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ Limiter = (*red.RateLimiter)(nil)

// RateLimit caps requests per account on one route. It must run after
// RequireAuth. Limiter outages let requests through.
func RateLimit(l Limiter, route string, limit int, window time.Duration, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := l.Allow(r.Context(), red.AccountRouteKey(p.AccountID, route), limit, window)
			if err != nil {
				lg := logging.With(r.Context(), logger)
				lg.Warn().Err(err).Str("route", route).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				WriteJSON(w, http.StatusTooManyRequests, ErrorBody{Error: "rate limit exceeded", TraceID: logging.TraceID(r.Context())})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
