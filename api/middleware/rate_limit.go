package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/garagebid/garagebid-backend/api/responses"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
)

const (
	writeLimitPerWindow = 60
	writeLimitWindow    = time.Minute
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// WriteRateLimit throttles mutating requests per actor. Reads pass through.
func WriteRateLimit(store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			actorID := ActorIDFromContext(ctx)
			if actorID == "" {
				next.ServeHTTP(w, r)
				return
			}

			scope := fmt.Sprintf("writes:%s", actorID)
			allowed, count, err := store.FixedWindowAllow(ctx, scope, writeLimitPerWindow, writeLimitWindow)
			if err != nil {
				// throttle store outage must not take writes down with it
				if logg != nil {
					logg.Warn(ctx, "rate limit store unavailable, letting request through")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"attempts":       count,
						"limit":          writeLimitPerWindow,
						"window_seconds": int(writeLimitWindow.Seconds()),
					})
					logg.Warn(logCtx, "write.rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
