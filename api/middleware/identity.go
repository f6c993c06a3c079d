package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/api/responses"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
)

const (
	actorIDHeader   = "X-Actor-Id"
	actorRoleHeader = "X-Actor-Role"
)

// Identity resolves the acting party from the gateway-injected identity
// headers. The upstream gateway owns authentication; this service only
// trusts its verdict.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := strings.TrimSpace(r.Header.Get(actorIDHeader))
			rawRole := strings.TrimSpace(strings.ToLower(r.Header.Get(actorRoleHeader)))

			if rawID == "" || rawRole == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity headers missing"))
				return
			}
			if _, err := uuid.Parse(rawID); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id"))
				return
			}
			role, err := enums.ParseActorType(rawRole)
			if err != nil || role == enums.ActorTypeSystem {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown actor role"))
				return
			}

			ctx := WithActor(r.Context(), rawID, role)
			if logg != nil {
				ctx = logg.WithActorID(ctx, rawID)
				ctx = logg.WithActorRole(ctx, rawRole)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
