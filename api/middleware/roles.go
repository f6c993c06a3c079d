package middleware

import (
	"net/http"

	"github.com/garagebid/garagebid-backend/api/responses"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
)

func RequireRole(logg *logger.Logger, roles ...enums.ActorType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actual := ActorRoleFromContext(r.Context())
			for _, role := range roles {
				if actual == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required"))
		})
	}
}
