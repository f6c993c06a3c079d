package wallets

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/api/middleware"
	"github.com/garagebid/garagebid-backend/api/responses"
	"github.com/garagebid/garagebid-backend/api/validators"
	internalwallets "github.com/garagebid/garagebid-backend/internal/wallets"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
	"github.com/garagebid/garagebid-backend/pkg/pagination"
)

// Statement returns the acting driver's wallet and recent ledger entries.
func Statement(svc internalwallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := middleware.ActorIDFromContext(r.Context())
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing"))
			return
		}
		driverID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		statement, err := svc.Statement(r.Context(), driverID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, statement)
	}
}
