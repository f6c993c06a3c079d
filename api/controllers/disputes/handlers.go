package disputes

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/api/middleware"
	"github.com/garagebid/garagebid-backend/api/responses"
	"github.com/garagebid/garagebid-backend/api/validators"
	internaldisputes "github.com/garagebid/garagebid-backend/internal/disputes"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
)

type createDisputeBody struct {
	Reason      string   `json:"reason" validate:"required"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	PhotoURLs   []string `json:"photo_urls,omitempty" validate:"omitempty,dive,url"`
}

// Create files a dispute against a delivered order.
func Create(svc internaldisputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createDisputeBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason, err := enums.ParseDisputeReason(body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute reason"))
			return
		}

		dispute, err := svc.Create(r.Context(), internaldisputes.CreateInput{
			OrderID:     orderID,
			CustomerID:  customerID,
			Reason:      reason,
			Description: body.Description,
			PhotoURLs:   body.PhotoURLs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dispute)
	}
}

type resolveDisputeBody struct {
	Decision string  `json:"decision" validate:"required,oneof=refund reject"`
	Note     *string `json:"note,omitempty" validate:"omitempty,max=2000"`
}

// Resolve records the operations decision on an open dispute.
func Resolve(svc internaldisputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := pathUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body resolveDisputeBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Resolve(r.Context(), internaldisputes.ResolveInput{
			DisputeID: disputeID,
			ActorID:   actorID,
			Decision:  internaldisputes.Resolution(body.Decision),
			Note:      body.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// Contest lets the garage push back on a dispute before it is resolved.
func Contest(svc internaldisputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		garageID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := pathUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Contest(r.Context(), disputeID, garageID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// ForOrder returns the dispute attached to an order, if any.
func ForOrder(svc internaldisputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.ForOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

func actorUUID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.ActorIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id")
	}
	return id, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, param+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}
