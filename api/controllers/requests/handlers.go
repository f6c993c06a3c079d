package requests

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/api/middleware"
	"github.com/garagebid/garagebid-backend/api/responses"
	"github.com/garagebid/garagebid-backend/api/validators"
	internalrequests "github.com/garagebid/garagebid-backend/internal/requests"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
	"github.com/garagebid/garagebid-backend/pkg/pagination"
)

type createRequestBody struct {
	VehicleMake  string   `json:"vehicle_make" validate:"required,max=60"`
	VehicleModel string   `json:"vehicle_model" validate:"required,max=60"`
	VehicleYear  int      `json:"vehicle_year" validate:"required"`
	PartName     string   `json:"part_name" validate:"required,max=120"`
	Description  *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	DeliveryLat  *float64 `json:"delivery_lat,omitempty"`
	DeliveryLng  *float64 `json:"delivery_lng,omitempty"`
}

// Create opens a new part request for the acting customer.
func Create(svc internalrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Create(r.Context(), internalrequests.CreateInput{
			CustomerID:   customerID,
			VehicleMake:  strings.TrimSpace(body.VehicleMake),
			VehicleModel: strings.TrimSpace(body.VehicleModel),
			VehicleYear:  body.VehicleYear,
			PartName:     strings.TrimSpace(body.PartName),
			Description:  body.Description,
			DeliveryLat:  body.DeliveryLat,
			DeliveryLng:  body.DeliveryLng,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// Cancel withdraws an active request and rejects its pending bids.
func Cancel(svc internalrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Cancel(r.Context(), requestID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// Detail returns one request.
func Detail(svc internalrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Get(r.Context(), requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// List returns the acting customer's requests, newest first.
func List(svc internalrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		page, err := svc.ListByCustomer(r.Context(), customerID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
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
