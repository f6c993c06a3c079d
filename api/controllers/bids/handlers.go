package bids

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garagebid/garagebid-backend/api/middleware"
	"github.com/garagebid/garagebid-backend/api/responses"
	"github.com/garagebid/garagebid-backend/api/validators"
	internalbids "github.com/garagebid/garagebid-backend/internal/bids"
	"github.com/garagebid/garagebid-backend/internal/negotiation"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
)

type submitBidBody struct {
	RequestID    string          `json:"request_id" validate:"required,uuid"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	Condition    string          `json:"condition" validate:"required,oneof=new used refurbished"`
	WarrantyDays int             `json:"warranty_days" validate:"min=0,max=365"`
}

// Submit places a garage bid on a part request.
func Submit(svc internalbids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		garageID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body submitBidBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := uuid.Parse(body.RequestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request id"))
			return
		}

		bid, err := svc.Submit(r.Context(), internalbids.SubmitInput{
			RequestID:    requestID,
			GarageID:     garageID,
			Amount:       body.Amount,
			Condition:    body.Condition,
			WarrantyDays: body.WarrantyDays,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bid)
	}
}

type acceptBidBody struct {
	PaymentMethod string  `json:"payment_method,omitempty" validate:"omitempty,oneof=cash card"`
	DeliveryNotes *string `json:"delivery_notes,omitempty" validate:"omitempty,max=500"`
}

// Accept converts a pending bid into an order for the acting customer.
func Accept(svc internalbids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bidID, err := pathUUID(r, "bidId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body acceptBidBody
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		var method enums.PaymentMethod
		if body.PaymentMethod != "" {
			method, err = enums.ParsePaymentMethod(body.PaymentMethod)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
				return
			}
		}

		order, err := svc.Accept(r.Context(), internalbids.AcceptInput{
			BidID:         bidID,
			CustomerID:    customerID,
			PaymentMethod: method,
			DeliveryNotes: body.DeliveryNotes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// ListForRequest returns every bid on a request, cheapest first.
func ListForRequest(svc internalbids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bids, err := svc.ListForRequest(r.Context(), requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bids)
	}
}

type counterOfferBody struct {
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	Message *string         `json:"message,omitempty" validate:"omitempty,max=500"`
}

// CounterOffer opens a negotiation round on a pending bid.
func CounterOffer(svc negotiation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bidID, err := pathUUID(r, "bidId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body counterOfferBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.CreateCounterOffer(r.Context(), negotiation.CreateOfferInput{
			BidID:     bidID,
			ActorID:   actorID,
			ActorType: middleware.ActorRoleFromContext(r.Context()),
			Amount:    body.Amount,
			Message:   body.Message,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

type respondBody struct {
	Action  string          `json:"action" validate:"required,oneof=accept reject counter"`
	Amount  decimal.Decimal `json:"amount,omitempty"`
	Message *string         `json:"message,omitempty" validate:"omitempty,max=500"`
}

// RespondToCounterOffer settles or escalates the pending counter offer.
func RespondToCounterOffer(svc negotiation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offerID, err := pathUUID(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body respondBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RespondToCounterOffer(r.Context(), negotiation.RespondInput{
			CounterOfferID: offerID,
			ActorID:        actorID,
			ActorType:      middleware.ActorRoleFromContext(r.Context()),
			Action:         negotiation.RespondAction(body.Action),
			Amount:         body.Amount,
			Message:        body.Message,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AcceptLastGarageOffer lets the customer take the garage's final number
// after negotiation rounds are exhausted.
func AcceptLastGarageOffer(svc negotiation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bidID, err := pathUUID(r, "bidId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bid, err := svc.AcceptLastGarageOffer(r.Context(), bidID, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bid)
	}
}

// NegotiationHistory returns the append-only negotiation log of a bid.
func NegotiationHistory(svc negotiation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bidID, err := pathUUID(r, "bidId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.History(r.Context(), bidID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events)
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
