package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/api/middleware"
	"github.com/garagebid/garagebid-backend/api/responses"
	"github.com/garagebid/garagebid-backend/api/validators"
	"github.com/garagebid/garagebid-backend/internal/fulfillment"
	"github.com/garagebid/garagebid-backend/internal/payouts"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
)

type garageStatusBody struct {
	Status string  `json:"status" validate:"required"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// GarageUpdateStatus moves an order along the preparing and ready stages.
func GarageUpdateStatus(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		garageID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body garageStatusBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		change, err := svc.GarageUpdateStatus(r.Context(), fulfillment.GarageStatusInput{
			OrderID:  orderID,
			GarageID: garageID,
			Target:   target,
			Reason:   body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, change)
	}
}

type assignmentBody struct {
	Status     string  `json:"status" validate:"required,oneof=assigned picked_up delivered failed"`
	FailReason *string `json:"fail_reason,omitempty" validate:"omitempty,max=500"`
}

// UpdateAssignment advances a driver assignment and the order it belongs to.
func UpdateAssignment(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorUUID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := pathUUID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body assignmentBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseAssignmentStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid assignment status"))
			return
		}

		result, err := svc.DriverUpdateAssignment(r.Context(), fulfillment.AssignmentInput{
			AssignmentID: assignmentID,
			ActorID:      actorID,
			ActorType:    middleware.ActorRoleFromContext(r.Context()),
			Status:       status,
			FailReason:   body.FailReason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ConfirmDelivery is the customer's delivered to completed confirmation.
func ConfirmDelivery(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
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

		change, err := svc.ConfirmDelivery(r.Context(), fulfillment.ConfirmInput{
			OrderID:    orderID,
			CustomerID: customerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, change)
	}
}

// Detail returns the full order with its frozen financial snapshot.
func Detail(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.OrderDetail(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// History returns the order's transition audit trail, oldest first.
func History(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.OrderHistory(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}

// PayoutForOrder returns the garage payout attached to an order.
func PayoutForOrder(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.ForOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

// ReleasePayout pushes a pending payout into processing ahead of the sweep.
func ReleasePayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payoutID, err := pathUUID(r, "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Release(r.Context(), payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
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
