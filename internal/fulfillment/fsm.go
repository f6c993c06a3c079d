package fulfillment

import (
	"fmt"

	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
)

// orderTransitions is the full order state machine. Transitions are checked
// here before any write; role gating narrows it further per actor.
var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusConfirmed:      {enums.OrderStatusPreparing, enums.OrderStatusCancelled, enums.OrderStatusDisputed},
	enums.OrderStatusPreparing:      {enums.OrderStatusReadyForPickup, enums.OrderStatusCancelled, enums.OrderStatusDisputed},
	enums.OrderStatusReadyForPickup: {enums.OrderStatusCollected, enums.OrderStatusCancelled, enums.OrderStatusDisputed},
	enums.OrderStatusCollected:      {enums.OrderStatusInTransit, enums.OrderStatusDisputed},
	enums.OrderStatusInTransit:      {enums.OrderStatusDelivered, enums.OrderStatusDisputed},
	enums.OrderStatusDelivered:      {enums.OrderStatusCompleted, enums.OrderStatusDisputed},
	enums.OrderStatusCompleted:      {enums.OrderStatusDisputed},
	enums.OrderStatusDisputed:       {enums.OrderStatusRefunded, enums.OrderStatusCompleted},
	enums.OrderStatusRefunded:       {},
	enums.OrderStatusCancelled:      {},
}

// AllowedTransitions returns the order statuses reachable from the given state.
func AllowedTransitions(from enums.OrderStatus) []enums.OrderStatus {
	targets := orderTransitions[from]
	out := make([]enums.OrderStatus, len(targets))
	copy(out, targets)
	return out
}

// CanTransition reports whether from → to is a legal order transition.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range orderTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// garageSteps is the garage-allowed slice of the order machine. Garages
// prepare the part and hand it to a driver; they never advance past
// ready_for_pickup.
var garageSteps = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusConfirmed: enums.OrderStatusPreparing,
	enums.OrderStatusPreparing: enums.OrderStatusReadyForPickup,
}

// GarageTransition validates a garage-authored status change and returns a
// stage-specific message on rejection.
func GarageTransition(from, to enums.OrderStatus) error {
	allowed, ok := garageSteps[from]
	if !ok {
		switch {
		case from == enums.OrderStatusReadyForPickup:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				"order is ready for pickup; a driver collects it from here")
		case from.IsTerminal():
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s and can no longer be updated", from))
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s; garages only update orders that are confirmed or preparing", from))
		}
	}
	if to != allowed {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("a %s order can only move to %s", from, allowed))
	}
	return nil
}

// driverOrderEffects maps a driver-reported assignment status to the order
// status it implies, keyed by assignment type. Absent entries leave the order
// untouched.
var driverOrderEffects = map[enums.AssignmentType]map[enums.AssignmentStatus]enums.OrderStatus{
	enums.AssignmentTypeCollection: {
		enums.AssignmentStatusPickedUp: enums.OrderStatusCollected,
		enums.AssignmentStatusFailed:   enums.OrderStatusDisputed,
	},
	enums.AssignmentTypeDelivery: {
		enums.AssignmentStatusPickedUp:  enums.OrderStatusInTransit,
		enums.AssignmentStatusDelivered: enums.OrderStatusDelivered,
		enums.AssignmentStatusFailed:    enums.OrderStatusDisputed,
	},
	enums.AssignmentTypeReturnToGarage: {
		enums.AssignmentStatusFailed: enums.OrderStatusDisputed,
	},
}

// DriverOrderStatus returns the order status implied by an assignment
// status, if any.
func DriverOrderStatus(assignmentType enums.AssignmentType, status enums.AssignmentStatus) (enums.OrderStatus, bool) {
	effects, ok := driverOrderEffects[assignmentType]
	if !ok {
		return "", false
	}
	target, ok := effects[status]
	return target, ok
}

// assignmentTransitions is the per-assignment progress machine. failed is
// reachable from every non-terminal state.
var assignmentTransitions = map[enums.AssignmentStatus][]enums.AssignmentStatus{
	enums.AssignmentStatusAssigned:  {enums.AssignmentStatusEnRoute, enums.AssignmentStatusPickedUp, enums.AssignmentStatusFailed},
	enums.AssignmentStatusEnRoute:   {enums.AssignmentStatusPickedUp, enums.AssignmentStatusFailed},
	enums.AssignmentStatusPickedUp:  {enums.AssignmentStatusDelivered, enums.AssignmentStatusFailed},
	enums.AssignmentStatusDelivered: {},
	enums.AssignmentStatusFailed:    {},
}

// CanAdvanceAssignment reports whether from → to is a legal assignment
// transition.
func CanAdvanceAssignment(from, to enums.AssignmentStatus) bool {
	for _, candidate := range assignmentTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
