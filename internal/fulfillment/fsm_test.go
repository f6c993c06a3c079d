package fulfillment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

func TestOrderTransitions(t *testing.T) {
	assert.True(t, CanTransition(enums.OrderStatusConfirmed, enums.OrderStatusPreparing))
	assert.True(t, CanTransition(enums.OrderStatusDelivered, enums.OrderStatusCompleted))
	assert.True(t, CanTransition(enums.OrderStatusDisputed, enums.OrderStatusRefunded))

	assert.False(t, CanTransition(enums.OrderStatusConfirmed, enums.OrderStatusDelivered))
	assert.False(t, CanTransition(enums.OrderStatusRefunded, enums.OrderStatusConfirmed))
	assert.False(t, CanTransition(enums.OrderStatusCancelled, enums.OrderStatusPreparing))
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, status := range []enums.OrderStatus{enums.OrderStatusRefunded, enums.OrderStatusCancelled} {
		assert.Empty(t, AllowedTransitions(status), "%s should be terminal", status)
	}
}

func TestGarageTransitionHappyPath(t *testing.T) {
	require.NoError(t, GarageTransition(enums.OrderStatusConfirmed, enums.OrderStatusPreparing))
	require.NoError(t, GarageTransition(enums.OrderStatusPreparing, enums.OrderStatusReadyForPickup))
}

func TestGarageTransitionStageSpecificMessages(t *testing.T) {
	err := GarageTransition(enums.OrderStatusConfirmed, enums.OrderStatusReadyForPickup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can only move to preparing")

	err = GarageTransition(enums.OrderStatusReadyForPickup, enums.OrderStatusCollected)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver collects")

	err = GarageTransition(enums.OrderStatusCompleted, enums.OrderStatusPreparing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer be updated")

	err = GarageTransition(enums.OrderStatusInTransit, enums.OrderStatusDelivered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "garages only update orders")
}

func TestDriverOrderStatusKeyedByAssignmentType(t *testing.T) {
	// the same driver status maps to different order statuses per type
	status, ok := DriverOrderStatus(enums.AssignmentTypeCollection, enums.AssignmentStatusPickedUp)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusCollected, status)

	status, ok = DriverOrderStatus(enums.AssignmentTypeDelivery, enums.AssignmentStatusPickedUp)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusInTransit, status)

	status, ok = DriverOrderStatus(enums.AssignmentTypeDelivery, enums.AssignmentStatusDelivered)
	require.True(t, ok)
	assert.Equal(t, enums.OrderStatusDelivered, status)

	// en_route never moves the order
	_, ok = DriverOrderStatus(enums.AssignmentTypeDelivery, enums.AssignmentStatusEnRoute)
	assert.False(t, ok)
}

func TestFailedAssignmentRoutesToDisputed(t *testing.T) {
	for _, at := range []enums.AssignmentType{
		enums.AssignmentTypeCollection,
		enums.AssignmentTypeDelivery,
		enums.AssignmentTypeReturnToGarage,
	} {
		status, ok := DriverOrderStatus(at, enums.AssignmentStatusFailed)
		require.True(t, ok, "failed must map for %s", at)
		assert.Equal(t, enums.OrderStatusDisputed, status)
	}
}

func TestAssignmentProgression(t *testing.T) {
	assert.True(t, CanAdvanceAssignment(enums.AssignmentStatusAssigned, enums.AssignmentStatusEnRoute))
	assert.True(t, CanAdvanceAssignment(enums.AssignmentStatusAssigned, enums.AssignmentStatusPickedUp))
	assert.True(t, CanAdvanceAssignment(enums.AssignmentStatusPickedUp, enums.AssignmentStatusDelivered))
	assert.True(t, CanAdvanceAssignment(enums.AssignmentStatusEnRoute, enums.AssignmentStatusFailed))

	assert.False(t, CanAdvanceAssignment(enums.AssignmentStatusDelivered, enums.AssignmentStatusFailed))
	assert.False(t, CanAdvanceAssignment(enums.AssignmentStatusPickedUp, enums.AssignmentStatusEnRoute))
	assert.False(t, CanAdvanceAssignment(enums.AssignmentStatusFailed, enums.AssignmentStatusAssigned))
}
