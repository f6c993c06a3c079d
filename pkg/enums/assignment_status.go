package enums

import "fmt"

// AssignmentStatus tracks the driver-reported progress of an assignment.
type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "assigned"
	AssignmentStatusEnRoute   AssignmentStatus = "en_route"
	AssignmentStatusPickedUp  AssignmentStatus = "picked_up"
	AssignmentStatusDelivered AssignmentStatus = "delivered"
	AssignmentStatusFailed    AssignmentStatus = "failed"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusAssigned,
	AssignmentStatusEnRoute,
	AssignmentStatusPickedUp,
	AssignmentStatusDelivered,
	AssignmentStatusFailed,
}

// String implements fmt.Stringer.
func (s AssignmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (s AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAssignmentStatus converts raw input into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}
