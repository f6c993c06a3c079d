package enums

import "fmt"

// AssignmentType distinguishes the kinds of driver work tied to an order.
type AssignmentType string

const (
	AssignmentTypeCollection     AssignmentType = "collection"
	AssignmentTypeDelivery       AssignmentType = "delivery"
	AssignmentTypeReturnToGarage AssignmentType = "return_to_garage"
)

var validAssignmentTypes = []AssignmentType{
	AssignmentTypeCollection,
	AssignmentTypeDelivery,
	AssignmentTypeReturnToGarage,
}

// String implements fmt.Stringer.
func (a AssignmentType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentType.
func (a AssignmentType) IsValid() bool {
	for _, candidate := range validAssignmentTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssignmentType converts raw input into an AssignmentType.
func ParseAssignmentType(value string) (AssignmentType, error) {
	for _, candidate := range validAssignmentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment type %q", value)
}
