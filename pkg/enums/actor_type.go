package enums

import "fmt"

// ActorType identifies who performed an action against an order or bid.
type ActorType string

const (
	ActorTypeCustomer   ActorType = "customer"
	ActorTypeGarage     ActorType = "garage"
	ActorTypeDriver     ActorType = "driver"
	ActorTypeOperations ActorType = "operations"
	ActorTypeSystem     ActorType = "system"
)

var validActorTypes = []ActorType{
	ActorTypeCustomer,
	ActorTypeGarage,
	ActorTypeDriver,
	ActorTypeOperations,
	ActorTypeSystem,
}

// String implements fmt.Stringer.
func (a ActorType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorType.
func (a ActorType) IsValid() bool {
	for _, candidate := range validActorTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActorType converts raw input into an ActorType.
func ParseActorType(value string) (ActorType, error) {
	for _, candidate := range validActorTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor type %q", value)
}
