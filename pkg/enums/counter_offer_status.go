package enums

import "fmt"

// CounterOfferStatus tracks a single negotiation turn.
type CounterOfferStatus string

const (
	CounterOfferStatusPending   CounterOfferStatus = "pending"
	CounterOfferStatusAccepted  CounterOfferStatus = "accepted"
	CounterOfferStatusRejected  CounterOfferStatus = "rejected"
	CounterOfferStatusCountered CounterOfferStatus = "countered"
)

var validCounterOfferStatuses = []CounterOfferStatus{
	CounterOfferStatusPending,
	CounterOfferStatusAccepted,
	CounterOfferStatusRejected,
	CounterOfferStatusCountered,
}

// String implements fmt.Stringer.
func (s CounterOfferStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CounterOfferStatus.
func (s CounterOfferStatus) IsValid() bool {
	for _, candidate := range validCounterOfferStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCounterOfferStatus converts raw input into a CounterOfferStatus.
func ParseCounterOfferStatus(value string) (CounterOfferStatus, error) {
	for _, candidate := range validCounterOfferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid counter offer status %q", value)
}
