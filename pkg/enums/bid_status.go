package enums

import "fmt"

// BidStatus tracks the lifecycle of a garage bid.
type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusAccepted BidStatus = "accepted"
	BidStatusRejected BidStatus = "rejected"
)

var validBidStatuses = []BidStatus{
	BidStatusPending,
	BidStatusAccepted,
	BidStatusRejected,
}

// String implements fmt.Stringer.
func (s BidStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BidStatus.
func (s BidStatus) IsValid() bool {
	for _, candidate := range validBidStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBidStatus converts raw input into a BidStatus.
func ParseBidStatus(value string) (BidStatus, error) {
	for _, candidate := range validBidStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bid status %q", value)
}
