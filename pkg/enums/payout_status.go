package enums

import "fmt"

// PayoutStatus tracks the lifecycle of a garage payout.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusConfirmed  PayoutStatus = "confirmed"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusOnHold     PayoutStatus = "on_hold"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusProcessing,
	PayoutStatusConfirmed,
	PayoutStatusCompleted,
	PayoutStatusOnHold,
	PayoutStatusCancelled,
}

// String implements fmt.Stringer.
func (s PayoutStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PayoutStatus.
func (s PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
