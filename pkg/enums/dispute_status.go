package enums

import "fmt"

// DisputeStatus tracks a customer dispute from filing to resolution.
type DisputeStatus string

const (
	DisputeStatusPending      DisputeStatus = "pending"
	DisputeStatusUnderReview  DisputeStatus = "under_review"
	DisputeStatusResolved     DisputeStatus = "resolved"
	DisputeStatusContested    DisputeStatus = "contested"
	DisputeStatusAutoResolved DisputeStatus = "auto_resolved"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusPending,
	DisputeStatusUnderReview,
	DisputeStatusResolved,
	DisputeStatusContested,
	DisputeStatusAutoResolved,
}

// String implements fmt.Stringer.
func (s DisputeStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DisputeStatus.
func (s DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOpen reports whether the dispute still awaits a resolution.
func (s DisputeStatus) IsOpen() bool {
	switch s {
	case DisputeStatusPending, DisputeStatusUnderReview, DisputeStatusContested:
		return true
	default:
		return false
	}
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}
