package enums

import "fmt"

// ApprovalStatus is the platform vetting state of a garage. Demo garages pay
// no commission.
type ApprovalStatus string

const (
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusDemo     ApprovalStatus = "demo"
	ApprovalStatusPending  ApprovalStatus = "pending"
)

var validApprovalStatuses = []ApprovalStatus{
	ApprovalStatusApproved,
	ApprovalStatusDemo,
	ApprovalStatusPending,
}

// String implements fmt.Stringer.
func (a ApprovalStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ApprovalStatus.
func (a ApprovalStatus) IsValid() bool {
	for _, candidate := range validApprovalStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseApprovalStatus converts raw input into an ApprovalStatus.
func ParseApprovalStatus(value string) (ApprovalStatus, error) {
	for _, candidate := range validApprovalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid approval status %q", value)
}
