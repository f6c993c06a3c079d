package enums

import "fmt"

// RequestStatus tracks the lifecycle of a customer part request.
type RequestStatus string

const (
	RequestStatusActive    RequestStatus = "active"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusCancelled RequestStatus = "cancelled"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusActive,
	RequestStatusAccepted,
	RequestStatusCancelled,
}

// String implements fmt.Stringer.
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RequestStatus.
func (s RequestStatus) IsValid() bool {
	for _, candidate := range validRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRequestStatus converts raw input into a RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	for _, candidate := range validRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request status %q", value)
}
