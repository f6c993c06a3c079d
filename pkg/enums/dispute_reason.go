package enums

import "fmt"

// DisputeReason is the fixed set of claims a customer can raise against a
// delivered order. The refund policy is keyed by this value.
type DisputeReason string

const (
	DisputeReasonDamaged        DisputeReason = "damaged"
	DisputeReasonWrongPart      DisputeReason = "wrong_part"
	DisputeReasonNotAsDescribed DisputeReason = "not_as_described"
	DisputeReasonNeverArrived   DisputeReason = "never_arrived"
	DisputeReasonChangedMind    DisputeReason = "changed_mind"
	DisputeReasonOther          DisputeReason = "other"
)

var validDisputeReasons = []DisputeReason{
	DisputeReasonDamaged,
	DisputeReasonWrongPart,
	DisputeReasonNotAsDescribed,
	DisputeReasonNeverArrived,
	DisputeReasonChangedMind,
	DisputeReasonOther,
}

// String implements fmt.Stringer.
func (r DisputeReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known DisputeReason.
func (r DisputeReason) IsValid() bool {
	for _, candidate := range validDisputeReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseDisputeReason converts raw input into a DisputeReason.
func ParseDisputeReason(value string) (DisputeReason, error) {
	for _, candidate := range validDisputeReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute reason %q", value)
}
