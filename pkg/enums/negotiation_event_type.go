package enums

import "fmt"

// NegotiationEventType classifies entries in the append-only negotiation log.
type NegotiationEventType string

const (
	NegotiationEventOfferMade      NegotiationEventType = "offer_made"
	NegotiationEventOfferAccepted  NegotiationEventType = "offer_accepted"
	NegotiationEventOfferRejected  NegotiationEventType = "offer_rejected"
	NegotiationEventOfferCountered NegotiationEventType = "offer_countered"
	NegotiationEventPriceApplied   NegotiationEventType = "price_applied"
)

var validNegotiationEventTypes = []NegotiationEventType{
	NegotiationEventOfferMade,
	NegotiationEventOfferAccepted,
	NegotiationEventOfferRejected,
	NegotiationEventOfferCountered,
	NegotiationEventPriceApplied,
}

// String implements fmt.Stringer.
func (t NegotiationEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known NegotiationEventType.
func (t NegotiationEventType) IsValid() bool {
	for _, candidate := range validNegotiationEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseNegotiationEventType converts raw input into a NegotiationEventType.
func ParseNegotiationEventType(value string) (NegotiationEventType, error) {
	for _, candidate := range validNegotiationEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid negotiation event type %q", value)
}
