package fees

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
)

// ReturnShippingBy names who pays to ship a disputed part back.
type ReturnShippingBy string

const (
	ReturnShippingByCustomer ReturnShippingBy = "customer"
	ReturnShippingByGarage   ReturnShippingBy = "garage"
	ReturnShippingByPlatform ReturnShippingBy = "platform"
)

// RefundPolicy is one entry of the reason-keyed refund table.
type RefundPolicy struct {
	RefundPercent        int
	RestockingFeePercent int
	ReturnShippingBy     ReturnShippingBy
	RefundDeliveryFee    bool
	RequiresPhotos       bool
}

var refundPolicies = map[enums.DisputeReason]RefundPolicy{
	enums.DisputeReasonDamaged: {
		RefundPercent:        100,
		RestockingFeePercent: 0,
		ReturnShippingBy:     ReturnShippingByPlatform,
		RefundDeliveryFee:    true,
		RequiresPhotos:       true,
	},
	enums.DisputeReasonWrongPart: {
		RefundPercent:        100,
		RestockingFeePercent: 0,
		ReturnShippingBy:     ReturnShippingByGarage,
		RefundDeliveryFee:    true,
		RequiresPhotos:       true,
	},
	enums.DisputeReasonNotAsDescribed: {
		RefundPercent:        100,
		RestockingFeePercent: 10,
		ReturnShippingBy:     ReturnShippingByCustomer,
		RefundDeliveryFee:    false,
		RequiresPhotos:       true,
	},
	enums.DisputeReasonNeverArrived: {
		RefundPercent:        100,
		RestockingFeePercent: 0,
		ReturnShippingBy:     ReturnShippingByPlatform,
		RefundDeliveryFee:    true,
		RequiresPhotos:       false,
	},
	enums.DisputeReasonChangedMind: {
		RefundPercent:        80,
		RestockingFeePercent: 20,
		ReturnShippingBy:     ReturnShippingByCustomer,
		RefundDeliveryFee:    false,
		RequiresPhotos:       false,
	},
	enums.DisputeReasonOther: {
		RefundPercent:        50,
		RestockingFeePercent: 0,
		ReturnShippingBy:     ReturnShippingByPlatform,
		RefundDeliveryFee:    false,
		RequiresPhotos:       false,
	},
}

// PolicyFor returns the refund policy for a dispute reason.
func PolicyFor(reason enums.DisputeReason) (RefundPolicy, bool) {
	policy, ok := refundPolicies[reason]
	return policy, ok
}

// RefundQuote is the computed outcome of applying a refund policy.
type RefundQuote struct {
	RefundAmount        decimal.Decimal
	RestockingFee       decimal.Decimal
	DeliveryFeeRefunded bool
	ReturnShippingBy    ReturnShippingBy
}

// QuoteRefund applies the reason's policy to the order's part price and
// delivery fee.
func (c Calculator) QuoteRefund(reason enums.DisputeReason, partPrice, deliveryFee decimal.Decimal) (RefundQuote, error) {
	policy, ok := PolicyFor(reason)
	if !ok {
		return RefundQuote{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown dispute reason")
	}

	refund := Round2(partPrice.Mul(decimal.NewFromInt(int64(policy.RefundPercent))).Div(decimal.NewFromInt(100)))
	restocking := Round2(partPrice.Mul(decimal.NewFromInt(int64(policy.RestockingFeePercent))).Div(decimal.NewFromInt(100)))
	if policy.RefundDeliveryFee {
		refund = refund.Add(Round2(deliveryFee))
	}

	return RefundQuote{
		RefundAmount:        refund,
		RestockingFee:       restocking,
		DeliveryFeeRefunded: policy.RefundDeliveryFee,
		ReturnShippingBy:    policy.ReturnShippingBy,
	}, nil
}

// ValidateEvidence rejects disputes whose reason demands photo evidence when
// none was supplied. Absence is a hard validation failure, not a warning.
func ValidateEvidence(reason enums.DisputeReason, photoCount int) error {
	policy, ok := PolicyFor(reason)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown dispute reason")
	}
	if policy.RequiresPhotos && photoCount < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one photo is required for this dispute reason")
	}
	return nil
}

// WithinDisputeWindow reports whether a delivery is still disputable.
func WithinDisputeWindow(deliveredAt, now time.Time, window time.Duration) bool {
	if deliveredAt.IsZero() {
		return false
	}
	return now.Sub(deliveredAt) <= window
}
