package fees

import (
	"github.com/shopspring/decimal"

	"github.com/garagebid/garagebid-backend/pkg/config"
)

// Calculator computes every money figure in the marketplace. It is pure:
// no I/O, deterministic, all results rounded to 2 decimals half away from
// zero (decimal.Round semantics).
type Calculator struct {
	defaultCommissionRate decimal.Decimal
	flatDeliveryFee       decimal.Decimal
	driverEarningFloor    decimal.Decimal
	driverEarningRate     decimal.Decimal
}

// NewCalculator builds a calculator from marketplace configuration.
func NewCalculator(cfg config.MarketplaceConfig) Calculator {
	return Calculator{
		defaultCommissionRate: decimal.NewFromFloat(cfg.DefaultCommissionRate),
		flatDeliveryFee:       decimal.NewFromFloat(cfg.FlatDeliveryFee),
		driverEarningFloor:    decimal.NewFromFloat(cfg.DriverEarningFloor),
		driverEarningRate:     decimal.NewFromFloat(cfg.DriverEarningRate),
	}
}

// Round2 rounds a currency amount to 2 decimals, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DefaultCommissionRate is the platform rate applied when a garage has no
// qualifying subscription.
func (c Calculator) DefaultCommissionRate() decimal.Decimal {
	return c.defaultCommissionRate
}

// FlatDeliveryFee is the fallback fee when no zone matches.
func (c Calculator) FlatDeliveryFee() decimal.Decimal {
	return c.flatDeliveryFee
}

// Quote is the frozen financial snapshot for an order.
type Quote struct {
	PartPrice    decimal.Decimal
	Rate         decimal.Decimal
	PlatformFee  decimal.Decimal
	DeliveryFee  decimal.Decimal
	GaragePayout decimal.Decimal
	Total        decimal.Decimal
}

// QuoteOrder computes the order snapshot from the part price, the resolved
// commission rate and the resolved delivery fee. The identities
// garage_payout + platform_fee == part_price and
// total == part_price + delivery_fee hold after rounding.
func (c Calculator) QuoteOrder(partPrice, rate, deliveryFee decimal.Decimal) Quote {
	partPrice = Round2(partPrice)
	deliveryFee = Round2(deliveryFee)
	platformFee := Round2(partPrice.Mul(rate))
	return Quote{
		PartPrice:    partPrice,
		Rate:         rate,
		PlatformFee:  platformFee,
		DeliveryFee:  deliveryFee,
		GaragePayout: partPrice.Sub(platformFee),
		Total:        partPrice.Add(deliveryFee),
	}
}

// DriverEarning is the driver's cut for a delivered order: a fixed floor or a
// percentage of the order total, whichever is greater.
func (c Calculator) DriverEarning(orderTotal decimal.Decimal) decimal.Decimal {
	cut := Round2(orderTotal.Mul(c.driverEarningRate))
	if cut.LessThan(c.driverEarningFloor) {
		return c.driverEarningFloor
	}
	return cut
}
