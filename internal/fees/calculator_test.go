package fees

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagebid/garagebid-backend/pkg/config"
	"github.com/garagebid/garagebid-backend/pkg/enums"
)

func testCalculator() Calculator {
	return NewCalculator(config.MarketplaceConfig{
		DefaultCommissionRate: 0.15,
		FlatDeliveryFee:       15.00,
		DriverEarningFloor:    5.00,
		DriverEarningRate:     0.10,
	})
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestQuoteOrder(t *testing.T) {
	calc := testCalculator()

	quote := calc.QuoteOrder(dec("150"), dec("0.15"), dec("25"))
	assert.True(t, quote.PlatformFee.Equal(dec("22.50")), "platform fee %s", quote.PlatformFee)
	assert.True(t, quote.GaragePayout.Equal(dec("127.50")), "garage payout %s", quote.GaragePayout)
	assert.True(t, quote.Total.Equal(dec("175")), "total %s", quote.Total)
}

func TestQuoteOrderFinancialIdentity(t *testing.T) {
	calc := testCalculator()

	cases := []struct {
		price string
		rate  string
		fee   string
	}{
		{"150", "0.15", "25"},
		{"99.99", "0.15", "15"},
		{"0.01", "0.15", "15"},
		{"333.33", "0.125", "7.77"},
		{"1234.56", "0.20", "0"},
	}
	for _, tc := range cases {
		quote := calc.QuoteOrder(dec(tc.price), dec(tc.rate), dec(tc.fee))
		sum := quote.GaragePayout.Add(quote.PlatformFee)
		assert.True(t, sum.Equal(quote.PartPrice),
			"payout+fee != price for %s: %s + %s", tc.price, quote.GaragePayout, quote.PlatformFee)
		assert.True(t, quote.Total.Equal(quote.PartPrice.Add(quote.DeliveryFee)),
			"total identity broken for %s", tc.price)
	}
}

func TestQuoteOrderZeroRate(t *testing.T) {
	calc := testCalculator()

	quote := calc.QuoteOrder(dec("200"), decimal.Zero, dec("10"))
	assert.True(t, quote.PlatformFee.IsZero())
	assert.True(t, quote.GaragePayout.Equal(dec("200")))
}

func TestRound2HalfAwayFromZero(t *testing.T) {
	assert.True(t, Round2(dec("1.005")).Equal(dec("1.01")))
	assert.True(t, Round2(dec("-1.005")).Equal(dec("-1.01")))
	assert.True(t, Round2(dec("2.344")).Equal(dec("2.34")))
}

func TestDriverEarning(t *testing.T) {
	calc := testCalculator()

	// 10% of 175 beats the 5.00 floor
	assert.True(t, calc.DriverEarning(dec("175")).Equal(dec("17.50")))
	// 10% of 20 loses to the floor
	assert.True(t, calc.DriverEarning(dec("20")).Equal(dec("5")))
}

func TestQuoteRefundDamaged(t *testing.T) {
	calc := testCalculator()

	quote, err := calc.QuoteRefund(enums.DisputeReasonDamaged, dec("200"), dec("25"))
	require.NoError(t, err)
	// full part price plus the delivery fee
	assert.True(t, quote.RefundAmount.Equal(dec("225")), "refund %s", quote.RefundAmount)
	assert.True(t, quote.RestockingFee.IsZero())
	assert.True(t, quote.DeliveryFeeRefunded)
	assert.Equal(t, ReturnShippingByPlatform, quote.ReturnShippingBy)
}

func TestQuoteRefundChangedMind(t *testing.T) {
	calc := testCalculator()

	quote, err := calc.QuoteRefund(enums.DisputeReasonChangedMind, dec("100"), dec("25"))
	require.NoError(t, err)
	assert.True(t, quote.RefundAmount.Equal(dec("80")), "refund %s", quote.RefundAmount)
	assert.True(t, quote.RestockingFee.Equal(dec("20")))
	assert.False(t, quote.DeliveryFeeRefunded)
	assert.Equal(t, ReturnShippingByCustomer, quote.ReturnShippingBy)
}

func TestQuoteRefundUnknownReason(t *testing.T) {
	calc := testCalculator()

	_, err := calc.QuoteRefund(enums.DisputeReason("bogus"), dec("100"), dec("25"))
	require.Error(t, err)
}

func TestValidateEvidence(t *testing.T) {
	require.Error(t, ValidateEvidence(enums.DisputeReasonDamaged, 0))
	require.NoError(t, ValidateEvidence(enums.DisputeReasonDamaged, 1))
	require.NoError(t, ValidateEvidence(enums.DisputeReasonNeverArrived, 0))
	require.Error(t, ValidateEvidence(enums.DisputeReason("bogus"), 3))
}

func TestWithinDisputeWindow(t *testing.T) {
	now := time.Now()
	window := 48 * time.Hour

	assert.True(t, WithinDisputeWindow(now.Add(-47*time.Hour), now, window))
	assert.True(t, WithinDisputeWindow(now.Add(-48*time.Hour), now, window))
	assert.False(t, WithinDisputeWindow(now.Add(-49*time.Hour), now, window))
	assert.False(t, WithinDisputeWindow(time.Time{}, now, window))
}
