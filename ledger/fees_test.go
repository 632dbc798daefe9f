package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prism/market-ledger/ledger"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// SPLIT CONTRACT TESTS
// =============================================================================

func TestSplit_CanonicalExample(t *testing.T) {
	// GIVEN: Price 1.0 at a 2.5% platform fee
	// WHEN: Splitting
	// THEN: Fee is 0.025 and the seller gets 0.975

	fee, seller := ledger.Split(dec("1.0"), dec("2.5"))

	assert.True(t, fee.Equal(dec("0.025")), "fee = %s", fee)
	assert.True(t, seller.Equal(dec("0.975")), "seller = %s", seller)
}

func TestSplit_Conservation(t *testing.T) {
	// GIVEN: A spread of awkward prices and fee percentages
	// WHEN: Splitting each
	// THEN: fee + seller always reconstructs the price exactly

	cases := []struct{ price, pct string }{
		{"1.0", "2.5"},
		{"0.1", "2.5"},
		{"0.0000001", "2.5"},
		{"123.456789", "2.5"},
		{"1", "3"},
		{"0.333333333", "7.77"},
		{"99999999.99999999", "0.1"},
		{"1.00000001", "50"},
	}
	for _, tc := range cases {
		fee, seller := ledger.Split(dec(tc.price), dec(tc.pct))
		sum := fee.Add(seller)
		assert.True(t, sum.Equal(dec(tc.price)),
			"price %s pct %s: fee %s + seller %s = %s", tc.price, tc.pct, fee, seller, sum)
	}
}

func TestSplit_HalfEvenRounding(t *testing.T) {
	// GIVEN: A raw fee landing exactly on the half-way point at 8 decimals
	// WHEN: Splitting
	// THEN: The fee rounds to the even neighbor

	// 0.000000125 * 10% = 0.0000000125, half-way between 0.00000001 and
	// 0.00000002 at 8 places; banker's rounding keeps the even 2 in the
	// last position... 0.00000001 has odd last digit, 0.00000002 even.
	fee, seller := ledger.Split(dec("0.000000125"), dec("10"))

	assert.True(t, fee.Equal(dec("0.00000002")), "fee = %s", fee)
	assert.True(t, fee.Add(seller).Equal(dec("0.000000125")))
}

func TestSplit_ZeroPrice(t *testing.T) {
	fee, seller := ledger.Split(decimal.Zero, dec("2.5"))
	assert.True(t, fee.IsZero())
	assert.True(t, seller.IsZero())
}

func TestSplit_ZeroFeePercentage(t *testing.T) {
	// GIVEN: A zero platform fee
	// WHEN: Splitting any price
	// THEN: The seller receives everything

	fee, seller := ledger.Split(dec("42.5"), decimal.Zero)
	assert.True(t, fee.IsZero())
	assert.True(t, seller.Equal(dec("42.5")))
}

func TestSplit_FullFeePercentage(t *testing.T) {
	fee, seller := ledger.Split(dec("10"), dec("100"))
	assert.True(t, fee.Equal(dec("10")))
	assert.True(t, seller.IsZero())
}

func TestSplit_PrecisionCap(t *testing.T) {
	// GIVEN: A price whose raw fee exceeds 8 decimal places
	// WHEN: Splitting
	// THEN: Both parts stay within the currency precision and still conserve

	price := dec("0.123456789")
	fee, seller := ledger.Split(price, dec("2.5"))

	require.True(t, fee.Add(seller).Equal(price))
	assert.LessOrEqual(t, int(-fee.Exponent()), ledger.CurrencyPrecision+1,
		"fee %s carries more digits than the remainder fold allows", fee)
}
