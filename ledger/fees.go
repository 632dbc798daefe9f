/*
fees.go - Platform fee split

PURPOSE:
  Pure arithmetic for dividing a purchase price into platform fee and seller
  amount. No I/O, no state: callers pass in the fee percentage current at
  ingestion time and snapshot the result onto the Transaction record.

CONTRACT:
  fee    = price * feePercentage / 100, rounded half-even
  seller = price - fee,                 rounded half-even
  fee + seller == price exactly; any rounding remainder is folded into the
  larger of the two parts.

PRECISION:
  Both rails use 8 decimal places as the canonical currency precision.
  Summation and rounding are decimal operations throughout - never binary
  floating point.
*/
package ledger

import "github.com/shopspring/decimal"

// CurrencyPrecision is the canonical number of decimal places for monetary
// amounts on both rails.
const CurrencyPrecision = 8

// Split divides price into (fee, sellerAmount) at the given fee percentage.
//
// Rounding is half-even at CurrencyPrecision. Conservation holds exactly:
// fee + sellerAmount == price, with any remainder after rounding assigned to
// the larger part.
func Split(price, feePercentage decimal.Decimal) (fee, sellerAmount decimal.Decimal) {
	// Shift(-2) divides by 100 without decimal division precision loss.
	fee = price.Mul(feePercentage.Shift(-2)).RoundBank(CurrencyPrecision)
	sellerAmount = price.Sub(fee).RoundBank(CurrencyPrecision)

	if rem := price.Sub(fee).Sub(sellerAmount); !rem.IsZero() {
		if sellerAmount.GreaterThanOrEqual(fee) {
			sellerAmount = sellerAmount.Add(rem)
		} else {
			fee = fee.Add(rem)
		}
	}
	return fee, sellerAmount
}
