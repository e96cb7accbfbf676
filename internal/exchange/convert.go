// Package exchange implements pivot-currency conversion. Every enrolled
// economy publishes a rate as "local units per 1 USD", so converting between
// two economies goes through USD rather than a direct rate table.
package exchange

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidRate is returned when a rate is zero or negative. The registry
// rejects such rates at registration; this is a second line of defense.
var ErrInvalidRate = errors.New("exchange: rate must be positive")

// Convert turns amount in source-economy units into target-economy units:
// amount / rateSource * rateTarget. No rounding happens here; callers round
// at the ledger-write or presentation boundary.
func Convert(amount, rateSource, rateTarget decimal.Decimal) (decimal.Decimal, error) {
	if rateSource.Sign() <= 0 || rateTarget.Sign() <= 0 {
		return decimal.Zero, ErrInvalidRate
	}
	return amount.Div(rateSource).Mul(rateTarget), nil
}

// RateUsed is the effective source→target rate recorded on a transfer:
// 1 source unit buys rateTarget/rateSource target units.
func RateUsed(rateSource, rateTarget decimal.Decimal) (decimal.Decimal, error) {
	if rateSource.Sign() <= 0 || rateTarget.Sign() <= 0 {
		return decimal.Zero, ErrInvalidRate
	}
	return rateTarget.Div(rateSource), nil
}
