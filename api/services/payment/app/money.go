package app

import "github.com/shopspring/decimal"

// minorUnitExponent is 2 for every supported currency.
const minorUnitExponent = 2

// ToMinorUnits converts a major-unit price (29.99) to the provider's integer
// minor unit (2999), rounding half away from zero.
func ToMinorUnits(price decimal.Decimal) int64 {
	return price.Shift(minorUnitExponent).Round(0).IntPart()
}
