package helper

import (
	"github.com/shopspring/decimal"
)

// MinorUnitsPerMajor is the subunit factor for every supported currency (paise, cents).
const MinorUnitsPerMajor = 100

// ToMinorUnits converts a major-unit amount to integer subunits, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(MinorUnitsPerMajor)).Round(0).IntPart()
}

// FormatMinorUnits renders subunits as a fixed two-decimal string, e.g. 4550 -> "45.50".
func FormatMinorUnits(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
