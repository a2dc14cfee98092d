package convert

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	ten     = decimal.NewFromInt(10)
	hundred = decimal.NewFromInt(100)
)

func FourDecimals(number float64) float64 {
	return RoundFloat64(number, 4)
}

// RoundFloat64 rounds half away from zero on the shortest decimal form of
// number, so 1.005 becomes 1.01.
func RoundFloat64(number float64, decimals int) float64 {
	if math.IsNaN(number) || math.IsInf(number, 0) {
		return number
	}
	f, _ := decimal.NewFromFloat(number).Round(int32(decimals)).Float64()
	return f
}

// EURPerMWhToCents converts a wholesale price in EUR/MWh to ct/kWh.
func EURPerMWhToCents(price float64) float64 {
	f, _ := decimal.NewFromFloat(price).Div(ten).Round(4).Float64()
	return f
}

// MajorToMinor converts a price per kWh in a major currency unit (EUR, SEK)
// to its minor unit (cents, öre).
func MajorToMinor(price float64) float64 {
	f, _ := decimal.NewFromFloat(price).Mul(hundred).Round(4).Float64()
	return f
}

// Sum adds price components without binary float drift and rounds to 4 decimals.
func Sum(components ...float64) float64 {
	total := decimal.Zero
	for _, c := range components {
		total = total.Add(decimal.NewFromFloat(c))
	}
	f, _ := total.Round(4).Float64()
	return f
}
