// Package money converts stored minor-unit amounts to the major units shown in
// reports. All conversions floor, so every report agrees on the same figure.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Major returns floor(minor / 100).
func Major(minor int64) int64 {
	return decimal.NewFromInt(minor).Div(hundred).Floor().IntPart()
}

// Percent returns floor(amount * pct / 100).
func Percent(amount, pct int64) int64 {
	return decimal.NewFromInt(amount).Mul(decimal.NewFromInt(pct)).Div(hundred).Floor().IntPart()
}

const (
	CommissionPercent = 2
	RestaurantPercent = 100 - CommissionPercent
)

// Commission is the platform fee in major units, taken from card payments only.
func Commission(cardSumMinor int64) int64 {
	return Percent(Major(cardSumMinor), CommissionPercent)
}

// Payable is what the platform owes the restaurant in major units: the courier
// share of delivery plus card volume net of commission.
func Payable(courierShareMinor, cardSumMinor int64) int64 {
	return Major(courierShareMinor) + Percent(Major(cardSumMinor), RestaurantPercent)
}
