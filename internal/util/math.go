// Package util provides common numeric helpers for scoring calculations.
package util

import "math"

// Clamp limits x to the inclusive range [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Normalize maps x from [lo, hi] onto [0, 1], clamping out-of-range inputs.
// Returns 0 when the range is degenerate.
func Normalize(x, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return Clamp((x-lo)/(hi-lo), 0, 1)
}

// RoundCents rounds a dollar amount to the nearest cent.
// Ties round away from zero to match broker statements.
func RoundCents(x float64) float64 {
	return math.Round(x*100) / 100
}

// SafeDiv returns a/b, or 0 when b is zero or not finite.
func SafeDiv(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) || math.IsInf(b, 0) {
		return 0
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
