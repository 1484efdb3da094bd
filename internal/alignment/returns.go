package alignment

import "math"

// PctChange is the percentage change from a to b: (b - a) / a * 100.
// A zero base yields ±Inf or NaN.
func PctChange(a, b float64) float64 {
	return (b - a) / a * 100
}

// FinitePctChange returns PctChange(a, b), or nil when the result is not finite.
func FinitePctChange(a, b float64) *float64 {
	v := PctChange(a, b)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
