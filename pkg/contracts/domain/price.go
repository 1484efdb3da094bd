package domain

// PricePoint is a single daily close.
type PricePoint struct {
	Date  string  `json:"date"`  // YYYY-MM-DD
	Close float64 `json:"close"`
}

// PriceSeries is ordered ascending by Date with unique dates.
type PriceSeries []PricePoint

// Len returns the number of points in the series
func (s PriceSeries) Len() int {
	return len(s)
}

// Window returns a copy of the points from idx-radius through idx+radius,
// clipped to the bounds of the series. An out of range idx yields nil.
func (s PriceSeries) Window(idx, radius int) []PricePoint {
	if idx < 0 || idx >= len(s) || radius < 0 {
		return nil
	}
	start := max(0, idx-radius)
	end := min(len(s), idx+radius+1)

	out := make([]PricePoint, end-start)
	copy(out, s[start:end])
	return out
}

// Last returns the most recent point and false when the series is empty
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}
