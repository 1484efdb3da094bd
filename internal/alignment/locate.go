package alignment

import (
	"sort"

	"quotepulse/pkg/contracts/domain"
)

// NotFound is returned by LocateOnOrAfter when the event cannot be aligned.
const NotFound = -1

// LocateOnOrAfter returns the index of the first point whose date is on or
// after target, using binary search over the ascending series.
//
// It returns NotFound when every date is before target, and also when the
// match is the first point: a return needs a previous trading day.
func LocateOnOrAfter(series domain.PriceSeries, target string) int {
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].Date >= target
	})
	if idx == len(series) || idx == 0 {
		return NotFound
	}
	return idx
}
