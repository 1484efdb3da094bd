package alignment

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quotepulse/pkg/contracts/domain"
)

func TestLocateOnOrAfter(t *testing.T) {
	series := domain.PriceSeries{
		{Date: "2024-01-02"},
		{Date: "2024-01-03"},
		{Date: "2024-01-05"},
	}

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{name: "gap rolls forward", target: "2024-01-04", want: 2},
		{name: "exact match", target: "2024-01-03", want: 1},
		{name: "last point", target: "2024-01-05", want: 2},
		{name: "match at first point has no previous day", target: "2024-01-02", want: NotFound},
		{name: "before series start", target: "2023-12-25", want: NotFound},
		{name: "after series end", target: "2024-01-06", want: NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocateOnOrAfter(series, tt.target))
		})
	}
}

func TestLocateOnOrAfter_EmptySeries(t *testing.T) {
	assert.Equal(t, NotFound, LocateOnOrAfter(nil, "2024-01-01"))
	assert.Equal(t, NotFound, LocateOnOrAfter(domain.PriceSeries{}, "2024-01-01"))
}

func TestLocateOnOrAfter_LargeSeriesMatchesLinearScan(t *testing.T) {
	dates := weekdays("2000-01-03", 6000)
	series := make(domain.PriceSeries, len(dates))
	for i, d := range dates {
		series[i] = domain.PricePoint{Date: d, Close: float64(i)}
	}

	linear := func(target string) int {
		for i, p := range series {
			if p.Date >= target {
				if i == 0 {
					return NotFound
				}
				return i
			}
		}
		return NotFound
	}

	rng := rand.New(rand.NewSource(7))
	base := time.Date(1999, 12, 1, 0, 0, 0, 0, time.UTC)
	targets := []string{dates[0], dates[1], dates[len(dates)-1], "2099-01-01"}
	for i := 0; i < 2000; i++ {
		// includes weekends, which roll forward to the next weekday
		targets = append(targets, base.AddDate(0, 0, rng.Intn(8800)).Format(time.DateOnly))
	}

	for _, target := range targets {
		assert.Equal(t, linear(target), LocateOnOrAfter(series, target), target)
	}
}

func BenchmarkLocateOnOrAfter(b *testing.B) {
	dates := weekdays("1990-01-01", 10000)
	series := make(domain.PriceSeries, len(dates))
	for i, d := range dates {
		series[i] = domain.PricePoint{Date: d}
	}
	target := dates[len(dates)/3]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		LocateOnOrAfter(series, target)
	}
}
