package alignment

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"quotepulse/pkg/contracts/domain"
)

const (
	feedDelimiter = ","
	minFeedFields = 5
	dateColumn    = 0
	closeColumn   = 4
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseStats describes what happened to each data row of a feed
type ParseStats struct {
	Rows          int `json:"rows"`
	Kept          int `json:"kept"`
	ShortRows     int `json:"short_rows"`
	BadDates      int `json:"bad_dates"`
	BadCloses     int `json:"bad_closes"`
	DuplicateDays int `json:"duplicate_days"`
}

// Dropped returns the number of data rows that did not become points
func (s ParseStats) Dropped() int {
	return s.ShortRows + s.BadDates + s.BadCloses
}

// ParseSeries parses a daily price feed (header line, then
// date,open,high,low,close,... rows) into an ascending series.
func ParseSeries(raw string) domain.PriceSeries {
	series, _ := ParseSeriesStats(raw)
	return series
}

// ParseSeriesStats is ParseSeries plus per-row accounting.
//
// Rows with fewer than five fields, a date that is not YYYY-MM-DD, or a close
// that is not a finite non-negative number are dropped. When a date appears
// more than once the row that comes last in the feed wins.
func ParseSeriesStats(raw string) (domain.PriceSeries, ParseStats) {
	var stats ParseStats

	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.PriceSeries{}, stats
	}

	lines := strings.Split(text, "\n")
	points := make(domain.PriceSeries, 0, len(lines))

	// line 0 is the header
	for _, line := range lines[1:] {
		stats.Rows++
		parts := strings.Split(strings.TrimSuffix(line, "\r"), feedDelimiter)
		if len(parts) < minFeedFields {
			stats.ShortRows++
			continue
		}

		date := parts[dateColumn]
		if !isoDateRe.MatchString(date) {
			stats.BadDates++
			continue
		}

		closePrice, ok := parseClose(parts[closeColumn])
		if !ok {
			stats.BadCloses++
			continue
		}

		points = append(points, domain.PricePoint{Date: date, Close: closePrice})
	}

	// Stable sort keeps feed order among equal dates so the last one wins below.
	slices.SortStableFunc(points, func(a, b domain.PricePoint) int {
		return strings.Compare(a.Date, b.Date)
	})

	merged := points[:0]
	for _, p := range points {
		if n := len(merged); n > 0 && merged[n-1].Date == p.Date {
			merged[n-1] = p
			stats.DuplicateDays++
			continue
		}
		merged = append(merged, p)
	}

	stats.Kept = len(merged)
	return merged, stats
}

func parseClose(field string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
