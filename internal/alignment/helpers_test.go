package alignment

import (
	"fmt"
	"strings"
	"time"

	"quotepulse/pkg/contracts/domain"
)

const feedHeader = "Date,Open,High,Low,Close,Volume"

// weekdays returns n consecutive weekday dates starting at start (inclusive).
func weekdays(start string, n int) []string {
	t, err := time.Parse(time.DateOnly, start)
	if err != nil {
		panic(err)
	}
	out := make([]string, 0, n)
	for len(out) < n {
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, t.Format(time.DateOnly))
		}
		t = t.AddDate(0, 0, 1)
	}
	return out
}

func feedRow(date string, closePrice float64) string {
	return fmt.Sprintf("%s,%.2f,%.2f,%.2f,%.2f,1000000", date, closePrice, closePrice, closePrice, closePrice)
}

// buildFeed renders points as a feed with a header line.
func buildFeed(points ...domain.PricePoint) string {
	var b strings.Builder
	b.WriteString(feedHeader)
	for _, p := range points {
		b.WriteString("\n")
		b.WriteString(feedRow(p.Date, p.Close))
	}
	return b.String()
}

// padding returns n weekday points in late 2023, all before 2024-01-12.
func padding(n int, closePrice float64) []domain.PricePoint {
	dates := weekdays("2023-10-02", n)
	out := make([]domain.PricePoint, len(dates))
	for i, d := range dates {
		out[i] = domain.PricePoint{Date: d, Close: closePrice}
	}
	return out
}
