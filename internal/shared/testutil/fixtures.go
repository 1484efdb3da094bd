package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quotepulse/pkg/contracts/domain"
)

// DailyHeader is the header row of a Stooq daily CSV download.
const DailyHeader = "Date,Open,High,Low,Close,Volume"

// TradingDays returns n consecutive weekdays starting at start (YYYY-MM-DD),
// skipping start itself if it falls on a weekend.
func TradingDays(start string, n int) []string {
	day, err := time.Parse(time.DateOnly, start)
	if err != nil {
		panic(fmt.Sprintf("testutil: bad start date %q", start))
	}
	days := make([]string, 0, n)
	for len(days) < n {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, day.Format(time.DateOnly))
		}
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// DailySeries builds n points on consecutive weekdays with closes base, base+1, ...
func DailySeries(start string, n int, base float64) []domain.PricePoint {
	points := make([]domain.PricePoint, 0, n)
	for i, d := range TradingDays(start, n) {
		points = append(points, domain.PricePoint{Date: d, Close: base + float64(i)})
	}
	return points
}

// DailyCSV renders points as a Stooq daily CSV body.
func DailyCSV(points ...domain.PricePoint) string {
	var b strings.Builder
	b.WriteString(DailyHeader)
	b.WriteString("\n")
	for _, p := range points {
		fmt.Fprintf(&b, "%s,%g,%g,%g,%g,1000\n", p.Date, p.Close, p.Close, p.Close, p.Close)
	}
	return b.String()
}

// GDELTBody renders articles as a GDELT artlist JSON body.
func GDELTBody(articles ...domain.Article) string {
	type item struct {
		URL      string `json:"url"`
		Title    string `json:"title"`
		SeenDate string `json:"seendate,omitempty"`
		Domain   string `json:"domain,omitempty"`
	}
	items := make([]item, 0, len(articles))
	for _, a := range articles {
		items = append(items, item{URL: a.URL, Title: a.Title, SeenDate: a.SeenDate, Domain: a.Domain})
	}
	body, err := json.Marshal(map[string]interface{}{"articles": items})
	if err != nil {
		panic(err)
	}
	return string(body)
}
