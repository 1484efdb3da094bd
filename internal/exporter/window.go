package exporter

import (
	"quotepulse/pkg/contracts/domain"
)

// WindowHeaders are the column names of the window table
var WindowHeaders = []string{"date", "close", "role", "pct_from_event"}

// Row roles relative to the event
const (
	RolePrev  = "prev"
	RoleEvent = "event"
	RoleNext  = "next"
)

// WindowRow is one trading day of the exported window
type WindowRow struct {
	Date         string
	Close        float64
	Role         string
	PctFromEvent *float64
}

// WindowRows annotates every point of the result series with its role and
// its percent change from the event close.
func WindowRows(result domain.AlignmentResult) []WindowRow {
	m := result.Market
	rows := make([]WindowRow, 0, len(result.Series))
	for _, p := range result.Series {
		row := WindowRow{Date: p.Date, Close: p.Close}
		switch p.Date {
		case m.PrevTradingDate:
			row.Role = RolePrev
		case m.EventTradingDate:
			row.Role = RoleEvent
		case m.NextTradingDate:
			if m.NextTradingDate != "" {
				row.Role = RoleNext
			}
		}
		if m.EventClose > 0 {
			pct := (p.Close/m.EventClose - 1) * 100
			row.PctFromEvent = &pct
		}
		rows = append(rows, row)
	}
	return rows
}

// records renders rows as strings for the CSV writer
func records(rows []WindowRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		pct := ""
		if r.PctFromEvent != nil {
			pct = formatPct(*r.PctFromEvent)
		}
		out = append(out, []string{r.Date, formatFloat(r.Close), r.Role, pct})
	}
	return out
}
