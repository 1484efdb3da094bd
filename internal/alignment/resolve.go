package alignment

import (
	"fmt"
	"time"
	_ "time/tzdata" // America/New_York on hosts without a zoneinfo database
)

// DateResolver maps a canonical event instant to the calendar date used to
// look up the event trading day.
type DateResolver func(instant string) (string, error)

// CalendarDate uses the UTC calendar date of the instant.
func CalendarDate(instant string) (string, error) {
	if len(instant) < 10 {
		return "", fmt.Errorf("instant %q too short for a calendar date", instant)
	}
	return instant[:10], nil
}

// SessionDate resolves the instant in the exchange's location and moves
// anything at or after the session close to the following day, so news
// released after the bell is measured against the next session.
func SessionDate(loc *time.Location, closeHour, closeMinute int) DateResolver {
	return func(instant string) (string, error) {
		t, err := ParseCanonical(instant)
		if err != nil {
			return "", fmt.Errorf("parse instant: %w", err)
		}
		local := t.In(loc)
		closeAt := time.Date(local.Year(), local.Month(), local.Day(), closeHour, closeMinute, 0, 0, loc)
		if !local.Before(closeAt) {
			local = local.AddDate(0, 0, 1)
		}
		return local.Format(time.DateOnly), nil
	}
}

// NewYorkClose resolves against the US equity session close (16:00 New York).
func NewYorkClose() (DateResolver, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load New York location: %w", err)
	}
	return SessionDate(loc, 16, 0), nil
}
