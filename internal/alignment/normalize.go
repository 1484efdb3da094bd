package alignment

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// CanonicalLayout renders a CanonicalInstant. The first 10 characters are the
// calendar date, and values compare correctly as strings.
const CanonicalLayout = "2006-01-02T15:04:05Z"

var compactTimestampRe = regexp.MustCompile(`^\d{14}$`)

// knownLayouts are tried before falling back to the permissive parser.
// Zone-less layouts are interpreted as UTC.
var knownLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"20060102T150405Z", // GDELT seendate
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// NormalizeDate converts a raw article date into a canonical UTC instant.
//
// A compact 14 digit value (YYYYMMDDhhmmss) is split positionally without
// any calendar validation. Anything else goes through general date parsing.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", NewFailure(KindMissingDate, "earliest article has no publish date", nil).
			WithContext("raw_date", raw)
	}

	if compactTimestampRe.MatchString(s) {
		return s[0:4] + "-" + s[4:6] + "-" + s[6:8] +
			"T" + s[8:10] + ":" + s[10:12] + ":" + s[12:14] + "Z", nil
	}

	t, err := parseGeneral(s)
	if err != nil {
		return "", NewFailure(KindUnparseableDate, "could not parse earliest publish datetime", err).
			WithContext("raw_date", raw)
	}
	if y := t.UTC().Year(); y < 1 || y > 9999 {
		return "", NewFailure(KindUnparseableDate, "publish datetime out of range", nil).
			WithContext("raw_date", raw).
			WithContext("year", y)
	}
	return t.UTC().Format(CanonicalLayout), nil
}

// ParseCanonical parses a value produced by NormalizeDate.
func ParseCanonical(instant string) (time.Time, error) {
	return time.Parse(CanonicalLayout, instant)
}

func parseGeneral(s string) (time.Time, error) {
	for _, layout := range knownLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	// dateparse fills a missing year with 0 or reads a clock as a date
	layout, err := dateparse.ParseFormat(s)
	if err != nil {
		return time.Time{}, err
	}
	if !strings.Contains(layout, "06") {
		return time.Time{}, fmt.Errorf("no year in %q (layout %q)", s, layout)
	}
	return dateparse.ParseIn(s, time.UTC)
}
