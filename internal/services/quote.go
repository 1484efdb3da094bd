package services

import (
	"strings"
)

var quoteReplacer = strings.NewReplacer(
	"\u201c", `"`, "\u201d", `"`,
	"\u2018", "'", "\u2019", "'",
)

// NormalizeQuote straightens curly quotes, collapses whitespace runs to a
// single space and truncates to maxRunes runes.
func NormalizeQuote(input string, maxRunes int) string {
	s := quoteReplacer.Replace(input)
	s = strings.Join(strings.Fields(s), " ")
	if maxRunes > 0 {
		if r := []rune(s); len(r) > maxRunes {
			s = strings.TrimSpace(string(r[:maxRunes]))
		}
	}
	return s
}

// BuildQuery turns a normalized quote into a GDELT phrase query. Embedded
// double quotes are backslash-escaped; a blank suffix is omitted.
func BuildQuery(normalized, suffix string) string {
	safe := strings.ReplaceAll(normalized, `"`, `\"`)
	query := `"` + safe + `"`
	if suffix = strings.TrimSpace(suffix); suffix != "" {
		query += " " + suffix
	}
	return query
}
