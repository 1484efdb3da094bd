package exporter

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Formats lists the supported formats
var Formats = []string{string(FormatCSV), string(FormatXLSX)}

// ParseFormat accepts a format name case-insensitively
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// FormatFromPath picks the format from a file extension
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ContentType returns the MIME type for HTTP downloads
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename builds a download name from the query and the event date
func Filename(quote, eventDate string, f Format) string {
	slug := slugify(quote)
	if slug == "" {
		slug = "quote"
	}
	if eventDate != "" {
		return fmt.Sprintf("quotepulse-%s-%s.%s", slug, eventDate, f)
	}
	return fmt.Sprintf("quotepulse-%s.%s", slug, f)
}

const maxSlugLen = 40

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if b.Len() >= maxSlugLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// formatFloat formats a close with exactly 2 decimal places
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// formatPct formats a percent change with 4 decimal places
func formatPct(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
