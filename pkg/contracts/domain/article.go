package domain

import "strings"

// Article is a news item returned by the article search provider.
// The publish date may arrive under any of several synonymous keys.
type Article struct {
	URL           string `json:"url,omitempty"`
	Title         string `json:"title,omitempty"`
	SeenDate      string `json:"seendate,omitempty"`
	SeenDateCamel string `json:"seenDate,omitempty"`
	DateTime      string `json:"datetime,omitempty"`
	Date          string `json:"date,omitempty"`
	Domain        string `json:"domain,omitempty"`
	Language      string `json:"language,omitempty"`
	SourceCountry string `json:"sourcecountry,omitempty"`
}

// BestDate returns the first non-blank raw date in priority order
// seendate, seenDate, datetime, date. It returns "" when none is set.
func (a Article) BestDate() string {
	for _, v := range []string{a.SeenDate, a.SeenDateCamel, a.DateTime, a.Date} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
