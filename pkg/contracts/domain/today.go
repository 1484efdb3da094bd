package domain

// Headline is a recent article title used as a quote candidate.
type Headline struct {
	Text     string `json:"text"`
	Datetime string `json:"datetime,omitempty"`
	URL      string `json:"url,omitempty"`
}

// IntradayBar is one intraday close of the reference index.
type IntradayBar struct {
	Time  string  `json:"time"`
	Close float64 `json:"close"`
}
