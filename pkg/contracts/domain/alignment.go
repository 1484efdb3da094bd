package domain

// EventMetadata describes the earliest article found for a quote.
type EventMetadata struct {
	Datetime string `json:"datetime"` // canonical UTC instant
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// MarketReaction holds the closes and returns around the event trading day.
// Returns that cannot be computed (non-finite) are nil and omitted.
type MarketReaction struct {
	EventTradingDate  string   `json:"eventTradingDate"`
	PrevTradingDate   string   `json:"prevTradingDate"`
	PrevClose         float64  `json:"prevClose"`
	EventClose        float64  `json:"eventClose"`
	NextTradingDate   string   `json:"nextTradingDate,omitempty"`
	NextClose         *float64 `json:"nextClose,omitempty"`
	RetPrevToEventPct *float64 `json:"retPrevToEventPct,omitempty"`
	RetEventToNextPct *float64 `json:"retEventToNextPct,omitempty"`
}

// AlignmentResult is the outcome of aligning an article with a price series.
// It is built once per analysis and never mutated afterwards.
type AlignmentResult struct {
	Earliest EventMetadata  `json:"earliest"`
	Market   MarketReaction `json:"spy"`
	Series   []PricePoint   `json:"series"`
}
