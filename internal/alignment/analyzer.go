package alignment

import (
	"errors"

	"quotepulse/pkg/contracts/domain"
)

const (
	// DefaultMinSeriesPoints is the smallest series that can be aligned reliably.
	DefaultMinSeriesPoints = 30
	// DefaultWindowRadius is the number of points kept on each side of the event.
	DefaultWindowRadius = 10
)

// Analyzer aligns the earliest article of a search with a daily price feed.
// The zero value is not usable; construct one with NewAnalyzer.
type Analyzer struct {
	minSeriesPoints int
	windowRadius    int
	resolve         DateResolver
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithMinSeriesPoints overrides the minimum usable series length
func WithMinSeriesPoints(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.minSeriesPoints = n
		}
	}
}

// WithWindowRadius overrides how many points surround the event in the result
func WithWindowRadius(n int) Option {
	return func(a *Analyzer) {
		if n >= 0 {
			a.windowRadius = n
		}
	}
}

// WithResolver sets how the event instant maps to a reference date
func WithResolver(r DateResolver) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.resolve = r
		}
	}
}

// NewAnalyzer creates an analyzer with the default thresholds
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		minSeriesPoints: DefaultMinSeriesPoints,
		windowRadius:    DefaultWindowRadius,
		resolve:         CalendarDate,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs a default Analyzer.
func Analyze(articles []domain.Article, rawFeed string) (*domain.AlignmentResult, error) {
	return NewAnalyzer().Analyze(articles, rawFeed)
}

// Analyze aligns articles[0] with the series parsed from rawFeed.
// Articles must already be ordered oldest first.
func (a *Analyzer) Analyze(articles []domain.Article, rawFeed string) (*domain.AlignmentResult, error) {
	if len(articles) == 0 {
		return nil, NewFailure(KindNoArticlesFound, "no matching articles found", nil).
			WithContext("articles", 0)
	}

	earliest := articles[0]
	instant, err := NormalizeDate(earliest.BestDate())
	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			f.WithContext("title", earliest.Title).WithContext("url", earliest.URL)
		}
		return nil, err
	}

	series, stats := ParseSeriesStats(rawFeed)
	if series.Len() < a.minSeriesPoints {
		return nil, NewFailure(KindInsufficientSeriesData, "price feed returned too little data", nil).
			WithContext("series_len", series.Len()).
			WithContext("min_series_len", a.minSeriesPoints).
			WithContext("parse_stats", stats)
	}

	eventDate, err := a.resolve(instant)
	if err != nil {
		return nil, NewFailure(KindUnparseableDate, "could not resolve reference date", err).
			WithContext("earliest_datetime", instant)
	}

	idx := LocateOnOrAfter(series, eventDate)
	if idx == NotFound {
		last, _ := series.Last()
		return nil, NewFailure(KindAlignmentFailed, "could not align event date to trading data", nil).
			WithContext("earliest_datetime", instant).
			WithContext("event_date", eventDate).
			WithContext("series_first_date", series[0].Date).
			WithContext("series_last_date", last.Date)
	}

	prev := series[idx-1]
	evt := series[idx]

	reaction := domain.MarketReaction{
		EventTradingDate:  evt.Date,
		PrevTradingDate:   prev.Date,
		PrevClose:         prev.Close,
		EventClose:        evt.Close,
		RetPrevToEventPct: FinitePctChange(prev.Close, evt.Close),
	}
	if idx+1 < len(series) {
		next := series[idx+1]
		nextClose := next.Close
		reaction.NextTradingDate = next.Date
		reaction.NextClose = &nextClose
		reaction.RetEventToNextPct = FinitePctChange(evt.Close, next.Close)
	}

	return &domain.AlignmentResult{
		Earliest: domain.EventMetadata{
			Datetime: instant,
			Title:    earliest.Title,
			URL:      earliest.URL,
		},
		Market: reaction,
		Series: series.Window(idx, a.windowRadius),
	}, nil
}
