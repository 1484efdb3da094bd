// Package alignment implements the event-alignment engine: it normalizes the
// publish date of the earliest article, parses a daily price feed, maps the
// event onto the first trading day on or after it and computes the returns
// around that day.
//
// Everything in this package is pure. Functions allocate fresh values per
// call, hold no package-level mutable state and may be called concurrently.
//
// # Failures
//
// Analyze returns either a fully populated *domain.AlignmentResult or a
// *Failure carrying one of the kinds below:
//
//	MissingDate             earliest article has no usable date
//	UnparseableDate         earliest article date cannot be parsed
//	NoArticlesFound         the article list is empty
//	InsufficientSeriesData  fewer than MinSeriesPoints usable closes
//	AlignmentFailed         no trading day on/after the event with a prior day
//
// Malformed feed rows are dropped silently and never produce a failure.
package alignment
