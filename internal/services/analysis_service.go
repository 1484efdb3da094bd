package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"quotepulse/internal/alignment"
	"quotepulse/internal/config"
	"quotepulse/internal/gdelt"
	"quotepulse/internal/infrastructure"
	"quotepulse/internal/stooq"
	"quotepulse/pkg/contracts/domain"
)

// ArticleSearcher finds news articles for a query.
type ArticleSearcher interface {
	Search(ctx context.Context, p gdelt.SearchParams) (*gdelt.SearchResult, error)
}

// DailyFeedSource downloads a daily CSV price history.
type DailyFeedSource interface {
	Daily(ctx context.Context, symbol string) (*stooq.DailyFeed, error)
}

// AnalysisOptions tunes AnalysisService.
type AnalysisOptions struct {
	QuerySuffix     string
	MaxRecords      int
	ProxyCache      bool
	MaxQuoteRunes   int
	Symbol          string
	CacheTTL        time.Duration // zero disables the response cache
	CacheMaxEntries int64
}

// AnalysisOptionsFrom maps the gdelt, stooq and analysis config sections.
func AnalysisOptionsFrom(cfg *config.Config) AnalysisOptions {
	return AnalysisOptions{
		QuerySuffix:     cfg.GDELT.QuerySuffix,
		MaxRecords:      cfg.GDELT.MaxRecords,
		ProxyCache:      cfg.GDELT.ProxyCache,
		MaxQuoteRunes:   cfg.Analysis.MaxQuoteRunes,
		Symbol:          cfg.Stooq.Symbol,
		CacheTTL:        cfg.Analysis.CacheTTL,
		CacheMaxEntries: cfg.Analysis.CacheMaxEntries,
	}
}

// AnalysisDebug carries upstream diagnostics alongside a report.
type AnalysisDebug struct {
	GDELTStatus int    `json:"gdeltStatus"`
	StooqStatus int    `json:"stooqStatus"`
	GDELTURL    string `json:"gdeltUrl,omitempty"`
	StooqURL    string `json:"stooqUrl,omitempty"`
	Articles    int    `json:"articles"`
}

// AnalysisReport is the response of a successful quote analysis.
type AnalysisReport struct {
	OK         bool   `json:"ok"`
	Input      string `json:"input"`
	Normalized string `json:"normalized"`
	Query      string `json:"query"`
	domain.AlignmentResult
	Cached bool          `json:"cached,omitempty"`
	Debug  AnalysisDebug `json:"debug"`
}

// AnalysisService answers "how did the market react when this quote first
// appeared in the news?".
type AnalysisService struct {
	articles ArticleSearcher
	feeds    DailyFeedSource
	analyzer *alignment.Analyzer
	throttle *gdelt.Throttle
	cache    *ristretto.Cache[string, *AnalysisReport]
	group    singleflight.Group
	opts     AnalysisOptions
	metrics  *infrastructure.BusinessMetrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewAnalysisService wires an analysis service. A nil throttle disables
// throttling; nil metrics disable recording.
func NewAnalysisService(
	articles ArticleSearcher,
	feeds DailyFeedSource,
	analyzer *alignment.Analyzer,
	throttle *gdelt.Throttle,
	opts AnalysisOptions,
	metrics *infrastructure.BusinessMetrics,
	logger *slog.Logger,
) (*AnalysisService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if analyzer == nil {
		analyzer = alignment.NewAnalyzer()
	}
	if throttle == nil {
		throttle = gdelt.NewThrottle(0)
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = 20
	}
	if opts.Symbol == "" {
		opts.Symbol = stooq.DefaultSymbol
	}
	if opts.CacheMaxEntries <= 0 {
		opts.CacheMaxEntries = 1000
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *AnalysisReport]{
		NumCounters: opts.CacheMaxEntries * 10,
		MaxCost:     opts.CacheMaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis cache: %w", err)
	}

	return &AnalysisService{
		articles: articles,
		feeds:    feeds,
		analyzer: analyzer,
		throttle: throttle,
		cache:    cache,
		opts:     opts,
		metrics:  metrics,
		tracer:   otel.Tracer(infrastructure.MeterName),
		logger:   logger.With(slog.String("component", "analysis_service")),
	}, nil
}

// Close releases the response cache.
func (s *AnalysisService) Close() {
	s.cache.Close()
}

// Analyze runs the full pipeline for one quote. Identical concurrent
// queries share one upstream round trip; successful reports are cached.
func (s *AnalysisService) Analyze(ctx context.Context, quote string) (*AnalysisReport, error) {
	start := time.Now()
	input := strings.TrimSpace(quote)
	normalized := NormalizeQuote(input, s.opts.MaxQuoteRunes)
	if normalized == "" {
		return nil, &ServiceError{Kind: KindInvalidInput, Message: "missing quote"}
	}
	query := BuildQuery(normalized, s.opts.QuerySuffix)

	ctx, span := s.tracer.Start(ctx, "AnalysisService.Analyze",
		trace.WithAttributes(attribute.String("analysis.query", query)))
	defer span.End()

	if cached, ok := s.cache.Get(query); ok {
		infrastructure.RecordCacheLookup(ctx, s.metrics, "analysis", true)
		infrastructure.RecordAnalysis(ctx, s.metrics, "cached", time.Since(start))
		s.logger.DebugContext(ctx, "Analysis served from cache", slog.String("query", query))
		return s.personalize(cached, input, true), nil
	}
	infrastructure.RecordCacheLookup(ctx, s.metrics, "analysis", false)

	// Followers share the leader's result, so the leader must not be
	// cancelled by its own caller going away.
	v, err, shared := s.group.Do(query, func() (interface{}, error) {
		return s.run(context.WithoutCancel(ctx), normalized, query)
	})
	if err != nil {
		outcome := outcomeOf(err)
		infrastructure.RecordAnalysis(ctx, s.metrics, outcome, time.Since(start))
		infrastructure.RecordError(ctx, err)
		s.logger.WarnContext(ctx, "Analysis failed",
			slog.String("query", query),
			slog.String("kind", outcome),
			slog.Bool("shared", shared),
			slog.String("error", err.Error()))
		return nil, err
	}

	report := v.(*AnalysisReport)
	infrastructure.RecordAnalysis(ctx, s.metrics, "ok", time.Since(start))
	s.logger.InfoContext(ctx, "Analysis completed",
		slog.String("query", query),
		slog.String("event_date", report.Market.EventTradingDate),
		slog.Bool("shared", shared),
		slog.Duration("duration", time.Since(start)))

	return s.personalize(report, input, false), nil
}

// personalize copies a shared report for one caller.
func (s *AnalysisService) personalize(shared *AnalysisReport, input string, cached bool) *AnalysisReport {
	report := *shared
	report.Input = input
	report.Cached = cached
	return &report
}

func (s *AnalysisService) run(ctx context.Context, normalized, query string) (*AnalysisReport, error) {
	if wait, ok := s.throttle.Acquire(); !ok {
		infrastructure.RecordThrottleRejection(ctx, s.metrics, wait)
		secs := int(math.Ceil(wait.Seconds()))
		return nil, (&ServiceError{
			Kind:       KindRateLimited,
			Message:    fmt.Sprintf("rate limited to protect GDELT, wait %ds and try again", secs),
			RetryAfter: wait,
		}).withDebug("waitMs", wait.Milliseconds())
	}

	var (
		search  *gdelt.SearchResult
		feed    *stooq.DailyFeed
		feedErr error
		debug   AnalysisDebug
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		started := time.Now()
		res, err := s.articles.Search(gctx, gdelt.SearchParams{
			Query:      query,
			Sort:       gdelt.SortDateAsc,
			MaxRecords: s.opts.MaxRecords,
			ProxyCache: s.opts.ProxyCache,
		})
		infrastructure.RecordUpstreamCall(gctx, s.metrics, "gdelt", statusOf(res), time.Since(started), err)
		search = res
		if err != nil {
			return searchError(err)
		}
		return nil
	})

	// A feed failure must not cancel the search: the absence of articles
	// is reported ahead of a broken price feed.
	g.Go(func() error {
		started := time.Now()
		res, err := s.feeds.Daily(gctx, s.opts.Symbol)
		infrastructure.RecordUpstreamCall(gctx, s.metrics, "stooq", feedStatusOf(res), time.Since(started), err)
		feed = res
		if err != nil {
			feedErr = feedError(err)
		}
		return nil
	})

	err := g.Wait()
	if search != nil {
		debug.GDELTStatus = search.Status
		debug.GDELTURL = search.URL
		debug.Articles = len(search.Articles)
	}
	if feed != nil {
		debug.StooqStatus = feed.Status
		debug.StooqURL = feed.URL
	}
	if err != nil {
		return nil, attachDebug(err, debug)
	}

	infrastructure.AddSpanEvent(ctx, "analysis.fetched", map[string]interface{}{
		"articles":     debug.Articles,
		"gdelt_status": debug.GDELTStatus,
		"stooq_status": debug.StooqStatus,
	})

	if len(search.Articles) > 0 && feedErr != nil {
		return nil, attachDebug(feedErr, debug)
	}

	raw := ""
	if feed != nil {
		raw = feed.Body
	}
	result, err := s.analyzer.Analyze(search.Articles, raw)
	if err != nil {
		return nil, attachDebug(err, debug)
	}

	report := &AnalysisReport{
		OK:              true,
		Normalized:      normalized,
		Query:           query,
		AlignmentResult: *result,
		Debug:           debug,
	}
	if s.opts.CacheTTL > 0 {
		s.cache.SetWithTTL(query, report, 1, s.opts.CacheTTL)
		s.cache.Wait()
	}
	return report, nil
}

func searchError(err error) error {
	var rl *gdelt.RateLimitError
	var inv *gdelt.InvalidResponseError
	switch {
	case errors.As(err, &rl):
		return (&ServiceError{
			Kind:       KindRateLimited,
			Message:    "GDELT rate limited this request, try again in about 5-10 seconds",
			RetryAfter: rl.RetryAfter,
			Cause:      err,
		}).withDebug("preview", rl.Preview)
	case errors.As(err, &inv):
		return (&ServiceError{
			Kind:    KindUpstreamInvalid,
			Message: fmt.Sprintf("GDELT returned non-JSON (status %d)", inv.Status),
			Cause:   err,
		}).withDebug("preview", inv.Preview).withDebug("requestUrl", inv.URL)
	default:
		return &ServiceError{Kind: KindUpstreamUnavailable, Message: "GDELT request failed", Cause: err}
	}
}

func feedError(err error) error {
	var notCSV *stooq.NotCSVError
	if errors.As(err, &notCSV) {
		return (&ServiceError{
			Kind:    KindUpstreamInvalid,
			Message: "Stooq returned HTML instead of CSV",
			Cause:   err,
		}).withDebug("preview", notCSV.Preview)
	}
	return &ServiceError{Kind: KindUpstreamUnavailable, Message: "Stooq request failed", Cause: err}
}

// attachDebug adds upstream statuses to whichever error type carries context.
func attachDebug(err error, debug AnalysisDebug) error {
	var se *ServiceError
	if errors.As(err, &se) {
		se.withDebug("gdeltStatus", debug.GDELTStatus).withDebug("stooqStatus", debug.StooqStatus)
		return err
	}
	var f *alignment.Failure
	if errors.As(err, &f) {
		f.WithContext("gdeltStatus", debug.GDELTStatus).WithContext("stooqStatus", debug.StooqStatus)
	}
	return err
}

func outcomeOf(err error) string {
	if kind := ServiceKindOf(err); kind != "" {
		return string(kind)
	}
	if kind := alignment.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

func statusOf(res *gdelt.SearchResult) int {
	if res == nil {
		return 0
	}
	return res.Status
}

func feedStatusOf(res *stooq.DailyFeed) int {
	if res == nil {
		return 0
	}
	return res.Status
}
