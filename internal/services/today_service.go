package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/errgroup"

	"quotepulse/internal/config"
	"quotepulse/internal/gdelt"
	"quotepulse/internal/infrastructure"
	"quotepulse/internal/twelvedata"
	"quotepulse/pkg/contracts/domain"
)

const (
	todayCacheKey      = "today"
	headlineCandidates = 20
	headlineLimit      = 5
	maxHeadlineRunes   = 180
	gdeltPreviewRunes  = 120
	twelvePreviewRunes = 160

	missingKeyMessage = "missing Twelve Data API key: set QUOTEPULSE_TWELVEDATA_API_KEY (or TWELVE_API_KEY) and restart"
	snapshotNote      = "If spy is empty, check debug.twelvedata.tdMessage. If quotes is empty, check debug.gdelt.preview and status."
)

// IntradaySource fetches intraday bars.
type IntradaySource interface {
	HasAPIKey() bool
	TimeSeries(ctx context.Context, symbol, interval string, size int) (*twelvedata.TimeSeries, error)
}

// TodayOptions tunes TodayService.
type TodayOptions struct {
	HeadlineQuery   string
	HeadlineRecords int
	Symbol          string
	Interval        string
	OutputSize      int
	Location        *time.Location
	CacheTTL        time.Duration
}

// TodayOptionsFrom maps the twelvedata config section.
func TodayOptionsFrom(cfg config.TwelveDataConfig) (TodayOptions, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return TodayOptions{}, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}
	return TodayOptions{
		HeadlineQuery:   cfg.HeadlineQuery,
		HeadlineRecords: cfg.HeadlineRecords,
		Symbol:          cfg.Symbol,
		Interval:        cfg.Interval,
		OutputSize:      cfg.OutputSize,
		Location:        loc,
		CacheTTL:        cfg.CacheTTL,
	}, nil
}

// HeadlineDebug describes the headline search.
type HeadlineDebug struct {
	URL           string `json:"url"`
	Proxied       string `json:"proxied,omitempty"`
	Status        int    `json:"status"`
	ArticlesCount int    `json:"articlesCount"`
	Preview       string `json:"preview"`
	Error         string `json:"error,omitempty"`
}

// IntradayDebug describes the intraday download. URL never contains the key.
type IntradayDebug struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	HasValues   bool   `json:"hasValues"`
	ValuesCount int    `json:"valuesCount"`
	StatusField string `json:"tdStatusField,omitempty"`
	Message     string `json:"tdMessage,omitempty"`
	Preview     string `json:"preview"`
	Error       string `json:"error,omitempty"`
}

// SnapshotDebug groups upstream diagnostics.
type SnapshotDebug struct {
	HaveKey    bool           `json:"haveKey"`
	GDELT      *HeadlineDebug `json:"gdelt,omitempty"`
	TwelveData *IntradayDebug `json:"twelvedata,omitempty"`
	Note       string         `json:"note,omitempty"`
}

// Snapshot is the "what is happening today" view: recent headlines and the
// reference index's bars for the current exchange day.
type Snapshot struct {
	OK          bool                 `json:"ok"`
	Error       string               `json:"error,omitempty"`
	Quotes      []domain.Headline    `json:"quotes"`
	SPY         []domain.IntradayBar `json:"spy"`
	Debug       SnapshotDebug        `json:"debug"`
	GeneratedAt time.Time            `json:"generatedAt"`

	// HTTPStatus is the status the snapshot should be served with.
	HTTPStatus int `json:"-"`
}

// TodayService builds and caches snapshots.
type TodayService struct {
	articles ArticleSearcher
	intraday IntradaySource
	cache    *ristretto.Cache[string, *Snapshot]
	opts     TodayOptions
	now      func() time.Time
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger
}

// NewTodayService wires a snapshot service.
func NewTodayService(
	articles ArticleSearcher,
	intraday IntradaySource,
	opts TodayOptions,
	metrics *infrastructure.BusinessMetrics,
	logger *slog.Logger,
) (*TodayService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HeadlineRecords <= 0 {
		opts.HeadlineRecords = 50
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *Snapshot]{
		NumCounters: 100,
		MaxCost:     10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot cache: %w", err)
	}

	return &TodayService{
		articles: articles,
		intraday: intraday,
		cache:    cache,
		opts:     opts,
		now:      time.Now,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "today_service")),
	}, nil
}

// Close releases the snapshot cache.
func (s *TodayService) Close() {
	s.cache.Close()
}

// Snapshot returns the cached snapshot unless it expired or force is set.
// Upstream failures never fail the call; they surface in the debug block.
func (s *TodayService) Snapshot(ctx context.Context, force bool) *Snapshot {
	if !force {
		if cached, ok := s.cache.Get(todayCacheKey); ok {
			infrastructure.RecordCacheLookup(ctx, s.metrics, "today", true)
			return cached
		}
	}
	infrastructure.RecordCacheLookup(ctx, s.metrics, "today", false)

	snap := s.build(ctx)
	if s.opts.CacheTTL > 0 {
		s.cache.SetWithTTL(todayCacheKey, snap, 1, s.opts.CacheTTL)
		s.cache.Wait()
	}
	return snap
}

func (s *TodayService) build(ctx context.Context) *Snapshot {
	now := s.now()
	if !s.intraday.HasAPIKey() {
		s.logger.ErrorContext(ctx, "Twelve Data API key is not configured")
		return &Snapshot{
			OK:          false,
			Error:       missingKeyMessage,
			Quotes:      []domain.Headline{},
			SPY:         []domain.IntradayBar{},
			Debug:       SnapshotDebug{HaveKey: false},
			GeneratedAt: now,
			HTTPStatus:  500,
		}
	}

	snap := &Snapshot{
		OK:          true,
		Quotes:      []domain.Headline{},
		SPY:         []domain.IntradayBar{},
		Debug:       SnapshotDebug{HaveKey: true, Note: snapshotNote},
		GeneratedAt: now,
		HTTPStatus:  200,
	}

	var g errgroup.Group
	g.Go(func() error {
		snap.Quotes, snap.Debug.GDELT = s.headlines(ctx)
		return nil
	})
	g.Go(func() error {
		snap.SPY, snap.Debug.TwelveData = s.bars(ctx, now)
		return nil
	})
	g.Wait()

	s.logger.InfoContext(ctx, "Snapshot built",
		slog.Int("quotes", len(snap.Quotes)),
		slog.Int("bars", len(snap.SPY)))

	return snap
}

func (s *TodayService) headlines(ctx context.Context) ([]domain.Headline, *HeadlineDebug) {
	started := time.Now()
	res, err := s.articles.Search(ctx, gdelt.SearchParams{
		Query:      s.opts.HeadlineQuery,
		Sort:       gdelt.SortDateDesc,
		MaxRecords: s.opts.HeadlineRecords,
	})
	infrastructure.RecordUpstreamCall(ctx, s.metrics, "gdelt", statusOf(res), time.Since(started), err)

	debug := &HeadlineDebug{}
	if res != nil {
		debug.URL = res.URL
		debug.Proxied = res.Proxied
		debug.Status = res.Status
		debug.ArticlesCount = len(res.Articles)
		debug.Preview = truncateRunes(res.Preview, gdeltPreviewRunes)
	}
	if err != nil {
		debug.Error = err.Error()
		s.logger.WarnContext(ctx, "Headline search failed", slog.String("error", err.Error()))
		return []domain.Headline{}, debug
	}
	return ExtractHeadlines(res.Articles, headlineLimit), debug
}

func (s *TodayService) bars(ctx context.Context, now time.Time) ([]domain.IntradayBar, *IntradayDebug) {
	started := time.Now()
	ts, err := s.intraday.TimeSeries(ctx, s.opts.Symbol, s.opts.Interval, s.opts.OutputSize)
	status := 0
	if ts != nil {
		status = ts.Status
	}
	infrastructure.RecordUpstreamCall(ctx, s.metrics, "twelvedata", status, time.Since(started), err)

	debug := &IntradayDebug{}
	if ts != nil {
		debug.URL = ts.URL
		debug.Status = ts.Status
		debug.HasValues = ts.Values != nil
		debug.ValuesCount = len(ts.Values)
		debug.StatusField = ts.APIStatus
		debug.Message = ts.Message
		debug.Preview = truncateRunes(ts.Preview, twelvePreviewRunes)
	}
	if err != nil {
		if errors.Is(err, twelvedata.ErrMissingAPIKey) {
			debug.Error = missingKeyMessage
		} else {
			debug.Error = err.Error()
		}
		s.logger.WarnContext(ctx, "Intraday download failed", slog.String("error", err.Error()))
		return []domain.IntradayBar{}, debug
	}
	return FilterToday(ts.Values, now, s.opts.Location), debug
}

// ExtractHeadlines picks up to limit distinct titles from the first
// candidate articles. Titles are trimmed and cut to 180 runes; blank titles
// are skipped. A repeated title keeps its first position with the last copy's fields.
func ExtractHeadlines(articles []domain.Article, limit int) []domain.Headline {
	out := make([]domain.Headline, 0, limit)
	pos := make(map[string]int)
	for i, a := range articles {
		if i >= headlineCandidates {
			break
		}
		text := truncateRunes(strings.TrimSpace(a.Title), maxHeadlineRunes)
		if text == "" {
			continue
		}
		h := domain.Headline{
			Text:     text,
			Datetime: firstNonBlank(a.SeenDate, a.Date, a.DateTime),
			URL:      a.URL,
		}
		if j, dup := pos[text]; dup {
			out[j] = h
			continue
		}
		pos[text] = len(out)
		out = append(out, h)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FilterToday keeps bars stamped with now's calendar date in loc that carry
// a finite close. Order is preserved.
func FilterToday(values []twelvedata.Value, now time.Time, loc *time.Location) []domain.IntradayBar {
	day := now.In(loc).Format(time.DateOnly)
	bars := make([]domain.IntradayBar, 0, len(values))
	for _, v := range values {
		if !strings.HasPrefix(v.Datetime, day) {
			continue
		}
		closePrice, err := strconv.ParseFloat(strings.TrimSpace(v.Close), 64)
		if err != nil || math.IsNaN(closePrice) || math.IsInf(closePrice, 0) {
			continue
		}
		bars = append(bars, domain.IntradayBar{Time: v.Datetime, Close: closePrice})
	}
	return bars
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
