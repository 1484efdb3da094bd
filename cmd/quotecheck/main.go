// Command quotecheck runs one quote analysis from the terminal and prints the
// report as JSON.
//
//	quotecheck -q "border wall"
//	quotecheck -articles artlist.json -feed spy.csv -session -export out/window.xlsx
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tidwall/gjson"

	"quotepulse/internal/alignment"
	"quotepulse/internal/config"
	"quotepulse/internal/exporter"
	"quotepulse/internal/gdelt"
	"quotepulse/internal/infrastructure"
	"quotepulse/internal/services"
	"quotepulse/internal/stooq"
	"quotepulse/pkg/contracts/domain"
)

type options struct {
	quote    string
	articles string
	feed     string
	export   string
	session  bool
	logLevel string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("quotecheck", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.quote, "q", "", "quote to analyze against GDELT and Stooq")
	fs.StringVar(&opts.articles, "articles", "", "offline: GDELT artlist JSON (or a JSON array of articles)")
	fs.StringVar(&opts.feed, "feed", "", "offline: Stooq daily CSV")
	fs.StringVar(&opts.export, "export", "", "write the price window to this .csv or .xlsx file")
	fs.BoolVar(&opts.session, "session", false, "resolve the event day against the 16:00 New York close")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "debug | info | warn | error")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := infrastructure.NewLogger(stderr, opts.logLevel)
	ctx = infrastructure.EnsureTraceID(ctx)

	offline := opts.articles != "" || opts.feed != ""
	switch {
	case offline && (opts.articles == "" || opts.feed == ""):
		fmt.Fprintln(stderr, "quotecheck: -articles and -feed must be used together")
		return 2
	case !offline && strings.TrimSpace(opts.quote) == "":
		fmt.Fprintln(stderr, "quotecheck: -q is required unless -articles and -feed are given")
		return 2
	}

	resolver := alignment.CalendarDate
	if opts.session {
		r, err := alignment.NewYorkClose()
		if err != nil {
			logger.Error("failed to build session resolver", slog.String("error", err.Error()))
			return 1
		}
		resolver = r
	}

	var (
		result interface{}
		window *domain.AlignmentResult
		err    error
	)
	if offline {
		window, err = analyzeOffline(opts, resolver)
		result = window
	} else {
		var report *services.AnalysisReport
		report, err = analyzeOnline(ctx, opts, resolver, logger)
		if report != nil {
			result, window = report, &report.AlignmentResult
		}
	}
	if err != nil {
		return reportFailure(stderr, err)
	}

	if opts.export != "" {
		if err := exporter.WriteFile(opts.export, *window); err != nil {
			logger.Error("export failed", slog.String("path", opts.export), slog.String("error", err.Error()))
			return 1
		}
		logger.InfoContext(ctx, "window exported", slog.String("path", opts.export))
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("failed to write report", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func analyzeOffline(opts options, resolver alignment.DateResolver) (*domain.AlignmentResult, error) {
	raw, err := os.ReadFile(opts.articles)
	if err != nil {
		return nil, fmt.Errorf("read articles: %w", err)
	}
	articles, err := parseArticles(raw)
	if err != nil {
		return nil, err
	}

	feed, err := os.ReadFile(opts.feed)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	return alignment.NewAnalyzer(alignment.WithResolver(resolver)).Analyze(articles, string(feed))
}

// parseArticles accepts a GDELT artlist body or a bare array of articles,
// kept in file order. The first entry is taken as the earliest.
// Dates are read as strings even when GDELT sends them as numbers.
func parseArticles(raw []byte) ([]domain.Article, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("articles file is not valid JSON")
	}

	list := gjson.ParseBytes(raw)
	if !list.IsArray() {
		list = list.Get("articles")
	}

	articles := make([]domain.Article, 0, len(list.Array()))
	for _, item := range list.Array() {
		articles = append(articles, domain.Article{
			URL:           item.Get("url").String(),
			Title:         item.Get("title").String(),
			SeenDate:      item.Get("seendate").String(),
			SeenDateCamel: item.Get("seenDate").String(),
			DateTime:      item.Get("datetime").String(),
			Date:          item.Get("date").String(),
			Domain:        item.Get("domain").String(),
			Language:      item.Get("language").String(),
			SourceCountry: item.Get("sourcecountry").String(),
		})
	}
	return articles, nil
}

func analyzeOnline(ctx context.Context, opts options, resolver alignment.DateResolver, logger *slog.Logger) (*services.AnalysisReport, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	gdeltOpts := []gdelt.ClientOption{
		gdelt.WithBaseURL(cfg.GDELT.BaseURL),
		gdelt.WithHTTPClient(&http.Client{Timeout: cfg.GDELT.Timeout}),
		gdelt.WithLogger(logger),
	}
	if cfg.GDELT.ProxyURL != "" {
		gdeltOpts = append(gdeltOpts, gdelt.WithProxy(cfg.GDELT.ProxyURL))
	}
	stooqClient := stooq.NewClient(
		stooq.WithBaseURL(cfg.Stooq.BaseURL),
		stooq.WithHTTPClient(&http.Client{Timeout: cfg.Stooq.Timeout}),
		stooq.WithLogger(logger),
	)

	analyzer := alignment.NewAnalyzer(
		alignment.WithMinSeriesPoints(cfg.Analysis.MinSeriesPoints),
		alignment.WithWindowRadius(cfg.Analysis.WindowRadius),
		alignment.WithResolver(resolver),
	)

	analysisOpts := services.AnalysisOptionsFrom(cfg)
	analysisOpts.CacheTTL = 0

	svc, err := services.NewAnalysisService(gdelt.NewClient(gdeltOpts...), stooqClient, analyzer, nil, analysisOpts, nil, logger)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	return svc.Analyze(ctx, opts.quote)
}

// reportFailure prints the failure kind and context and picks the exit code
func reportFailure(w io.Writer, err error) int {
	var failure *alignment.Failure
	if errors.As(err, &failure) {
		fmt.Fprintf(w, "quotecheck: %s: %s\n", failure.Kind, failure.Message)
		for k, v := range failure.Context {
			fmt.Fprintf(w, "  %s: %v\n", k, v)
		}
		return 3
	}

	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		fmt.Fprintf(w, "quotecheck: %s: %s\n", svcErr.Kind, svcErr.Message)
		if svcErr.Kind == services.KindInvalidInput {
			return 2
		}
		return 1
	}

	fmt.Fprintf(w, "quotecheck: %v\n", err)
	return 1
}
