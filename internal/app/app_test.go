package app

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotepulse/internal/config"
	"quotepulse/internal/shared/testutil"
	"quotepulse/pkg/contracts/domain"
)

const gdeltBody = `{"articles":[
 {"url":"https://news.example/1","title":"Border wall remarks","seendate":"20240113T150000Z"},
 {"url":"https://news.example/2","title":"Later coverage","seendate":"20240120T090000Z"}
]}`

type upstreams struct {
	gdelt      *httptest.Server
	stooq      *httptest.Server
	twelve     *httptest.Server
	gdeltCalls atomic.Int32
}

func newUpstreams(t *testing.T, articles string) *upstreams {
	t.Helper()
	u := &upstreams{}

	u.gdelt = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.gdeltCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, articles)
	}))
	t.Cleanup(u.gdelt.Close)

	points := testutil.DailySeries("2023-11-01", 40, 90)
	points = append(points,
		domain.PricePoint{Date: "2024-01-12", Close: 100},
		domain.PricePoint{Date: "2024-01-16", Close: 105},
		domain.PricePoint{Date: "2024-01-17", Close: 103},
	)
	feed := testutil.DailyCSV(points...)
	u.stooq = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, feed)
	}))
	t.Cleanup(u.stooq.Close)

	u.twelve = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok","values":[{"datetime":"2024-01-16 10:30:00","close":"470.10"}]}`)
	}))
	t.Cleanup(u.twelve.Close)

	return u
}

func testConfig(u *upstreams) *config.Config {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Logging.Level = "error"
	cfg.Telemetry.TraceExporter = "none"
	cfg.GDELT.BaseURL = u.gdelt.URL
	cfg.GDELT.MinInterval = 0
	cfg.Stooq.BaseURL = u.stooq.URL
	cfg.TwelveData.BaseURL = u.twelve.URL
	cfg.TwelveData.APIKey = ""
	cfg.Security.RateLimit.Enabled = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Services.Analysis.Close()
		a.Services.Today.Close()
		_ = a.OTelProviders.Shutdown(context.Background())
	})
	return a
}

func serve(a *Application, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestNew_WiresApplication(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	a := newTestApp(t, testConfig(u))

	assert.NotNil(t, a.Router)
	assert.NotNil(t, a.Services.Analysis)
	assert.NotNil(t, a.Services.Today)
	assert.NotNil(t, a.Services.Health)
	assert.NotNil(t, a.Metrics)
	assert.NotNil(t, a.RuntimeCollector)
	assert.Equal(t, ":0", a.Server.Addr)
	assert.Equal(t, a.Config.Server.MaxHeaderBytes, a.Server.MaxHeaderBytes)
}

func TestNew_SessionResolver(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	cfg := testConfig(u)
	cfg.Analysis.DateResolver = config.DateResolverSession

	a := newTestApp(t, cfg)
	assert.NotNil(t, a.Services.Analysis)
}

func TestDateResolver(t *testing.T) {
	resolver, err := dateResolver(config.DateResolverCalendar)
	require.NoError(t, err)
	date, err := resolver("2024-01-12T22:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-12", date)

	resolver, err = dateResolver(config.DateResolverSession)
	require.NoError(t, err)
	date, err = resolver("2024-01-12T22:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-13", date, "after the New York close")

	_, err = dateResolver("lunar")
	assert.Error(t, err)

	resolver, err = dateResolver("")
	require.NoError(t, err)
	_, err = resolver("short")
	assert.Error(t, err)
}

func TestRouter_Analyze(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	a := newTestApp(t, testConfig(u))

	rec := serve(a, http.MethodPost, "/api/analyze", `{"quote":"border wall"}`,
		map[string]string{"Content-Type": "application/json"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, true, report["ok"])
	earliest := report["earliest"].(map[string]interface{})
	assert.Equal(t, "Border wall remarks", earliest["title"])
	assert.NotEmpty(t, report["series"])
}

func TestRouter_AnalyzePageAndExport(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	a := newTestApp(t, testConfig(u))

	page := serve(a, http.MethodGet, "/api/analyze", "", nil)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Equal(t, "text/html; charset=utf-8", page.Header().Get("Content-Type"))
	assert.Contains(t, page.Body.String(), "&#34;input&#34;: &#34;border wall&#34;")

	export := serve(a, http.MethodGet, "/api/analyze/export?format=csv", "", nil)
	require.Equal(t, http.StatusOK, export.Code)
	assert.Contains(t, export.Header().Get("Content-Disposition"), "attachment; filename=\"quotepulse-border-wall-")
	assert.Contains(t, export.Body.String(), "date,close,role,pct_from_event")
}

func TestRouter_AnalyzeNoArticles(t *testing.T) {
	u := newUpstreams(t, `{"articles":[]}`)
	a := newTestApp(t, testConfig(u))

	rec := serve(a, http.MethodPost, "/api/analyze", `{"quote":"nobody said this"}`,
		map[string]string{"Content-Type": "application/json"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "NoArticlesFound", problem["kind"])
	assert.NotEmpty(t, problem["trace_id"])
}

func TestRouter_RateLimitsAnalysisOnly(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	cfg := testConfig(u)
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.01, Burst: 1}
	a := newTestApp(t, cfg)

	headers := map[string]string{"Content-Type": "application/json"}
	first := serve(a, http.MethodPost, "/api/analyze", `{}`, headers)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := serve(a, http.MethodPost, "/api/analyze", `{}`, headers)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/api/health", "", nil).Code)
	}
	assert.Equal(t, int32(0), u.gdeltCalls.Load())
}

func TestRouter_TodayWithoutKey(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	a := newTestApp(t, testConfig(u))

	rec := serve(a, http.MethodGet, "/api/today", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var snap map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, false, snap["ok"])
	assert.Contains(t, snap["error"], "Twelve Data API key")
}

func TestRouter_HealthAndVersion(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	a := newTestApp(t, testConfig(u))

	for _, path := range []string{"/api/health", "/api/health/live", "/api/health/ready", "/api/version"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(a, http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}

	rec := serve(a, http.MethodGet, "/api/health/ready", "", nil)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	svcs := status["services"].(map[string]interface{})
	twelve := svcs["twelvedata"].(map[string]interface{})
	assert.Equal(t, "degraded", twelve["status"])
}

func TestRouter_TrailingSlashAndCompression(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	a := newTestApp(t, testConfig(u))

	rec := serve(a, http.MethodGet, "/api/health/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(a, http.MethodGet, "/api/version", "", map[string]string{"Accept-Encoding": "gzip"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	var version map[string]interface{}
	require.NoError(t, json.NewDecoder(zr).Decode(&version))
	assert.Equal(t, Version, version["version"])
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	a := newTestApp(t, testConfig(u))

	rec := serve(a, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(a, http.MethodDelete, "/api/analyze", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_IndexAndMetrics(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	a := newTestApp(t, testConfig(u))

	index := serve(a, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, index.Code)
	assert.Contains(t, index.Body.String(), "QuotePulse")

	_ = serve(a, http.MethodGet, "/api/health", "", nil)

	metrics := serve(a, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "http_requests_total")
}

func TestRouter_CORS(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	cfg := testConfig(u)
	cfg.Security.AllowedOrigins = []string{"https://app.example"}
	a := newTestApp(t, cfg)

	rec := serve(a, http.MethodOptions, "/api/analyze", "", map[string]string{"Origin": "https://app.example"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(a, http.MethodGet, "/api/health", "", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestApplication_StartStop(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	cfg := testConfig(u)
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second

	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, a.Start(ctx, cancel))
	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, a.Stop(ctx))
}

func TestApplication_StartupHealthCheck(t *testing.T) {
	u := newUpstreams(t, gdeltBody)
	a := newTestApp(t, testConfig(u))

	err := a.performStartupHealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twelvedata degraded")

	cfg := testConfig(u)
	cfg.TwelveData.APIKey = "test-key"
	withKey := newTestApp(t, cfg)
	assert.NoError(t, withKey.performStartupHealthCheck(context.Background()))
}
