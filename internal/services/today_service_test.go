package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quotepulse/internal/gdelt"
	"quotepulse/internal/shared/testutil"
	"quotepulse/internal/twelvedata"
	"quotepulse/pkg/contracts/domain"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func newTodayFixture(t *testing.T, now time.Time) (*TodayService, *MockArticleSearcher, *MockIntradaySource) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	search := &MockArticleSearcher{}
	intraday := &MockIntradaySource{}

	svc, err := NewTodayService(search, intraday, TodayOptions{
		HeadlineQuery:   "trump",
		HeadlineRecords: 50,
		Symbol:          "SPY",
		Interval:        "1h",
		OutputSize:      120,
		Location:        newYork(t),
		CacheTTL:        2 * time.Minute,
	}, nil, logger)
	require.NoError(t, err)
	svc.now = func() time.Time { return now }
	t.Cleanup(svc.Close)
	return svc, search, intraday
}

func intradaySeries() *twelvedata.TimeSeries {
	return &twelvedata.TimeSeries{
		Status:    http.StatusOK,
		URL:       "https://api.twelvedata.com/time_series?apikey=REDACTED",
		APIStatus: "ok",
		Values: []twelvedata.Value{
			{Datetime: "2024-01-16 15:30:00", Close: "472.10"},
			{Datetime: "2024-01-16 14:30:00", Close: "not a number"},
			{Datetime: "2024-01-16 13:30:00", Close: "471.50"},
			{Datetime: "2024-01-12 15:30:00", Close: "470.00"},
		},
	}
}

func TestTodayService_Snapshot(t *testing.T) {
	now := time.Date(2024, 1, 16, 20, 0, 0, 0, time.UTC) // 15:00 in New York
	svc, search, intraday := newTodayFixture(t, now)

	search.On("Search", mock.Anything, gdelt.SearchParams{
		Query:      "trump",
		Sort:       gdelt.SortDateDesc,
		MaxRecords: 50,
	}).Return(&gdelt.SearchResult{
		Status: http.StatusOK,
		URL:    "https://gdelt.example/doc",
		Articles: []domain.Article{
			{Title: "  Tariff remarks  ", SeenDate: "20240116T190000Z", URL: "https://a.example"},
			{Title: "Tariff remarks", SeenDate: "20240116T180000Z", URL: "https://b.example"},
			{Title: "   "},
			{Title: "Border visit", Date: "2024-01-16", URL: "https://c.example"},
		},
		Preview: strings.Repeat("x", 200),
	}, nil).Once()
	intraday.On("HasAPIKey").Return(true)
	intraday.On("TimeSeries", mock.Anything, "SPY", "1h", 120).Return(intradaySeries(), nil).Once()

	snap := svc.Snapshot(context.Background(), false)

	assert.True(t, snap.OK)
	assert.Equal(t, http.StatusOK, snap.HTTPStatus)
	assert.Equal(t, []domain.Headline{
		{Text: "Tariff remarks", Datetime: "20240116T190000Z", URL: "https://a.example"},
		{Text: "Border visit", Datetime: "2024-01-16", URL: "https://c.example"},
	}, snap.Quotes)
	assert.Equal(t, []domain.IntradayBar{
		{Time: "2024-01-16 15:30:00", Close: 472.10},
		{Time: "2024-01-16 13:30:00", Close: 471.50},
	}, snap.SPY)

	require.NotNil(t, snap.Debug.GDELT)
	assert.Equal(t, 4, snap.Debug.GDELT.ArticlesCount)
	assert.Len(t, snap.Debug.GDELT.Preview, 120)
	require.NotNil(t, snap.Debug.TwelveData)
	assert.True(t, snap.Debug.TwelveData.HasValues)
	assert.Equal(t, 4, snap.Debug.TwelveData.ValuesCount)
	assert.NotContains(t, snap.Debug.TwelveData.URL, "secret")

	// Served from cache.
	again := svc.Snapshot(context.Background(), false)
	assert.Same(t, snap, again)
	search.AssertExpectations(t)
	intraday.AssertExpectations(t)
}

func TestTodayService_ForceBypassesCache(t *testing.T) {
	svc, search, intraday := newTodayFixture(t, time.Date(2024, 1, 16, 20, 0, 0, 0, time.UTC))
	search.On("Search", mock.Anything, mock.Anything).Return(&gdelt.SearchResult{Status: http.StatusOK}, nil)
	intraday.On("HasAPIKey").Return(true)
	intraday.On("TimeSeries", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(intradaySeries(), nil)

	svc.Snapshot(context.Background(), false)
	svc.Snapshot(context.Background(), true)
	svc.Snapshot(context.Background(), false)

	search.AssertNumberOfCalls(t, "Search", 2)
	intraday.AssertNumberOfCalls(t, "TimeSeries", 2)
}

func TestTodayService_MissingKeyIsCached(t *testing.T) {
	svc, search, intraday := newTodayFixture(t, time.Now())
	intraday.On("HasAPIKey").Return(false)

	snap := svc.Snapshot(context.Background(), false)
	assert.False(t, snap.OK)
	assert.Equal(t, http.StatusInternalServerError, snap.HTTPStatus)
	assert.Contains(t, snap.Error, "TWELVE_API_KEY")
	assert.False(t, snap.Debug.HaveKey)
	assert.NotNil(t, snap.Quotes)
	assert.NotNil(t, snap.SPY)

	svc.Snapshot(context.Background(), false)
	intraday.AssertNumberOfCalls(t, "HasAPIKey", 1)
	search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestTodayService_UpstreamFailuresStayInDebug(t *testing.T) {
	svc, search, intraday := newTodayFixture(t, time.Date(2024, 1, 16, 20, 0, 0, 0, time.UTC))
	search.On("Search", mock.Anything, mock.Anything).Return(
		&gdelt.SearchResult{Status: http.StatusOK, Preview: "oops"},
		&gdelt.InvalidResponseError{Status: http.StatusOK, Preview: "oops"},
	)
	intraday.On("HasAPIKey").Return(true)
	intraday.On("TimeSeries", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(
		&twelvedata.TimeSeries{Status: http.StatusOK, APIStatus: "error", Message: "run out of API credits"}, nil,
	)

	snap := svc.Snapshot(context.Background(), false)

	assert.True(t, snap.OK)
	assert.Empty(t, snap.Quotes)
	assert.Empty(t, snap.SPY)
	assert.NotEmpty(t, snap.Debug.GDELT.Error)
	assert.Equal(t, "error", snap.Debug.TwelveData.StatusField)
	assert.Equal(t, "run out of API credits", snap.Debug.TwelveData.Message)
	assert.False(t, snap.Debug.TwelveData.HasValues)
}

func TestTodayService_TransportErrorOnIntraday(t *testing.T) {
	svc, search, intraday := newTodayFixture(t, time.Now())
	search.On("Search", mock.Anything, mock.Anything).Return(&gdelt.SearchResult{Status: http.StatusOK}, nil)
	intraday.On("HasAPIKey").Return(true)
	intraday.On("TimeSeries", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	snap := svc.Snapshot(context.Background(), false)
	assert.True(t, snap.OK)
	assert.Equal(t, "connection reset", snap.Debug.TwelveData.Error)
	assert.Empty(t, snap.SPY)
}

func TestExtractHeadlines(t *testing.T) {
	t.Run("limit and dedupe", func(t *testing.T) {
		articles := make([]domain.Article, 0, 12)
		for _, title := range []string{"a", "b", "a", "c", "d", "b", "e", "f", "g"} {
			articles = append(articles, domain.Article{Title: title})
		}
		got := ExtractHeadlines(articles, 5)
		texts := make([]string, 0, len(got))
		for _, h := range got {
			texts = append(texts, h.Text)
		}
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, texts)
	})

	t.Run("repeated title keeps its slot with the later fields", func(t *testing.T) {
		got := ExtractHeadlines([]domain.Article{
			{Title: "same", SeenDate: "20240116T100000Z", URL: "https://example.com/1"},
			{Title: "other", SeenDate: "20240116T110000Z"},
			{Title: "same", SeenDate: "20240116T120000Z", URL: "https://example.com/3"},
		}, 5)
		require.Len(t, got, 2)
		assert.Equal(t, "same", got[0].Text)
		assert.Equal(t, "20240116T120000Z", got[0].Datetime)
		assert.Equal(t, "https://example.com/3", got[0].URL)
		assert.Equal(t, "other", got[1].Text)
	})

	t.Run("duplicates past the limit still update earlier slots", func(t *testing.T) {
		articles := make([]domain.Article, 0, 7)
		for i, title := range []string{"a", "b", "c", "d", "e", "f", "a"} {
			articles = append(articles, domain.Article{Title: title, URL: fmt.Sprintf("u%d", i)})
		}
		got := ExtractHeadlines(articles, 5)
		require.Len(t, got, 5)
		assert.Equal(t, "a", got[0].Text)
		assert.Equal(t, "u6", got[0].URL)
		assert.Equal(t, "e", got[4].Text)
	})

	t.Run("only the first twenty candidates count", func(t *testing.T) {
		articles := make([]domain.Article, 25)
		articles[0] = domain.Article{Title: "first"}
		articles[22] = domain.Article{Title: "too late"}
		got := ExtractHeadlines(articles, 5)
		require.Len(t, got, 1)
		assert.Equal(t, "first", got[0].Text)
	})

	t.Run("titles are cut to 180 runes", func(t *testing.T) {
		got := ExtractHeadlines([]domain.Article{{Title: strings.Repeat("ü", 200)}}, 5)
		require.Len(t, got, 1)
		assert.Equal(t, 180, len([]rune(got[0].Text)))
	})

	t.Run("datetime preference", func(t *testing.T) {
		got := ExtractHeadlines([]domain.Article{
			{Title: "x", DateTime: "dt", Date: "d"},
			{Title: "y", DateTime: "dt"},
		}, 5)
		assert.Equal(t, "d", got[0].Datetime)
		assert.Equal(t, "dt", got[1].Datetime)
	})
}

func TestFilterToday(t *testing.T) {
	loc := newYork(t)
	values := []twelvedata.Value{
		{Datetime: "2024-01-16 15:30:00", Close: "472.1"},
		{Datetime: "2024-01-17 09:30:00", Close: "473"},
		{Datetime: "2024-01-16 10:30:00", Close: "NaN"},
		{Datetime: "2024-01-16 09:30:00", Close: " 470.5 "},
	}

	// 02:00 UTC on the 17th is still the 16th in New York.
	got := FilterToday(values, time.Date(2024, 1, 17, 2, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, []domain.IntradayBar{
		{Time: "2024-01-16 15:30:00", Close: 472.1},
		{Time: "2024-01-16 09:30:00", Close: 470.5},
	}, got)

	assert.Empty(t, FilterToday(values, time.Date(2024, 1, 18, 15, 0, 0, 0, time.UTC), loc))
}
