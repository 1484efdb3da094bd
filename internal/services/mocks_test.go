package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"quotepulse/internal/gdelt"
	"quotepulse/internal/stooq"
	"quotepulse/internal/twelvedata"
)

type MockArticleSearcher struct {
	mock.Mock
}

func (m *MockArticleSearcher) Search(ctx context.Context, p gdelt.SearchParams) (*gdelt.SearchResult, error) {
	args := m.Called(ctx, p)
	res, _ := args.Get(0).(*gdelt.SearchResult)
	return res, args.Error(1)
}

type MockDailyFeedSource struct {
	mock.Mock
}

func (m *MockDailyFeedSource) Daily(ctx context.Context, symbol string) (*stooq.DailyFeed, error) {
	args := m.Called(ctx, symbol)
	res, _ := args.Get(0).(*stooq.DailyFeed)
	return res, args.Error(1)
}

type MockIntradaySource struct {
	mock.Mock
}

func (m *MockIntradaySource) HasAPIKey() bool {
	return m.Called().Bool(0)
}

func (m *MockIntradaySource) TimeSeries(ctx context.Context, symbol, interval string, size int) (*twelvedata.TimeSeries, error) {
	args := m.Called(ctx, symbol, interval, size)
	res, _ := args.Get(0).(*twelvedata.TimeSeries)
	return res, args.Error(1)
}
