package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"perptrader/src/model"
	"perptrader/src/repository"
)

type mockDays struct {
	current  *model.DailyPerformance
	archived map[string]*model.DailyPerformance
	err      error
	lookups  []string
}

func (m *mockDays) LoadCurrentDay(ctx context.Context) (*model.DailyPerformance, error) {
	return m.current, m.err
}

func (m *mockDays) FindArchivedDay(ctx context.Context, date string) (*model.DailyPerformance, error) {
	m.lookups = append(m.lookups, date)
	return m.archived[date], nil
}

type mockTradeSearcher struct {
	trades      []model.TradeRecord
	err         error
	options     repository.TradeSearchOptions
	calledCount int
}

func (m *mockTradeSearcher) ListTrades(ctx context.Context, options repository.TradeSearchOptions) ([]model.TradeRecord, error) {
	m.calledCount++
	m.options = options
	return m.trades, m.err
}

func today() *model.DailyPerformance {
	return &model.DailyPerformance{
		Date:            "2025-03-05",
		StartingBalance: decimal.NewFromInt(10000),
		CurrentBalance:  decimal.NewFromInt(10150),
		DailyPnL:        decimal.NewFromInt(150),
		DailyPnLPct:     1.5,
		TradesToday:     2,
		WinsToday:       1,
		LossesToday:     1,
	}
}

func TestDailyStatsHandler_Current(t *testing.T) {
	handler := DailyStatsHandler(&mockDays{current: today()})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var stats model.DailyStats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, "2025-03-05", stats.Date)
	assert.Equal(t, 2, stats.TradesToday)
	assert.InDelta(t, 50.0, stats.WinRate, 0.001)
}

func TestDailyStatsHandler_Archived(t *testing.T) {
	old := today()
	old.Date = "2025-03-01"
	repo := &mockDays{current: today(), archived: map[string]*model.DailyPerformance{"2025-03-01": old}}
	handler := DailyStatsHandler(repo)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats?date=2025-03-01", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	assert.Equal(t, []string{"2025-03-01"}, repo.lookups)

	// the current day is served without touching the archive
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats?date=2025-03-05", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	assert.Len(t, repo.lookups, 1)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats?date=2024-12-31", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestDailyStatsHandler_Errors(t *testing.T) {
	cases := []struct {
		name string
		repo *mockDays
		url  string
		want int
	}{
		{name: "bad date", repo: &mockDays{current: today()}, url: "/stats?date=05-03-2025", want: http.StatusBadRequest},
		{name: "nothing recorded", repo: &mockDays{}, url: "/stats", want: http.StatusNotFound},
		{name: "store error", repo: &mockDays{err: assert.AnError}, url: "/stats", want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			DailyStatsHandler(tc.repo).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.url, nil))
			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestSearchTradesHandler_Success(t *testing.T) {
	trades := []model.TradeRecord{{TradeID: "t-1", Asset: "BTC", Status: model.TradeStatusWin}}
	mockRepo := &mockTradeSearcher{trades: trades}
	handler := SearchTradesHandler(mockRepo)

	req := httptest.NewRequest(http.MethodGet, "/trades?date=2025-03-05&asset=btc&status=win&page=2&pageSize=5", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if mockRepo.calledCount != 1 {
		t.Fatalf("expected repository to be called once, got %d", mockRepo.calledCount)
	}
	want := repository.TradeSearchOptions{Date: "2025-03-05", Asset: "BTC", Status: model.TradeStatusWin, Limit: 5, Offset: 5}
	if mockRepo.options != want {
		t.Fatalf("unexpected options %+v", mockRepo.options)
	}
	assert.Contains(t, rr.Body.String(), `"trade_id":"t-1"`)
}

func TestSearchTradesHandler_EmptyIsArray(t *testing.T) {
	rr := httptest.NewRecorder()
	SearchTradesHandler(&mockTradeSearcher{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/trades", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestSearchTradesHandler_BadRequests(t *testing.T) {
	for _, url := range []string{
		"/trades?page=0",
		"/trades?pageSize=abc",
		"/trades?pageSize=1000",
		"/trades?date=yesterday",
		"/trades?status=PENDING",
	} {
		mockRepo := &mockTradeSearcher{}
		rr := httptest.NewRecorder()
		SearchTradesHandler(mockRepo).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, url, nil))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", url, rr.Code)
		}
		if mockRepo.calledCount != 0 {
			t.Fatalf("%s: repository should not be called", url)
		}
	}
}

func TestSearchTradesHandler_RepoError(t *testing.T) {
	mockRepo := &mockTradeSearcher{err: assert.AnError}
	rr := httptest.NewRecorder()
	SearchTradesHandler(mockRepo).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/trades", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
