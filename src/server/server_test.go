package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perptrader/src/model"
	"perptrader/src/repository"
)

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestRoutes(t *testing.T) {
	ctx := context.Background()
	store, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(store))
	defer srv.Close()

	code, body := get(t, srv, "/healthcheck")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)

	code, _ = get(t, srv, "/stats")
	assert.Equal(t, http.StatusNotFound, code)

	require.NoError(t, store.SaveCurrentDay(ctx, &model.DailyPerformance{
		Date:            "2025-03-05",
		StartingBalance: decimal.NewFromInt(10000),
		CurrentBalance:  decimal.NewFromInt(9700),
		DailyPnL:        decimal.NewFromInt(-300),
		DailyPnLPct:     -3,
		TradingHalted:   true,
		HaltReason:      "Daily loss limit reached: -3.0%",
	}))
	require.NoError(t, store.AppendTrade(ctx, &model.TradeRecord{
		TradeID: "t-1", Date: "2025-03-05", Asset: "ETH", Side: model.OrderSideSell, Status: model.TradeStatusOpen,
	}))

	code, body = get(t, srv, "/stats")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"is_trading_stopped":true`)

	code, body = get(t, srv, "/trades?asset=eth")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"trade_id":"t-1"`)

	code, body = get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
}

func TestStartServerStopsOnCancel(t *testing.T) {
	store, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, StartServer(ctx, "0", store))
}
