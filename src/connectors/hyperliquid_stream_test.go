package connectors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTicker map[string]decimal.Decimal

func (s staticTicker) Ticker(ctx context.Context, asset string) (decimal.Decimal, error) {
	px, ok := s[asset]
	if !ok {
		return decimal.Zero, errors.New("no price")
	}
	return px, nil
}

func TestMidStreamConsumesAllMids(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan map[string]interface{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]interface{}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub

		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"subscriptionResponse","data":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"allMids","data":{"mids":{"BTC":"65000","ETH":"3200.5"}}}`))

		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	stream := NewMidStream("ws"+strings.TrimPrefix(srv.URL, "http"), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		stream.Run(ctx)
		close(done)
	}()

	select {
	case sub := <-subscribed:
		assert.Equal(t, "subscribe", sub["method"])
	case <-time.After(5 * time.Second):
		t.Fatalf("no subscription received")
	}

	require.Eventually(t, func() bool {
		_, ok := stream.Mid("ETH")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	px, ok := stream.Mid("ETH")
	require.True(t, ok)
	assert.True(t, px.Equal(decimal.RequireFromString("3200.5")))

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("stream did not stop on cancel")
	}
}

func TestMidStaleness(t *testing.T) {
	now := time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)
	stream := NewMidStream("ws://unused", 30*time.Second)
	stream.now = func() time.Time { return now }
	stream.apply(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(100)})

	_, ok := stream.Mid("BTC")
	require.True(t, ok)
	_, ok = stream.Mid("SOL")
	require.False(t, ok)

	now = now.Add(31 * time.Second)
	_, ok = stream.Mid("BTC")
	require.False(t, ok)
}

func TestStreamTickerFallsBack(t *testing.T) {
	stream := NewMidStream("ws://unused", time.Minute)
	stream.apply(map[string]decimal.Decimal{"BTC": decimal.NewFromInt(100)})

	ticker := StreamTicker{
		Stream:   stream,
		Fallback: staticTicker{"BTC": decimal.NewFromInt(99), "ETH": decimal.NewFromInt(10)},
	}

	px, err := ticker.Ticker(context.Background(), "BTC")
	require.NoError(t, err)
	assert.True(t, px.Equal(decimal.NewFromInt(100)))

	px, err = ticker.Ticker(context.Background(), "ETH")
	require.NoError(t, err)
	assert.True(t, px.Equal(decimal.NewFromInt(10)))

	_, err = StreamTicker{Fallback: staticTicker{}}.Ticker(context.Background(), "BTC")
	require.Error(t, err)
}
