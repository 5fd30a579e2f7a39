package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	streamReconnectMin = time.Second
	streamReconnectMax = 30 * time.Second
)

type streamMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type allMidsData struct {
	Mids map[string]decimal.Decimal `json:"mids"`
}

// MidStream keeps the latest allMids snapshot pushed over the websocket feed.
type MidStream struct {
	url    string
	maxAge time.Duration
	dialer websocket.Dialer
	now    func() time.Time

	mu      sync.RWMutex
	mids    map[string]decimal.Decimal
	updated time.Time
}

func NewMidStream(url string, maxAge time.Duration) *MidStream {
	return &MidStream{
		url:    url,
		maxAge: maxAge,
		dialer: websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
			Proxy:            http.ProxyFromEnvironment,
		},
		now:  time.Now,
		mids: make(map[string]decimal.Decimal),
	}
}

// Run consumes the feed until ctx is cancelled, reconnecting with backoff.
func (s *MidStream) Run(ctx context.Context) {
	backoff := streamReconnectMin
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			logger.Info("Mid stream stopped")
			return
		}
		logger.WithError(err).WithField("retry_in", backoff.String()).Warn("Mid stream disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > streamReconnectMax {
			backoff = streamReconnectMax
		}
	}
}

func (s *MidStream) consume(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("ws dial failed: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage on shutdown
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := map[string]interface{}{
		"method":       "subscribe",
		"subscription": map[string]string{"type": "allMids"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("ws subscribe failed: %w", err)
	}
	logger.WithField("url", s.url).Info("Subscribed to allMids")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read failed: %w", err)
		}

		var base streamMessage
		if err := json.Unmarshal(msg, &base); err != nil {
			logger.WithError(err).Debug("Skipping non-JSON stream frame")
			continue
		}
		if base.Channel != "allMids" {
			continue
		}

		var data allMidsData
		if err := json.Unmarshal(base.Data, &data); err != nil {
			logger.WithError(err).Warn("Bad allMids payload")
			continue
		}
		s.apply(data.Mids)
	}
}

func (s *MidStream) apply(mids map[string]decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for asset, px := range mids {
		s.mids[asset] = px
	}
	s.updated = s.now()
}

// Mid returns the streamed price, or false when missing or older than maxAge.
func (s *MidStream) Mid(asset string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	px, ok := s.mids[asset]
	if !ok {
		return decimal.Zero, false
	}
	if s.maxAge > 0 && s.now().Sub(s.updated) > s.maxAge {
		return decimal.Zero, false
	}
	return px, true
}

// StreamTicker prefers the websocket price and falls back to REST.
type StreamTicker struct {
	Stream   *MidStream
	Fallback TickerSource
}

func (t StreamTicker) Ticker(ctx context.Context, asset string) (decimal.Decimal, error) {
	if t.Stream != nil {
		if px, ok := t.Stream.Mid(asset); ok {
			return px, nil
		}
	}
	return t.Fallback.Ticker(ctx, asset)
}
