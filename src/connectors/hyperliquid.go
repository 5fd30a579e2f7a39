package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"perptrader/src/model"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second

	infoPath = "/info"
)

var ErrUnknownAsset = errors.New("asset not found in market data")

// TickerSource returns the latest mid price for an asset.
type TickerSource interface {
	Ticker(ctx context.Context, asset string) (decimal.Decimal, error)
}

// -----------------------------
// WIRE TYPES
// -----------------------------

type clearinghouseState struct {
	MarginSummary struct {
		AccountValue    decimal.Decimal `json:"accountValue"`
		TotalMarginUsed decimal.Decimal `json:"totalMarginUsed"`
		TotalNtlPos     decimal.Decimal `json:"totalNtlPos"`
	} `json:"marginSummary"`
	Withdrawable   decimal.Decimal `json:"withdrawable"`
	AssetPositions []struct {
		Position wirePosition `json:"position"`
	} `json:"assetPositions"`
}

type wirePosition struct {
	Coin          string              `json:"coin"`
	Szi           decimal.Decimal     `json:"szi"`
	EntryPx       decimal.Decimal     `json:"entryPx"`
	PositionValue decimal.Decimal     `json:"positionValue"`
	UnrealizedPnl decimal.Decimal     `json:"unrealizedPnl"`
	LiquidationPx decimal.NullDecimal `json:"liquidationPx"`
	MarginUsed    decimal.Decimal     `json:"marginUsed"`
	Leverage      struct {
		Type  string `json:"type"`
		Value int    `json:"value"`
	} `json:"leverage"`
}

type wireCandle struct {
	OpenTime int64           `json:"t"`
	Symbol   string          `json:"s"`
	Open     decimal.Decimal `json:"o"`
	High     decimal.Decimal `json:"h"`
	Low      decimal.Decimal `json:"l"`
	Close    decimal.Decimal `json:"c"`
	Volume   decimal.Decimal `json:"v"`
}

type wireBook struct {
	Coin   string               `json:"coin"`
	Levels [2][]model.BookLevel `json:"levels"`
}

// -----------------------------
// CLIENT
// -----------------------------

// HyperliquidClient reads account and market data from the public info API.
type HyperliquidClient struct {
	wallet string
	http   *resty.Client
	now    func() time.Time
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewHyperliquidClient(cfg Config) *HyperliquidClient {
	baseURL := cfg.HyperliquidAPIURL
	if baseURL == "" {
		baseURL = "https://api.hyperliquid-testnet.xyz"
		logger.Warnf("No Hyperliquid URL provided, using default: %s", baseURL)
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &HyperliquidClient{
		wallet: cfg.WalletAddress,
		http:   httpClient,
		now:    time.Now,
	}
}

func (c *HyperliquidClient) info(ctx context.Context, payload interface{}, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(infoPath)
	if err != nil {
		return err
	}

	raw := resp.Body()
	if resp.StatusCode() != 200 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode info response: %w", err)
	}
	return nil
}

// -----------------------------
// ACCOUNT
// -----------------------------

// AccountState builds the portfolio snapshot for the configured wallet.
func (c *HyperliquidClient) AccountState(ctx context.Context) (model.Portfolio, error) {
	var state clearinghouseState
	err := c.info(ctx, map[string]string{"type": "clearinghouseState", "user": c.wallet}, &state)
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("clearinghouse state: %w", err)
	}

	total := state.MarginSummary.AccountValue
	used := state.MarginSummary.TotalMarginUsed

	p := model.Portfolio{
		TotalValue:       total,
		UsedMargin:       used,
		AvailableBalance: total.Sub(used),
		UnrealizedPnL:    decimal.Zero,
	}
	for _, ap := range state.AssetPositions {
		if ap.Position.Szi.IsZero() {
			continue
		}
		pos := parsePosition(ap.Position)
		p.Positions = append(p.Positions, pos)
		p.UnrealizedPnL = p.UnrealizedPnL.Add(pos.UnrealizedPnL)
	}
	if total.IsPositive() {
		hundred := decimal.NewFromInt(100)
		p.MarginUsagePct = used.Div(total).Mul(hundred).InexactFloat64()
		p.ExposurePct = p.TotalNotional().Div(total).Mul(hundred).InexactFloat64()
	}
	return p, nil
}

func parsePosition(w wirePosition) model.Position {
	side := model.SideLong
	if w.Szi.IsNegative() {
		side = model.SideShort
	}
	size := w.Szi.Abs()

	current := w.EntryPx
	if size.IsPositive() && w.PositionValue.IsPositive() {
		current = w.PositionValue.Div(size)
	}

	pct := 0.0
	if basis := w.EntryPx.Mul(size); basis.IsPositive() {
		pct = w.UnrealizedPnl.Div(basis).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}

	leverage := w.Leverage.Value
	if leverage <= 0 {
		leverage = 1
	}

	return model.Position{
		Asset:            w.Coin,
		Side:             side,
		Size:             size,
		EntryPrice:       w.EntryPx,
		CurrentPrice:     current,
		Leverage:         leverage,
		MarginUsed:       w.MarginUsed,
		UnrealizedPnL:    w.UnrealizedPnl,
		UnrealizedPnLPct: pct,
		LiquidationPrice: w.LiquidationPx,
	}
}

// -----------------------------
// MARKET DATA
// -----------------------------

// Mids returns the mid price of every listed asset.
func (c *HyperliquidClient) Mids(ctx context.Context) (map[string]decimal.Decimal, error) {
	var mids map[string]decimal.Decimal
	if err := c.info(ctx, map[string]string{"type": "allMids"}, &mids); err != nil {
		return nil, fmt.Errorf("all mids: %w", err)
	}
	return mids, nil
}

func (c *HyperliquidClient) Ticker(ctx context.Context, asset string) (decimal.Decimal, error) {
	mids, err := c.Mids(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	px, ok := mids[asset]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return px, nil
}

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// Candles returns up to limit candles for the interval, oldest first.
func (c *HyperliquidClient) Candles(ctx context.Context, asset, interval string, limit int) ([]model.Candle, error) {
	if interval == "24h" {
		interval = "1d"
	}
	step, ok := intervals[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported candle interval %q", interval)
	}
	if limit <= 0 {
		limit = 100
	}

	end := c.now()
	payload := map[string]interface{}{
		"type": "candleSnapshot",
		"req": map[string]interface{}{
			"coin":      asset,
			"interval":  interval,
			"startTime": end.Add(-time.Duration(limit) * step).UnixMilli(),
			"endTime":   end.UnixMilli(),
		},
	}

	var raw []wireCandle
	if err := c.info(ctx, payload, &raw); err != nil {
		return nil, fmt.Errorf("candles %s %s: %w", asset, interval, err)
	}
	if len(raw) > limit {
		raw = raw[len(raw)-limit:]
	}

	out := make([]model.Candle, 0, len(raw))
	for _, w := range raw {
		out = append(out, model.Candle{
			OpenTime: time.UnixMilli(w.OpenTime).UTC(),
			Open:     w.Open,
			High:     w.High,
			Low:      w.Low,
			Close:    w.Close,
			Volume:   w.Volume,
			Symbol:   asset,
		})
	}
	return out, nil
}

// Orderbook returns the top depth levels per side; bids best first, asks best first.
func (c *HyperliquidClient) Orderbook(ctx context.Context, asset string, depth int) (*model.Orderbook, error) {
	var book wireBook
	if err := c.info(ctx, map[string]string{"type": "l2Book", "coin": asset}, &book); err != nil {
		return nil, fmt.Errorf("l2 book %s: %w", asset, err)
	}

	bids, asks := book.Levels[0], book.Levels[1]
	if depth > 0 {
		if len(bids) > depth {
			bids = bids[:depth]
		}
		if len(asks) > depth {
			asks = asks[:depth]
		}
	}
	return &model.Orderbook{Asset: asset, Bids: bids, Asks: asks}, nil
}

// HealthCheck fails when the info API cannot price BTC.
func (c *HyperliquidClient) HealthCheck(ctx context.Context) error {
	if _, err := c.Ticker(ctx, "BTC"); err != nil {
		logger.WithError(err).Error("Hyperliquid API health check failed")
		return err
	}
	logger.Info("Hyperliquid API health check passed")
	return nil
}
