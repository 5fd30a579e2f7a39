package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"perptrader/src/model"
)

const (
	chatCompletionsPath = "/chat/completions"

	retryAttempts   = 3
	retryBaseDelay  = 500 * time.Millisecond
	retryMaxBackoff = 5 * time.Second
)

const fallbackPrompt = `You are a trading algorithm for a perpetual futures DEX.
Analyze the market snapshot and answer with a single JSON object only.
Always set "schema_version": "1". Fields: decision, confidence (0-1),
confluence_score (0-10), setup_quality, market_regime, risk_assessment,
reasoning and, unless the decision is HOLD, suggested_action with
entry_price, stop_loss and take_profit_targets.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// DeepSeekSource asks an OpenAI-compatible chat completions endpoint for a
// decision in JSON mode.
type DeepSeekSource struct {
	cfg    Config
	http   *resty.Client
	prompt string
}

func isRetryable(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == 429 || code == 408
}

func NewDeepSeekSource(cfg Config) *DeepSeekSource {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetRetryCount(retryAttempts - 1).
		SetRetryWaitTime(retryBaseDelay).
		SetRetryMaxWaitTime(retryMaxBackoff).
		AddRetryCondition(isRetryable)

	return &DeepSeekSource{
		cfg:    cfg,
		http:   httpClient,
		prompt: loadPrompt(cfg.PromptFile),
	}
}

func loadPrompt(path string) string {
	if path == "" {
		return fallbackPrompt
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.WithField("file", path).Warn("Decision prompt not found, using fallback prompt")
		return fallbackPrompt
	}
	return string(raw)
}

func (s *DeepSeekSource) Decide(ctx context.Context, snapshot MarketSnapshot) (*model.TradingDecision, error) {
	state, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	body := chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: s.prompt},
			{Role: "user", Content: "Market snapshot:\n" + string(state) + "\nOutput JSON only."},
		},
		Temperature:    s.cfg.Temperature,
		MaxTokens:      s.cfg.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(chatCompletionsPath)
	if err != nil {
		return nil, fmt.Errorf("decision request for %s: %w", snapshot.Asset, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("decision request for %s: HTTP %d: %s", snapshot.Asset, resp.StatusCode(), resp.String())
	}
	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode decision response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("decision response has no choices")
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	decision, err := Parse([]byte(content))
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"asset":   snapshot.Asset,
			"content": truncate(content, 500),
		}).WithError(err).Warn("Rejected decision payload")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"asset":      snapshot.Asset,
		"decision":   decision.Decision,
		"confidence": decision.Confidence,
		"confluence": decision.ConfluenceScore,
		"setup":      decision.SetupQuality,
	}).Info("Decision received")
	return decision, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
