package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	HyperliquidAPIURL string        `envconfig:"HYPERLIQUID_API_URL" default:"https://api.hyperliquid-testnet.xyz"`
	HyperliquidWSURL  string        `envconfig:"HYPERLIQUID_WS_URL" default:"wss://api.hyperliquid-testnet.xyz/ws"`
	WalletAddress     string        `envconfig:"HYPERLIQUID_WALLET_ADDRESS"`
	Testnet           bool          `envconfig:"HYPERLIQUID_TESTNET" default:"true"`
	HTTPTimeout       time.Duration `envconfig:"HYPERLIQUID_HTTP_TIMEOUT" default:"10s"`
	StreamEnabled     bool          `envconfig:"HYPERLIQUID_STREAM_ENABLED" default:"true"`
	StreamMaxAge      time.Duration `envconfig:"HYPERLIQUID_STREAM_MAX_AGE" default:"30s"`

	PaperStartingBalance decimal.Decimal `envconfig:"PAPER_STARTING_BALANCE" default:"10000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
