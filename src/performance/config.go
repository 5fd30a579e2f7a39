package performance

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DataDir              string        `envconfig:"PERFORMANCE_DATA_DIR" default:"data/performance"`
	Store                string        `envconfig:"PERFORMANCE_STORE" default:"file"` // file | db
	HaltLossPct          float64       `envconfig:"DAILY_HALT_LOSS_PCT" default:"-3.0"`
	WarnLossPct          float64       `envconfig:"DAILY_WARN_LOSS_PCT" default:"-2.0"`
	MaxConsecutiveLosses int           `envconfig:"MAX_CONSECUTIVE_LOSSES" default:"4"`
	ShortCooldown        time.Duration `envconfig:"LOSS_COOLDOWN_SHORT" default:"2h"`
	LongCooldown         time.Duration `envconfig:"LOSS_COOLDOWN_LONG" default:"4h"`
	APlusAfterTrades     int           `envconfig:"APLUS_ONLY_AFTER_TRADES" default:"6"`
	MinSizeModifier      float64       `envconfig:"MIN_SIZE_MODIFIER" default:"0.25"`
	TimeZone             string        `envconfig:"TRADING_DAY_TZ" default:"UTC"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func DefaultConfig() Config {
	return Config{
		DataDir:              "data/performance",
		Store:                "file",
		HaltLossPct:          -3.0,
		WarnLossPct:          -2.0,
		MaxConsecutiveLosses: 4,
		ShortCooldown:        2 * time.Hour,
		LongCooldown:         4 * time.Hour,
		APlusAfterTrades:     6,
		MinSizeModifier:      0.25,
		TimeZone:             "UTC",
	}
}
