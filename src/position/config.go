package position

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MaxHoldDuration  time.Duration `envconfig:"MAX_HOLD_DURATION" default:"24h"`
	FlatPnLThreshold float64       `envconfig:"FLAT_PNL_THRESHOLD_PCT" default:"0.5"`
	DefaultActivateR float64       `envconfig:"TRAIL_ACTIVATE_R" default:"1.5"`
	DefaultTrailR    float64       `envconfig:"TRAIL_BY_R" default:"1.0"`
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
		MaxHoldDuration:  24 * time.Hour,
		FlatPnLThreshold: 0.5,
		DefaultActivateR: 1.5,
		DefaultTrailR:    1.0,
	}
}
