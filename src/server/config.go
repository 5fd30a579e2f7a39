package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"SERVER_PORT" default:"9898"`
	// Enabled starts the status server next to the trading loop.
	Enabled bool `envconfig:"STATUS_SERVER_ENABLED" default:"true"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
