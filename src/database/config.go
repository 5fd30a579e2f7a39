package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver              string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite | postgres
	DatabaseURLMain     string `envconfig:"DATABASE_URL_MAIN" default:"perptrader.db"`
	DatabaseURLReadOnly string `envconfig:"DATABASE_URL_READONLY"`
	GormLogLevel        int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
	MaxOpenConns        int    `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
