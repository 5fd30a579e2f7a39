package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"perptrader/cmd/trader"
	"perptrader/src/database"
	"perptrader/src/performance"
	"perptrader/src/server"
	"perptrader/src/utils"
)

var APP_NAME = os.Getenv("APP_NAME")

// main serves the read-only status API over the performance store written by
// the trade command.
func main() {
	if err := utils.LoadEnvFile(".env"); err != nil {
		logger.WithError(err).Warn("Could not load .env")
	}
	utils.SetupLogger()
	defer handlePanic()

	perfConfig := performance.GetConfig()
	var db *gorm.DB
	if perfConfig.Store == "db" {
		// Initialize read-only database
		if err := database.InitReadOnlyDB(); err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		db = database.ReadOnlyDB
	}

	store, err := trader.OpenStore(perfConfig, db)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open performance store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.StartServer(ctx, server.GetConfig().Port, store); err != nil {
		logger.WithError(err).Error("Status server failed")
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
