package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"perptrader/src/database/migrations"
	"perptrader/src/model"
)

// MainDB is the read/write connection used by the trading loop.
var MainDB *gorm.DB

// InitMainDB opens the main database and brings the schema up to date.
// Call once at startup.
func InitMainDB() error {
	config := GetConfig()
	db, err := Open(config, config.DatabaseURLMain)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}

	MainDB = db
	logrus.WithField("driver", config.Driver).Info("[database] MainDB connection established")
	return nil
}

// Migrate runs schema auto-migrations followed by the one-off data migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.DailyPerformance{},
		&model.TradeRecord{},
		&model.OrderLog{},
		&model.Exception{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations on MainDB: %w", err)
	}

	logrus.Info("[database] migrations completed")
	return nil
}
