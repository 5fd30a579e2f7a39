package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"perptrader/src/model"
)

// ReadOnlyDB serves the status API. The database user behind it should only
// have SELECT permissions. Falls back to the main URL when no read-only URL
// is configured.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB connects without running migrations and checks that the
// performance table is reachable.
func InitReadOnlyDB() error {
	config := GetConfig()
	dsn := config.DatabaseURLReadOnly
	if dsn == "" {
		dsn = config.DatabaseURLMain
	}

	db, err := Open(config, dsn)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	var count int64
	if err := db.Model(&model.DailyPerformance{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to access daily_performance: %w", err)
	}
	logrus.WithField("days", count).Info("[ReadOnlyDB] daily_performance reachable")

	ReadOnlyDB = db
	return nil
}
