package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"perptrader/src/database"
	"perptrader/src/model"
)

// OrderLogRepository stores every order the bot sends.
type OrderLogRepository struct {
	db *gorm.DB
}

func NewOrderLogRepository() *OrderLogRepository {
	return &OrderLogRepository{db: database.MainDB}
}

func (r *OrderLogRepository) WithDB(db *gorm.DB) *OrderLogRepository {
	return &OrderLogRepository{db: db}
}

func (r *OrderLogRepository) Create(ctx context.Context, entry *model.OrderLog) error {
	logger.WithFields(map[string]interface{}{
		"repo":   "OrderLogRepository",
		"op":     "Create",
		"asset":  entry.Asset,
		"side":   entry.Side,
		"size":   entry.Size.String(),
		"status": entry.Status,
	}).Debug("Creating order log")

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderLogRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create order log")
		return err
	}
	return nil
}
