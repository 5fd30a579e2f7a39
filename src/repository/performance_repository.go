package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"perptrader/src/database"
	"perptrader/src/model"
)

// PerformanceRepository is the gorm-backed PerformanceStore.
type PerformanceRepository struct {
	db *gorm.DB
}

// NewPerformanceRepository uses the main read/write database.
func NewPerformanceRepository() *PerformanceRepository {
	return &PerformanceRepository{db: database.MainDB}
}

// WithDB overrides the underlying *gorm.DB, e.g. for tests or the read-only connection.
func (r *PerformanceRepository) WithDB(db *gorm.DB) *PerformanceRepository {
	return &PerformanceRepository{db: db}
}

// ---------------------------------------------------
// Daily performance
// ---------------------------------------------------

func (r *PerformanceRepository) LoadCurrentDay(ctx context.Context) (*model.DailyPerformance, error) {
	var day model.DailyPerformance
	err := r.db.WithContext(ctx).
		Where("archived = ?", false).
		Order("date DESC").
		First(&day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PerformanceRepository",
			"op":   "LoadCurrentDay",
		}).WithError(err).Error("Failed to load current day")
		return nil, err
	}
	return &day, nil
}

func (r *PerformanceRepository) SaveCurrentDay(ctx context.Context, day *model.DailyPerformance) error {
	day.Archived = false
	return r.upsertDay(ctx, day, "SaveCurrentDay")
}

func (r *PerformanceRepository) ArchiveDay(ctx context.Context, day *model.DailyPerformance) error {
	archived := day.Clone()
	archived.Archived = true
	return r.upsertDay(ctx, archived, "ArchiveDay")
}

// upsertDay writes the record keyed by its date.
func (r *PerformanceRepository) upsertDay(ctx context.Context, day *model.DailyPerformance, op string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveDay(tx, day)
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PerformanceRepository",
			"op":   op,
			"date": day.Date,
		}).WithError(err).Error("Failed to persist daily performance")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "PerformanceRepository",
		"op":   op,
		"date": day.Date,
	}).Debug("Daily performance persisted")
	return nil
}

func saveDay(tx *gorm.DB, day *model.DailyPerformance) error {
	var existing model.DailyPerformance
	err := tx.Where("date = ?", day.Date).Take(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		day.ID = 0
		return tx.Create(day).Error
	case err != nil:
		return err
	}
	day.ID = existing.ID
	return tx.Save(day).Error
}

func (r *PerformanceRepository) FindArchivedDay(ctx context.Context, date string) (*model.DailyPerformance, error) {
	var day model.DailyPerformance
	err := r.db.WithContext(ctx).
		Where("date = ? AND archived = ?", date, true).
		First(&day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &day, nil
}

// ---------------------------------------------------
// Trade ledger
// ---------------------------------------------------

func (r *PerformanceRepository) AppendTrade(ctx context.Context, trade *model.TradeRecord) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "PerformanceRepository",
		"op":       "AppendTrade",
		"trade_id": trade.TradeID,
		"asset":    trade.Asset,
	}).Debug("Appending trade")

	if err := r.db.WithContext(ctx).Create(trade).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PerformanceRepository",
			"op":   "AppendTrade",
		}).WithError(err).Error("Failed to append trade")
		return err
	}
	return nil
}

func (r *PerformanceRepository) UpdateTrade(ctx context.Context, trade *model.TradeRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return updateTrade(tx, trade)
	})
}

func updateTrade(tx *gorm.DB, trade *model.TradeRecord) error {
	var existing model.TradeRecord
	err := tx.Where("trade_id = ?", trade.TradeID).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTradeNotFound
	}
	if err != nil {
		return err
	}
	trade.ID = existing.ID
	trade.CreatedAt = existing.CreatedAt
	return tx.Save(trade).Error
}

// OpenTrade inserts the trade and saves the current day in one transaction.
func (r *PerformanceRepository) OpenTrade(ctx context.Context, day *model.DailyPerformance, trade *model.TradeRecord) error {
	day.Archived = false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(trade).Error; err != nil {
			return err
		}
		return saveDay(tx, day)
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "PerformanceRepository",
			"op":       "OpenTrade",
			"trade_id": trade.TradeID,
		}).WithError(err).Error("Failed to open trade")
	}
	return err
}

// CloseTrade updates the trade and saves the current day in one transaction.
func (r *PerformanceRepository) CloseTrade(ctx context.Context, day *model.DailyPerformance, trade *model.TradeRecord) error {
	day.Archived = false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateTrade(tx, trade); err != nil {
			return err
		}
		return saveDay(tx, day)
	})
	if err != nil && !errors.Is(err, ErrTradeNotFound) {
		logger.WithFields(map[string]interface{}{
			"repo":     "PerformanceRepository",
			"op":       "CloseTrade",
			"trade_id": trade.TradeID,
		}).WithError(err).Error("Failed to close trade")
	}
	return err
}

func (r *PerformanceRepository) FindTrade(ctx context.Context, tradeID string) (*model.TradeRecord, error) {
	var trade model.TradeRecord
	err := r.db.WithContext(ctx).Where("trade_id = ?", tradeID).First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func (r *PerformanceRepository) ListTrades(ctx context.Context, options TradeSearchOptions) ([]model.TradeRecord, error) {
	query := r.db.WithContext(ctx).Model(&model.TradeRecord{})

	if options.Date != "" {
		query = query.Where("date = ?", options.Date)
	}
	if options.Asset != "" {
		query = query.Where("asset = ?", options.Asset)
	}
	if options.Status != "" {
		query = query.Where("status = ?", options.Status)
	}
	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}
	if options.Offset > 0 {
		query = query.Offset(options.Offset)
	}

	var trades []model.TradeRecord
	if err := query.Order("timestamp DESC, id DESC").Find(&trades).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PerformanceRepository",
			"op":   "ListTrades",
		}).WithError(err).Error("Failed to list trades")
		return nil, err
	}
	return trades, nil
}
