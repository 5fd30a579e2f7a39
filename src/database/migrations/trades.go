package migrations

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"perptrader/src/model"
)

// backfillTradeIDs gives ledger rows imported without an id a stable one, so
// closes can be matched by id instead of by asset.
func backfillTradeIDs(tx *gorm.DB) error {
	var ids []uint
	if err := tx.Model(&model.TradeRecord{}).
		Where("trade_id IS NULL OR trade_id = ''").
		Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("list trades without id: %w", err)
	}

	for _, id := range ids {
		if err := tx.Model(&model.TradeRecord{}).
			Where("id = ?", id).
			Update("trade_id", uuid.NewString()).Error; err != nil {
			return fmt.Errorf("backfill trade %d: %w", id, err)
		}
	}
	return nil
}

// normalizeTradeStatus upper-cases statuses written by older tooling.
func normalizeTradeStatus(tx *gorm.DB) error {
	return tx.Model(&model.TradeRecord{}).
		Where("status <> UPPER(status)").
		Update("status", gorm.Expr("UPPER(status)")).Error
}
