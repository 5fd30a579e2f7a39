package migrations

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"perptrader/src/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.TradeRecord{}, &DataMigration{}))
	return db
}

func TestRunOnceOnlyOnce(t *testing.T) {
	db := newTestDB(t)

	calls := 0
	fn := func(*gorm.DB) error {
		calls++
		return nil
	}
	require.NoError(t, RunOnce(db, "test_once", fn))
	require.NoError(t, RunOnce(db, "test_once", fn))
	require.Equal(t, 1, calls)

	require.Error(t, RunOnce(db, "", fn))
	require.Error(t, RunOnce(db, "nil_fn", nil))
}

func TestRunBackfillsAndNormalizes(t *testing.T) {
	db := newTestDB(t)

	// rows as older tooling wrote them
	require.NoError(t, db.Exec(`INSERT INTO trade_records (trade_id, asset, status, entry_price, size, confidence, confluence_score) VALUES ('', 'BTC', 'win', '100', '1', 0.7, 5)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO trade_records (trade_id, asset, status, entry_price, size, confidence, confluence_score) VALUES ('keep-me', 'ETH', 'OPEN', '100', '1', 0.7, 5)`).Error)

	require.NoError(t, Run(db))

	var trades []model.TradeRecord
	require.NoError(t, db.Order("id").Find(&trades).Error)
	require.Len(t, trades, 2)
	require.NotEmpty(t, trades[0].TradeID)
	require.Equal(t, model.TradeStatusWin, trades[0].Status)
	require.Equal(t, "keep-me", trades[1].TradeID)

	var applied int64
	require.NoError(t, db.Model(&DataMigration{}).Count(&applied).Error)
	require.Equal(t, int64(2), applied)
}
