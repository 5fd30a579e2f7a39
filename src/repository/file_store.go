package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	logger "github.com/sirupsen/logrus"

	"perptrader/src/model"
)

const (
	currentDayFile = "daily_performance.json"
	tradesLogFile  = "trades_log.json"
)

// FileStore keeps performance data as JSON documents in a directory:
//
//	daily_performance.json  current day
//	daily_<date>.json       archived days
//	trades_log.json         full trade ledger
//
// Writes go to a temp file that is renamed over the target.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) LoadCurrentDay(ctx context.Context) (*model.DailyPerformance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var day model.DailyPerformance
	found, err := s.readJSON(currentDayFile, &day)
	if err != nil || !found {
		return nil, err
	}
	return &day, nil
}

func (s *FileStore) SaveCurrentDay(ctx context.Context, day *model.DailyPerformance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(currentDayFile, day)
}

func (s *FileStore) ArchiveDay(ctx context.Context, day *model.DailyPerformance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(archiveFile(day.Date), day)
}

func (s *FileStore) FindArchivedDay(ctx context.Context, date string) (*model.DailyPerformance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var day model.DailyPerformance
	found, err := s.readJSON(archiveFile(date), &day)
	if err != nil || !found {
		return nil, err
	}
	return &day, nil
}

func (s *FileStore) AppendTrade(ctx context.Context, trade *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.loadTrades()
	if err != nil {
		return err
	}
	trades = append(trades, *trade)
	return s.writeJSON(tradesLogFile, trades)
}

func (s *FileStore) UpdateTrade(ctx context.Context, trade *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.loadTrades()
	if err != nil {
		return err
	}
	for i := range trades {
		if trades[i].TradeID == trade.TradeID {
			trades[i] = *trade
			return s.writeJSON(tradesLogFile, trades)
		}
	}
	return ErrTradeNotFound
}

func (s *FileStore) OpenTrade(ctx context.Context, day *model.DailyPerformance, trade *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.loadTrades()
	if err != nil {
		return err
	}
	next := append(append(make([]model.TradeRecord, 0, len(trades)+1), trades...), *trade)
	return s.writeWithDay(trades, next, day)
}

func (s *FileStore) CloseTrade(ctx context.Context, day *model.DailyPerformance, trade *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.loadTrades()
	if err != nil {
		return err
	}
	next := append([]model.TradeRecord(nil), trades...)
	for i := range next {
		if next[i].TradeID == trade.TradeID {
			next[i] = *trade
			return s.writeWithDay(trades, next, day)
		}
	}
	return ErrTradeNotFound
}

// writeWithDay replaces the ledger and then the current day. When the day
// cannot be written the previous ledger is put back.
func (s *FileStore) writeWithDay(previous, next []model.TradeRecord, day *model.DailyPerformance) error {
	if err := s.writeJSON(tradesLogFile, next); err != nil {
		return err
	}
	dayErr := s.writeJSON(currentDayFile, day)
	if dayErr == nil {
		return nil
	}
	if previous == nil {
		previous = []model.TradeRecord{}
	}
	if err := s.writeJSON(tradesLogFile, previous); err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "FileStore",
			"file": tradesLogFile,
		}).WithError(err).Error("Failed to roll back trade ledger")
		return errors.Join(dayErr, err)
	}
	return dayErr
}

func (s *FileStore) FindTrade(ctx context.Context, tradeID string) (*model.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.loadTrades()
	if err != nil {
		return nil, err
	}
	for i := range trades {
		if trades[i].TradeID == tradeID {
			t := trades[i]
			return &t, nil
		}
	}
	return nil, nil
}

func (s *FileStore) ListTrades(ctx context.Context, options TradeSearchOptions) ([]model.TradeRecord, error) {
	s.mu.Lock()
	trades, err := s.loadTrades()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]model.TradeRecord, 0, len(trades))
	// newest first; ledger order breaks timestamp ties
	for i := len(trades) - 1; i >= 0; i-- {
		if options.matches(&trades[i]) {
			out = append(out, trades[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	if options.Offset > 0 {
		if options.Offset >= len(out) {
			return []model.TradeRecord{}, nil
		}
		out = out[options.Offset:]
	}
	if options.Limit > 0 && options.Limit < len(out) {
		out = out[:options.Limit]
	}
	return out, nil
}

func (s *FileStore) loadTrades() ([]model.TradeRecord, error) {
	var trades []model.TradeRecord
	if _, err := s.readJSON(tradesLogFile, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

func archiveFile(date string) string {
	return fmt.Sprintf("daily_%s.json", date)
}

func (s *FileStore) readJSON(name string, v interface{}) (bool, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (s *FileStore) writeJSON(name string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}

	logger.WithFields(map[string]interface{}{
		"repo": "FileStore",
		"file": name,
	}).Debug("State persisted")
	return nil
}
