package report

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gorm.io/gorm"

	"perptrader/cmd/trader"
	"perptrader/src/database"
	"perptrader/src/model"
	"perptrader/src/performance"
	"perptrader/src/repository"
	"perptrader/src/server"
)

// Report prints the daily stats and the latest ledger entries.
type Report struct {
	Out   io.Writer
	Date  string
	Limit int
}

func (r *Report) Start() error {
	perfConfig := performance.GetConfig()

	var db *gorm.DB
	if perfConfig.Store == "db" {
		if err := database.InitReadOnlyDB(); err != nil {
			return err
		}
		db = database.ReadOnlyDB
	}
	store, err := trader.OpenStore(perfConfig, db)
	if err != nil {
		return err
	}

	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	return Render(context.Background(), out, store, r.Date, r.Limit)
}

// Render writes the stats table for date (current day when empty) followed by
// up to limit trades of that day.
func Render(ctx context.Context, w io.Writer, store server.StatusStore, date string, limit int) error {
	day, err := store.LoadCurrentDay(ctx)
	if err != nil {
		return fmt.Errorf("load current day: %w", err)
	}
	if date != "" && (day == nil || day.Date != date) {
		if day, err = store.FindArchivedDay(ctx, date); err != nil {
			return fmt.Errorf("load %s: %w", date, err)
		}
	}
	if day == nil {
		_, err := fmt.Fprintln(w, "No trading day recorded")
		return err
	}

	renderStats(w, day.Stats())

	if limit <= 0 {
		limit = 20
	}
	trades, err := store.ListTrades(ctx, repository.TradeSearchOptions{Date: day.Date, Limit: limit})
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	renderTrades(w, trades)
	return nil
}

func renderStats(w io.Writer, s model.DailyStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("DAILY PERFORMANCE " + s.Date)
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Starting balance", "$" + s.StartingBalance.StringFixed(2)},
		{"Current balance", "$" + s.CurrentBalance.StringFixed(2)},
		{"Daily P&L", fmt.Sprintf("$%s (%+.2f%%)", s.DailyPnL.StringFixed(2), s.DailyPnLPct)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Trades", s.TradesToday},
		{"Wins / Losses", fmt.Sprintf("%d / %d", s.WinsToday, s.LossesToday)},
		{"Win rate", fmt.Sprintf("%.1f%%", s.WinRate)},
		{"Consecutive losses", s.ConsecutiveLosses},
	})

	status := "ACTIVE"
	if s.TradingHalted {
		status = "HALTED: " + s.HaltReason
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Trading", status})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, Align: text.AlignLeft},
	})
	t.Render()
}

func renderTrades(w io.Writer, trades []model.TradeRecord) {
	if len(trades) == 0 {
		fmt.Fprintln(w, "No trades")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("TRADES")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Asset", "Side", "Entry", "Size", "Exit", "P&L", "Status"})

	for _, tr := range trades {
		exit, pnl := "-", "-"
		if tr.ExitPrice.Valid {
			exit = tr.ExitPrice.Decimal.String()
		}
		if tr.PnL.Valid {
			pnl = tr.PnL.Decimal.StringFixed(2)
			if tr.PnLPct != nil {
				pnl += fmt.Sprintf(" (%+.2f%%)", *tr.PnLPct)
			}
		}
		t.AppendRow(table.Row{
			tr.Timestamp.UTC().Format("15:04:05"),
			tr.Asset,
			tr.Side,
			tr.EntryPrice.String(),
			tr.Size.String(),
			exit,
			pnl,
			tr.Status,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}
