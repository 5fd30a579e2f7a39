package trader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"perptrader/src/connectors"
	"perptrader/src/database"
	"perptrader/src/decision"
	"perptrader/src/executors"
	"perptrader/src/performance"
	"perptrader/src/position"
	"perptrader/src/repository"
	"perptrader/src/risk"
	"perptrader/src/security"
	"perptrader/src/server"
)

type Trader struct{}

// OpenStore picks the performance store: JSON files under DataDir, or the
// database when PERFORMANCE_STORE=db.
func OpenStore(cfg performance.Config, db *gorm.DB) (repository.PerformanceStore, error) {
	switch cfg.Store {
	case "db":
		if db == nil {
			return nil, errors.New("PERFORMANCE_STORE=db needs a database connection")
		}
		return repository.NewPerformanceRepository().WithDB(db), nil
	case "file", "":
		fs, err := repository.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("unknown PERFORMANCE_STORE %q", cfg.Store)
	}
}

func (t *Trader) Start() error {
	config := GetConfig()
	botConfig := executors.GetConfig()
	if err := botConfig.Validate(security.GetConfig()); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	decisionConfig := decision.GetConfig()
	if decisionConfig.APIKey == "" {
		return errors.New("DEEPSEEK_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return err
	}

	perfConfig := performance.GetConfig()
	store, err := OpenStore(perfConfig, database.MainDB)
	if err != nil {
		return err
	}
	tracker, err := performance.NewTracker(ctx, perfConfig, store)
	if err != nil {
		return fmt.Errorf("load performance state: %w", err)
	}

	connConfig := connectors.GetConfig()
	connConfig.WalletAddress = botConfig.WalletAddress
	exchange := connectors.NewHyperliquidClient(connConfig)

	hcCtx, cancel := context.WithTimeout(ctx, config.HealthCheckTimeout)
	err = exchange.HealthCheck(hcCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("exchange health check: %w", err)
	}

	var prices connectors.TickerSource = exchange
	if connConfig.StreamEnabled {
		stream := connectors.NewMidStream(connConfig.HyperliquidWSURL, connConfig.StreamMaxAge)
		go stream.Run(ctx)
		prices = connectors.StreamTicker{Stream: stream, Fallback: exchange}
	}

	paper := connectors.NewPaperExecutor(prices, repository.NewOrderLogRepository(), connConfig.PaperStartingBalance)

	bot := executors.NewBot(botConfig, executors.Deps{
		Account:    paper,
		Market:     exchange,
		Prices:     prices,
		Orders:     paper,
		Decider:    decision.NewDeepSeekSource(decisionConfig),
		Risk:       risk.NewManager(risk.GetConfig(), nil),
		Positions:  position.NewManager(position.GetConfig()),
		Tracker:    tracker,
		Exceptions: repository.NewExceptionRepository(),
	})

	if srvConfig := server.GetConfig(); srvConfig.Enabled {
		go func() {
			if err := server.StartServer(ctx, srvConfig.Port, store); err != nil {
				logrus.WithError(err).Error("Status server stopped")
			}
		}()
	}

	logrus.WithFields(logrus.Fields{
		"assets":   botConfig.Assets,
		"interval": botConfig.LoopPeriod.String(),
		"store":    perfConfig.Store,
		"mode":     "paper",
	}).Info("Starting trading loop")

	return executors.StartLoop(ctx, bot, botConfig.LoopPeriod)
}
