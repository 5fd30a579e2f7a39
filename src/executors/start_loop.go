package executors

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
)

// Iterator is one pass of the trading loop.
type Iterator interface {
	RunIteration(ctx context.Context) error
}

// StartLoop runs an iteration right away and then once per period until ctx
// is cancelled. Iteration errors are logged and the loop carries on, except
// for ErrEmergencyStop which is returned.
func StartLoop(ctx context.Context, bot Iterator, period time.Duration) error {
	if period <= 0 {
		return errors.New("loop period must be positive")
	}

	ticker := time.NewTicker(period) // Set up a ticker that fires periodically
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			logger.Info("loop stopped")
			return nil
		}

		if err := bot.RunIteration(ctx); err != nil {
			if errors.Is(err, ErrEmergencyStop) {
				logger.WithError(err).Error("Emergency stop, leaving trading loop")
				return err
			}
			logger.WithError(err).Error("Trading iteration failed")
		}

		select {
		case <-ctx.Done():
			logger.Info("loop stopped")
			return nil
		case <-ticker.C:
			logger.Debug("loop tick")
		}
	}
}
