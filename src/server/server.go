package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"

	"perptrader/src/handler"
	"perptrader/src/model"
	"perptrader/src/monitoring"
	"perptrader/src/repository"
)

// StatusStore is the read side of the performance store.
type StatusStore interface {
	LoadCurrentDay(ctx context.Context) (*model.DailyPerformance, error)
	FindArchivedDay(ctx context.Context, date string) (*model.DailyPerformance, error)
	ListTrades(ctx context.Context, options repository.TradeSearchOptions) ([]model.TradeRecord, error)
}

func NewRouter(store StatusStore) http.Handler {
	r := chi.NewRouter()
	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})
	r.Handle("/metrics", monitoring.Handler())

	r.Get("/stats", handler.DailyStatsHandler(store))
	r.Get("/trades", handler.SearchTradesHandler(store))

	return r
}

// StartServer serves the status API until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, port string, store StatusStore) error {
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(store),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server crashed")
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
