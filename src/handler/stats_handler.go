package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"perptrader/src/model"
	"perptrader/src/repository"
)

const dateLayout = "2006-01-02"

type dayReader interface {
	LoadCurrentDay(ctx context.Context) (*model.DailyPerformance, error)
	FindArchivedDay(ctx context.Context, date string) (*model.DailyPerformance, error)
}

type tradeSearcher interface {
	ListTrades(ctx context.Context, options repository.TradeSearchOptions) ([]model.TradeRecord, error)
}

// DailyStatsHandler returns the current trading day, or an archived one when
// ?date=YYYY-MM-DD names a day other than the current one.
func DailyStatsHandler(repo dayReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date != "" {
			if _, err := time.Parse(dateLayout, date); err != nil {
				http.Error(w, "invalid date", http.StatusBadRequest)
				return
			}
		}

		day, err := repo.LoadCurrentDay(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to load current day")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if date != "" && (day == nil || day.Date != date) {
			day, err = repo.FindArchivedDay(r.Context(), date)
			if err != nil {
				logger.WithError(err).WithField("date", date).Error("failed to load archived day")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}
		if day == nil {
			http.Error(w, "no trading day recorded", http.StatusNotFound)
			return
		}

		writeJSON(w, day.Stats())
	}
}

// SearchTradesHandler lists ledger entries, newest first. Supports pagination
// and filters (date, asset, status).
func SearchTradesHandler(repo tradeSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		options := repository.TradeSearchOptions{
			Asset: strings.ToUpper(q.Get("asset")),
		}

		if date := q.Get("date"); date != "" {
			if _, err := time.Parse(dateLayout, date); err != nil {
				http.Error(w, "invalid date", http.StatusBadRequest)
				return
			}
			options.Date = date
		}

		if status := strings.ToUpper(q.Get("status")); status != "" {
			switch status {
			case model.TradeStatusOpen, model.TradeStatusWin, model.TradeStatusLoss:
				options.Status = status
			default:
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
		}

		page := 1
		if pageParam := q.Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 50
		if sizeParam := q.Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 || parsedSize > 500 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsedSize
		}
		options.Limit = pageSize
		options.Offset = (page - 1) * pageSize

		trades, err := repo.ListTrades(r.Context(), options)
		if err != nil {
			logger.WithError(err).Error("failed to search trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if trades == nil {
			trades = []model.TradeRecord{}
		}

		writeJSON(w, trades)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
