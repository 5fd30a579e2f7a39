package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perptrader_trades_total",
			Help: "Orders filled by the bot",
		},
		[]string{"asset", "side", "kind"},
	)

	tradeNotional = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perptrader_trade_notional_usd",
			Help:    "Distribution of entry notionals",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"asset"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perptrader_rejections_total",
			Help: "Decisions rejected before execution, by gate",
		},
		[]string{"gate"},
	)

	haltsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perptrader_halts_total",
			Help: "Trading halts and emergency stops",
		},
		[]string{"reason"},
	)

	equity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "perptrader_equity_usd",
		Help: "Last observed account equity",
	})

	dailyPnLPct = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "perptrader_daily_pnl_pct",
		Help: "Daily P&L in percent of the starting balance",
	})

	openPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "perptrader_open_positions",
		Help: "Positions tracked by the bot",
	})

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perptrader_errors_total",
			Help: "Errors raised inside the trading loop",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradeNotional)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(haltsTotal)
	prometheus.MustRegister(equity)
	prometheus.MustRegister(dailyPnLPct)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(errorsTotal)
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTrade counts a fill. kind is entry, take_profit, stop_loss, trailing, time_exit or close.
func RecordTrade(asset, side, kind string, notional float64) {
	tradesTotal.WithLabelValues(asset, side, kind).Inc()
	if kind == "entry" {
		tradeNotional.WithLabelValues(asset).Observe(notional)
	}
}

func RecordRejection(gate string) {
	rejectionsTotal.WithLabelValues(gate).Inc()
}

func RecordHalt(reason string) {
	haltsTotal.WithLabelValues(reason).Inc()
}

func UpdateEquity(value float64) {
	equity.Set(value)
}

func UpdateDailyPnLPct(pct float64) {
	dailyPnLPct.Set(pct)
}

func UpdateOpenPositions(n int) {
	openPositions.Set(float64(n))
}

func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
