// Package metrics exposes Prometheus gauges and counters tracking a
// backtest run's equity curve and trade outcomes. These are updated bar
// by bar as the script runner settles orders, and served over /metrics
// by internal/api.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	equity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backtest_equity",
		Help: "Current account equity (cash plus open P&L).",
	})

	netProfit = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backtest_net_profit",
		Help: "Realized net profit across all closed trades.",
	})

	openPositionSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backtest_open_position_size",
		Help: "Signed size of the current open position.",
	})

	maxDrawdown = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backtest_max_drawdown",
		Help: "Largest peak-to-trough equity drawdown observed so far.",
	})

	maxRunup = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backtest_max_runup",
		Help: "Largest trough-to-peak equity run-up observed so far.",
	})

	closedTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_closed_trades_total",
			Help: "Closed trades by result.",
		},
		[]string{"result"}, // win|loss|even
	)

	barsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backtest_bars_processed_total",
		Help: "Number of bars the ledger has processed this run.",
	})
)

func init() {
	prometheus.MustRegister(equity, netProfit, openPositionSize)
	prometheus.MustRegister(maxDrawdown, maxRunup)
	prometheus.MustRegister(closedTrades, barsProcessed)
}

// Snapshot is the per-bar data the script runner reports after each
// ProcessOrders call.
type Snapshot struct {
	Equity      float64
	NetProfit   float64
	OpenSize    float64
	MaxDrawdown float64
	MaxRunup    float64
	WinTrades   int
	LossTrades  int
	EvenTrades  int
}

// lastCounts tracks counter totals already added to the Prometheus counters,
// since Position exposes cumulative counts but prometheus.Counter only
// supports incrementing by the delta.
var lastCounts struct {
	win, loss, even int
}

// Observe updates all gauges/counters from the latest snapshot.
func Observe(snap Snapshot) {
	equity.Set(snap.Equity)
	netProfit.Set(snap.NetProfit)
	openPositionSize.Set(snap.OpenSize)
	maxDrawdown.Set(snap.MaxDrawdown)
	maxRunup.Set(snap.MaxRunup)
	barsProcessed.Inc()

	if d := snap.WinTrades - lastCounts.win; d > 0 {
		closedTrades.WithLabelValues("win").Add(float64(d))
		lastCounts.win = snap.WinTrades
	}
	if d := snap.LossTrades - lastCounts.loss; d > 0 {
		closedTrades.WithLabelValues("loss").Add(float64(d))
		lastCounts.loss = snap.LossTrades
	}
	if d := snap.EvenTrades - lastCounts.even; d > 0 {
		closedTrades.WithLabelValues("even").Add(float64(d))
		lastCounts.even = snap.EvenTrades
	}
}
