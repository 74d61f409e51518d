// Package ledger implements the order lifecycle and position-accounting
// state machine: pending entry/exit orders, open and closed trades, the
// two-pass per-bar matching routine, and the strategy-facing API that
// issues orders against it. It is pure arithmetic and owns no I/O — every
// method is deterministic given its inputs, matching the bar-driven,
// single-threaded execution model it is built for.
package ledger

import (
	"log/slog"
	"math"
	"time"

	"stratengine/internal/config"
	"stratengine/internal/risk"
)

// Position is the ledger singleton: the pending order maps, the open and
// closed trade history, running counters, and equity extrema. A backtest
// owns exactly one Position for the instrument it is trading.
type Position struct {
	entryOrders *orderedOrders
	exitOrders  *orderedOrders

	openTrades []*Trade
	closed     *tradeRing
	newClosed  []*Trade

	winTrades, evenTrades, lossTrades int

	netProfit, openProfit, grossProfit, grossLoss float64
	openCommission                                float64
	cumProfit                                     float64

	size, sign, avgPrice float64

	entryEquity, maxEquity, minEquity float64
	drawdownSumm, runupSumm           float64
	maxDrawdown, maxRunup             float64

	o, h, l, c, prevC float64
	barIndex          int
	barTime           time.Time

	riskState risk.State
	logger    *slog.Logger
}

// NewPosition returns an empty, flat Position ready to process bars,
// logging any risk-gate trips through the default logger.
func NewPosition() *Position {
	return NewPositionWithLogger(slog.Default())
}

// NewPositionWithLogger is like NewPosition but routes risk-gate trip
// warnings through logger instead of the default one. script.Runner uses
// this so a halt shows up alongside the rest of a run's log lines.
func NewPositionWithLogger(logger *slog.Logger) *Position {
	return &Position{
		entryOrders: newOrderedOrders(),
		exitOrders:  newOrderedOrders(),
		closed:      newTradeRing(),
		maxEquity:   math.Inf(-1),
		minEquity:   math.Inf(1),
		logger:      logger.With("component", "risk-gate"),
	}
}

// Equity returns the account's current mark-to-market equity.
func (p *Position) Equity(cfg *config.Config) float64 {
	return cfg.Capital.InitialCapital + p.netProfit + p.openProfit
}

// --- read-only properties for reporting/strategy consumption ---

func (p *Position) NetProfit() float64    { return p.netProfit }
func (p *Position) OpenProfit() float64   { return p.openProfit }
func (p *Position) GrossProfit() float64  { return p.grossProfit }
func (p *Position) GrossLoss() float64    { return p.grossLoss + p.openCommission }
func (p *Position) WinTrades() int        { return p.winTrades }
func (p *Position) LossTrades() int       { return p.lossTrades }
func (p *Position) EvenTrades() int       { return p.evenTrades }
func (p *Position) MaxDrawdown() float64  { return p.maxDrawdown }
func (p *Position) MaxRunup() float64     { return p.maxRunup }
func (p *Position) Size() float64         { return p.size }
func (p *Position) AvgPrice() float64     { return p.avgPrice }
func (p *Position) MaxEquity() float64    { return p.maxEquity }
func (p *Position) MinEquity() float64    { return p.minEquity }
func (p *Position) ClosedTradesCount() int { return p.closed.Total() }
func (p *Position) OpenTradesCount() int  { return len(p.openTrades) }

// ClosedTrades returns every retained closed trade, oldest first, bounded
// to the most recent closedTradesCap.
func (p *Position) ClosedTrades() []*Trade { return p.closed.All() }

// OpenTrades returns a snapshot of the currently open trades.
func (p *Position) OpenTrades() []*Trade {
	out := make([]*Trade, len(p.openTrades))
	copy(out, p.openTrades)
	return out
}

// EventCount is the number of trades closed so far (including any evicted
// from the closed-trades ring) plus the number of currently open trades.
func (p *Position) EventCount() int {
	return p.closed.Total() + len(p.openTrades)
}

func signOf(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (p *Position) riskCfg(cfg *config.Config) risk.Config {
	return risk.Config{
		AllowedDirection:        cfg.AllowedDirection(),
		MaxPositionSize:         cfg.Risk.MaxPositionSize,
		MaxIntradayFilledOrders: cfg.Risk.MaxIntradayFilledOrders,
		MaxConsLossDays:         cfg.Risk.MaxConsLossDays,
		MaxDrawdownValue:        cfg.Risk.MaxDrawdownValue,
		MaxDrawdownType:         cfg.Risk.MaxDrawdownType,
		MaxIntradayLossValue:    cfg.Risk.MaxIntradayLossValue,
		MaxIntradayLossType:     cfg.Risk.MaxIntradayLossType,
	}
}

// recomputeFromOpenTrades recalculates position size, sign, and the
// volume-weighted average entry price from the current open-trades list.
// Called after every fill that adds or removes an open trade.
func (p *Position) recomputeFromOpenTrades() {
	if len(p.openTrades) == 0 {
		p.size, p.sign, p.avgPrice = 0, 0, 0
		return
	}
	var sumSize, sumNotional float64
	for _, t := range p.openTrades {
		sumSize += t.Size
		sumNotional += t.Size * t.EntryPrice
	}
	p.size = sumSize
	p.sign = signOf(sumSize)
	if sumSize != 0 {
		p.avgPrice = sumNotional / sumSize
	}
}

// sizeForSign returns the total open size currently held on the given
// side (all open trades share the position's sign in this engine, so this
// is either 0 or abs(p.size)).
func (p *Position) sizeForSign(sign float64) float64 {
	if sign == 0 {
		return 0
	}
	var total float64
	for _, t := range p.openTrades {
		if t.Sign == sign {
			total += math.Abs(t.Size)
		}
	}
	return total
}
