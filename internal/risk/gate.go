// Package risk evaluates the position-level risk limits a backtest config
// can set: allowed trade direction, a hard trading halt, intraday/cumulative
// drawdown caps, an intraday filled-order cap, and a max position size.
//
// The original engine this package is adapted from (internal/risk.Manager)
// ran as its own goroutine, polling position reports over a channel and
// firing a kill switch asynchronously. A bar-driven backtest has no such
// concurrency: every risk decision has to be known synchronously, inside
// the same call that is about to fill an order, because the fill itself
// depends on whether risk allows it. Gate keeps the same concern — trip a
// limit, block or shrink the trade — but as pure functions the ledger calls
// inline: from Position.Entry (direction, size), from FillOrder (halt,
// intraday order cap) and once per bar from ProcessOrders (day roll, equity
// caps), rather than routing through a side channel. RollDay and
// CheckEquity take a *slog.Logger and warn when a limit actually trips,
// matching how the original risk manager logs a kill switch engaging.
package risk

import (
	"log/slog"

	"stratengine/pkg/types"
)

// Config is the set of risk limits a backtest run is configured with. A
// zero value for any *Value/*Days field means that limit is disabled.
type Config struct {
	// AllowedDirection restricts new positions to one side. It is checked
	// for an entry placed from flat and for a reversal's opening leg; a
	// reversal's closing leg is never blocked by it.
	AllowedDirection *types.Direction

	// MaxPositionSize clamps the absolute size of each entry order; zero
	// disables the clamp.
	MaxPositionSize float64

	// MaxIntradayFilledOrders caps how many orders may fill within one
	// trading day (UTC calendar day of the bar time); zero disables it.
	MaxIntradayFilledOrders int

	// MaxConsLossDays halts trading after this many consecutive
	// calendar days close with the day's equity down from the day's
	// open; zero disables it.
	MaxConsLossDays int

	// MaxDrawdownValue/MaxDrawdownType bound cumulative drawdown from the
	// equity high-water mark, either in cash or as a percentage of that
	// high-water mark. Zero value disables the cap.
	MaxDrawdownValue float64
	MaxDrawdownType  types.QtyType

	// MaxIntradayLossValue/MaxIntradayLossType bound the loss within a
	// single trading day, in cash or as a percent of the day's opening
	// equity. Zero value disables the cap.
	MaxIntradayLossValue float64
	MaxIntradayLossType  types.QtyType
}

// State is the risk gate's running state, owned by the ledger (mirroring
// how the original keeps risk_* fields directly on Position rather than in
// a separate object) and threaded through every Gate call.
type State struct {
	HaltTrading bool

	currentDay      int64 // day index (days since epoch) of the bar last seen
	dayOpenEquity   float64
	consLossDays    int
	intradayFilled  int
	haveSeenDay     bool
}

// RollDay advances State to the given day index (days since epoch, e.g.
// time.Time.Unix()/86400), resetting the intraday order counter and
// re-anchoring the day's opening equity. It also evaluates the prior day's
// close against MaxConsLossDays, since that decision can only be made once
// the day has fully closed. equity is the ledger's current equity.
func RollDay(cfg Config, st *State, dayIndex int64, equity float64, logger *slog.Logger) {
	if st.haveSeenDay && dayIndex == st.currentDay {
		return
	}
	if st.haveSeenDay {
		if equity < st.dayOpenEquity {
			st.consLossDays++
		} else {
			st.consLossDays = 0
		}
		if cfg.MaxConsLossDays > 0 && st.consLossDays >= cfg.MaxConsLossDays {
			wasHalted := st.HaltTrading
			st.HaltTrading = true
			if !wasHalted && logger != nil {
				logger.Warn("risk halt: consecutive loss days breached",
					"cons_loss_days", st.consLossDays,
					"max_cons_loss_days", cfg.MaxConsLossDays,
				)
			}
		}
	}
	st.currentDay = dayIndex
	st.dayOpenEquity = equity
	st.intradayFilled = 0
	st.haveSeenDay = true
}

// AllowsNewPosition reports whether opening a position in the given
// direction is permitted. Position.Entry checks it for an entry placed from
// flat, and the ledger's reversal split checks it for the reversal's
// opening leg; the reversal's closing leg always executes.
func AllowsNewPosition(cfg Config, dir types.Direction) bool {
	if cfg.AllowedDirection == nil {
		return true
	}
	return *cfg.AllowedDirection == dir
}

// ClampSize bounds requested to MaxPositionSize, if set, returning the
// clamped absolute size.
func ClampSize(cfg Config, requested float64) float64 {
	if cfg.MaxPositionSize <= 0 {
		return requested
	}
	if requested > cfg.MaxPositionSize {
		return cfg.MaxPositionSize
	}
	return requested
}

// AllowsFill reports whether another order is permitted to fill this bar
// given the intraday filled-order cap and any standing trading halt. It
// does not itself mutate State — callers increment the counter via
// RecordFill once the fill is known to have happened.
func AllowsFill(cfg Config, st State) bool {
	if st.HaltTrading {
		return false
	}
	if cfg.MaxIntradayFilledOrders > 0 && st.intradayFilled >= cfg.MaxIntradayFilledOrders {
		return false
	}
	return true
}

// RecordFill increments the intraday filled-order counter.
func RecordFill(st *State) { st.intradayFilled++ }

// CheckEquity evaluates the cumulative drawdown and intraday loss caps
// against the ledger's current equity and high-water mark, tripping
// HaltTrading if either is breached. It is called once per bar after the
// ledger updates its own max_equity tracking.
func CheckEquity(cfg Config, st *State, equity, maxEquity float64, logger *slog.Logger) {
	if st.HaltTrading {
		return
	}
	if cfg.MaxDrawdownValue > 0 && maxEquity > 0 {
		dd := maxEquity - equity
		switch cfg.MaxDrawdownType {
		case types.QtyPercentOfEquity:
			if dd/maxEquity*100 >= cfg.MaxDrawdownValue {
				st.HaltTrading = true
				logTrip(logger, "max drawdown breached", "drawdown", dd, "max_drawdown_pct", cfg.MaxDrawdownValue)
			}
		default:
			if dd >= cfg.MaxDrawdownValue {
				st.HaltTrading = true
				logTrip(logger, "max drawdown breached", "drawdown", dd, "max_drawdown_value", cfg.MaxDrawdownValue)
			}
		}
	}
	if st.HaltTrading || cfg.MaxIntradayLossValue <= 0 || !st.haveSeenDay {
		return
	}
	loss := st.dayOpenEquity - equity
	switch cfg.MaxIntradayLossType {
	case types.QtyPercentOfEquity:
		if st.dayOpenEquity > 0 && loss/st.dayOpenEquity*100 >= cfg.MaxIntradayLossValue {
			st.HaltTrading = true
			logTrip(logger, "max intraday loss breached", "loss", loss, "max_intraday_loss_pct", cfg.MaxIntradayLossValue)
		}
	default:
		if loss >= cfg.MaxIntradayLossValue {
			st.HaltTrading = true
			logTrip(logger, "max intraday loss breached", "loss", loss, "max_intraday_loss_value", cfg.MaxIntradayLossValue)
		}
	}
}

func logTrip(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}
