package ledger

import "time"

// Trade is one open or closed leg of a position: the record from one entry
// fill through to the fill (or partial fills) that closed it. A partial
// close splits the originating Trade in two: a clone carrying the closed
// share is appended to the closed-trades history, while this Trade stays
// open as the retained share, with its cost basis, commission, and
// drawdown/run-up rescaled to its smaller size.
type Trade struct {
	Size         float64 // signed: positive = long leg, negative = short leg
	Sign         float64
	EntryID      string
	EntryBarIndex int
	EntryTime    time.Time
	EntryPrice   float64
	EntryComment string
	EntryEquity  float64 // account equity just before this leg opened, before its entry commission was debited

	Closed      bool
	ExitID      string
	ExitBarIndex int
	ExitTime    time.Time
	ExitPrice   float64
	ExitComment string
	ExitEquity  float64

	Commission float64

	MaxDrawdown        float64
	MaxDrawdownPercent float64
	MaxRunup           float64
	MaxRunupPercent    float64

	Profit        float64
	ProfitPercent float64

	CumProfit        float64
	CumProfitPercent float64

	// CumMaxDrawdown and CumMaxRunup snapshot the position's running
	// worst-drawdown/best-runup as of the bar this trade closed on.
	CumMaxDrawdown float64
	CumMaxRunup    float64

	// reservedExitCommission estimates, at entry time, the commission this
	// leg will owe on exit, so Position.openCommission can report a
	// conservative "what grossloss would be if closed now" figure without
	// re-deriving it from the commission model on every bar.
	reservedExitCommission float64
}

func (t *Trade) clone() *Trade {
	c := *t
	return &c
}
