// Package script hosts a strategy function and drives it bar by bar against
// a marketdata.Feed. The loop is synchronous and bar-driven rather than
// event-driven, since a backtest has no live clock to race against.
package script

import (
	"fmt"
	"log/slog"
	"time"

	"stratengine/internal/config"
	"stratengine/internal/ledger"
	"stratengine/internal/marketdata"
	"stratengine/pkg/types"
)

// Strategy is called once per bar, after the bar's open but before its
// high/low/close are known to the ledger. It sees the bar that is about to
// be processed and the position as it stood at the close of the previous
// bar, and places through ctx the orders it wants queued for this bar.
type Strategy func(ctx *Context)

// Context is the single argument passed to a Strategy call. It exposes the
// current bar and the running position, plus the small set of order verbs a
// strategy needs: Entry, Exit, Close, CloseAll, Cancel, CancelAll.
type Context struct {
	Bar      types.Bar
	BarIndex int
	Position *ledger.Position
	Config   *config.Config
}

// Entry places or adds to a position. See ledger.Position.Entry.
func (c *Context) Entry(p ledger.EntryParams) bool {
	return c.Position.Entry(c.Config, p)
}

// Exit places a protective/target order against an open entry. See
// ledger.Position.Exit.
func (c *Context) Exit(p ledger.ExitParams) bool {
	return c.Position.Exit(c.Config, p)
}

// Close flattens (all or part of) a single named entry's open trade. By
// default the fill is queued for the next bar; immediate fills it against
// the current bar's own (c, h, l) instead.
func (c *Context) Close(entryID string, qty *float64, comment string, immediate bool) bool {
	return c.Position.Close(c.Config, entryID, qty, comment, immediate, c.Bar)
}

// CloseAll flattens the whole position. By default the fill is queued for
// the next bar; immediate fills it against the current bar's own (c, h, l)
// instead.
func (c *Context) CloseAll(comment string, immediate bool) bool {
	return c.Position.CloseAll(c.Config, comment, immediate, c.Bar)
}

// Cancel removes a single pending order by ID.
func (c *Context) Cancel(id string) bool {
	return c.Position.Cancel(id)
}

// CancelAll removes every pending entry and exit order.
func (c *Context) CancelAll() {
	c.Position.CancelAll()
}

// Runner drives a Strategy across a Feed, applying the resulting orders to a
// Position bar by bar.
type Runner struct {
	cfg      *config.Config
	position *ledger.Position
	logger   *slog.Logger

	barIndex int
	barTime  time.Time
}

// New creates a Runner against cfg, starting from a flat position.
func New(cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		position: ledger.NewPositionWithLogger(logger),
		logger:   logger.With("component", "script-runner"),
	}
}

// Position returns the ledger position the runner is driving, for reporting
// once Run completes.
func (r *Runner) Position() *ledger.Position {
	return r.position
}

// Config returns the host config the runner was built with.
func (r *Runner) Config() *config.Config {
	return r.cfg
}

// BarIndex returns the index of the most recently processed bar.
func (r *Runner) BarIndex() int {
	return r.barIndex
}

// BarTime returns the timestamp of the most recently processed bar.
func (r *Runner) BarTime() time.Time {
	return r.barTime
}

// OnBar, if passed to Run, fires after each bar's orders are
// settled — the hook point the CLI uses to push metrics and dashboard
// events without the runner importing either package.
type OnBar func(r *Runner, bar types.Bar)

// Run walks feed to completion, invoking strategy once per bar and then
// settling that bar's orders against the ledger. onBar may be nil.
func (r *Runner) Run(feed marketdata.Feed, strategy Strategy, onBar OnBar) error {
	barIndex := 0
	for {
		bar, ok := feed.Next()
		if !ok {
			break
		}
		if bar.High < bar.Low {
			return fmt.Errorf("bar %d: high %v is below low %v", barIndex, bar.High, bar.Low)
		}

		strategy(&Context{
			Bar:      bar,
			BarIndex: barIndex,
			Position: r.position,
			Config:   r.cfg,
		})

		r.position.ProcessOrders(r.cfg, bar, barIndex)
		r.barIndex = barIndex
		r.barTime = bar.Time
		r.logger.Debug("bar processed",
			"index", barIndex,
			"time", bar.Time,
			"close", bar.Close,
			"net_profit", r.position.NetProfit(),
			"open_trades", r.position.OpenTradesCount(),
		)
		if onBar != nil {
			onBar(r, bar)
		}
		barIndex++
	}
	return nil
}
