package script

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"stratengine/internal/config"
	"stratengine/internal/ledger"
	"stratengine/pkg/types"
)

type sliceFeed struct {
	bars []types.Bar
	pos  int
}

func (f *sliceFeed) Next() (types.Bar, bool) {
	if f.pos >= len(f.bars) {
		return types.Bar{}, false
	}
	b := f.bars[f.pos]
	f.pos++
	return b, true
}

func testConfig() *config.Config {
	return &config.Config{
		Symbol:   config.SymbolConfig{MinTick: 0.01, PointValue: 1, SizeRoundFactor: 1},
		Capital:  config.CapitalConfig{InitialCapital: 10000, Pyramiding: 1},
		Quantity: config.QuantityConfig{DefaultType: types.QtyFixed, DefaultValue: 1},
	}
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bar(t time.Time, o, h, l, c float64) types.Bar {
	return types.Bar{Time: t, Open: o, High: h, Low: l, Close: c}
}

func TestRunnerEntersAndClosesAcrossBars(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feed := &sliceFeed{bars: []types.Bar{
		bar(start, 100, 101, 99, 100),
		bar(start.Add(time.Hour), 100, 102, 99, 101),
		bar(start.Add(2*time.Hour), 101, 103, 100, 102),
	}}

	runner := New(cfg, silentLogger())

	strategy := func(ctx *Context) {
		switch ctx.BarIndex {
		case 0:
			ctx.Entry(ledger.EntryParams{ID: "e1", Direction: types.Long})
		case 2:
			ctx.CloseAll("done", false)
		}
	}

	var barsSeen int
	onBar := func(r *Runner, b types.Bar) { barsSeen++ }

	if err := runner.Run(feed, strategy, onBar); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if barsSeen != 3 {
		t.Errorf("barsSeen = %d, want 3", barsSeen)
	}
	if runner.Position().ClosedTradesCount() != 1 {
		t.Errorf("ClosedTradesCount() = %d, want 1", runner.Position().ClosedTradesCount())
	}
	if runner.Position().OpenTradesCount() != 0 {
		t.Errorf("OpenTradesCount() = %d, want 0", runner.Position().OpenTradesCount())
	}
	if runner.BarIndex() != 2 {
		t.Errorf("BarIndex() = %d, want 2", runner.BarIndex())
	}
}

func TestRunnerRejectsInvertedBar(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	feed := &sliceFeed{bars: []types.Bar{
		bar(time.Now(), 100, 90, 95, 92), // high < low
	}}
	runner := New(cfg, silentLogger())

	err := runner.Run(feed, func(ctx *Context) {}, nil)
	if err == nil {
		t.Error("Run() with inverted bar = nil error, want error")
	}
}

func TestContextEntryRespectsPyramiding(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Capital.Pyramiding = 1
	start := time.Now()
	feed := &sliceFeed{bars: []types.Bar{
		bar(start, 100, 101, 99, 100),
		bar(start.Add(time.Hour), 100, 101, 99, 100),
	}}
	runner := New(cfg, silentLogger())

	strategy := func(ctx *Context) {
		ctx.Entry(ledger.EntryParams{ID: "again", Direction: types.Long})
	}

	if err := runner.Run(feed, strategy, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runner.Position().OpenTradesCount() != 1 {
		t.Errorf("OpenTradesCount() = %d, want 1 (pyramiding cap should block the second entry)", runner.Position().OpenTradesCount())
	}
}
