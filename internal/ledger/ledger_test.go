package ledger

import (
	"testing"
	"time"

	"stratengine/internal/config"
	"stratengine/internal/numeric"
	"stratengine/pkg/types"
)

const testEpsilon = 1e-6

func closeEnough(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= testEpsilon
}

// testConfig returns a minimal, valid config: $1 ticks, whole-contract
// sizing, zero commission, fixed quantity of 1, no risk limits.
func testConfig() *config.Config {
	return &config.Config{
		Symbol:     config.SymbolConfig{MinTick: 1, PointValue: 1, SizeRoundFactor: 1},
		Capital:    config.CapitalConfig{InitialCapital: 10000, MarginLong: 1, MarginShort: 1, Pyramiding: 1, SlippageTicks: 0},
		Commission: config.CommissionConfig{Type: types.CommissionCashPerContract, Value: 0},
		Quantity:   config.QuantityConfig{DefaultType: types.QtyFixed, DefaultValue: 1},
	}
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func bar(o, h, l, c float64, t time.Time) types.Bar {
	return types.Bar{Time: t, Open: o, High: h, Low: l, Close: c}
}

// warmUp processes one bar with no pending orders, solely to seed prevC
// with a known value before the first real order is placed. Every scenario
// in this package starts from one, since a market order placed before any
// bar has been processed would fill at a zero previous close.
func warmUp(p *Position, cfg *config.Config, close float64) {
	p.ProcessOrders(cfg, bar(close, close+1, close-1, close, day(0)), 0)
}

func TestEntryAndCloseAllRealizesProfit(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	p := NewPosition()
	warmUp(p, cfg, 100)

	if !p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long}) {
		t.Fatalf("Entry() = false, want true")
	}
	p.ProcessOrders(cfg, bar(101, 106, 100, 104, day(1)), 1)

	if p.OpenTradesCount() != 1 {
		t.Fatalf("OpenTradesCount() = %d, want 1", p.OpenTradesCount())
	}
	if !closeEnough(p.AvgPrice(), 100) {
		t.Errorf("AvgPrice() = %v, want 100", p.AvgPrice())
	}
	if !closeEnough(p.NetProfit(), 0) {
		t.Errorf("NetProfit() after open = %v, want 0 (zero commission)", p.NetProfit())
	}
	if !closeEnough(p.OpenProfit(), 4) {
		t.Errorf("OpenProfit() = %v, want 4", p.OpenProfit())
	}

	if !p.CloseAll(cfg, "flat", false, types.Bar{}) {
		t.Fatalf("CloseAll() = false, want true")
	}
	p.ProcessOrders(cfg, bar(105, 110, 103, 108, day(2)), 2)

	if p.OpenTradesCount() != 0 {
		t.Fatalf("OpenTradesCount() after close = %d, want 0", p.OpenTradesCount())
	}
	if p.ClosedTradesCount() != 1 {
		t.Fatalf("ClosedTradesCount() = %d, want 1", p.ClosedTradesCount())
	}
	if !closeEnough(p.NetProfit(), 4) {
		t.Errorf("NetProfit() = %v, want 4", p.NetProfit())
	}
	if p.WinTrades() != 1 {
		t.Errorf("WinTrades() = %d, want 1", p.WinTrades())
	}
	if !closeEnough(p.GrossProfit(), 4) {
		t.Errorf("GrossProfit() = %v, want 4", p.GrossProfit())
	}

	trades := p.ClosedTrades()
	if len(trades) != 1 {
		t.Fatalf("ClosedTrades() has %d entries, want 1", len(trades))
	}
	tr := trades[0]
	if !closeEnough(tr.Profit, 4) {
		t.Errorf("closed trade Profit = %v, want 4", tr.Profit)
	}
	if !closeEnough(tr.Commission, 0) {
		t.Errorf("closed trade Commission = %v, want 0 (zero commission on both legs)", tr.Commission)
	}
	if !closeEnough(tr.ExitPrice, 104) {
		t.Errorf("closed trade ExitPrice = %v, want 104", tr.ExitPrice)
	}
}

func TestPyramidingCapBlocksSameDirectionEntry(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Capital.Pyramiding = 1
	p := NewPosition()
	warmUp(p, cfg, 100)

	if !p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long}) {
		t.Fatalf("first Entry() = false, want true")
	}
	p.ProcessOrders(cfg, bar(101, 103, 99, 101, day(1)), 1)
	if p.OpenTradesCount() != 1 {
		t.Fatalf("OpenTradesCount() = %d, want 1", p.OpenTradesCount())
	}

	if p.Entry(cfg, EntryParams{ID: "e2", Direction: types.Long}) {
		t.Errorf("second same-direction Entry() = true, want false (pyramiding cap)")
	}
	p.ProcessOrders(cfg, bar(102, 104, 100, 102, day(2)), 2)
	if p.OpenTradesCount() != 1 {
		t.Errorf("OpenTradesCount() after blocked entry = %d, want 1", p.OpenTradesCount())
	}
}

func TestPyramidingAllowsAdditionalLeg(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Capital.Pyramiding = 2
	p := NewPosition()
	warmUp(p, cfg, 100)

	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long})
	p.ProcessOrders(cfg, bar(101, 102, 100, 102, day(1)), 1)

	if !p.Entry(cfg, EntryParams{ID: "e2", Direction: types.Long}) {
		t.Fatalf("second Entry() under pyramiding=2 = false, want true")
	}
	p.ProcessOrders(cfg, bar(103, 104, 102, 103, day(2)), 2)

	if p.OpenTradesCount() != 2 {
		t.Fatalf("OpenTradesCount() = %d, want 2", p.OpenTradesCount())
	}
	if !closeEnough(p.Size(), 2) {
		t.Errorf("Size() = %v, want 2", p.Size())
	}
	if !closeEnough(p.AvgPrice(), 101) {
		t.Errorf("AvgPrice() = %v, want 101 ((100+102)/2)", p.AvgPrice())
	}
}

func TestExitQtyPercentPartialClose(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Quantity.DefaultValue = 2
	p := NewPosition()
	warmUp(p, cfg, 100)

	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long})
	p.ProcessOrders(cfg, bar(101, 103, 99, 102, day(1)), 1)

	half := 50.0
	if !p.Exit(cfg, ExitParams{ID: "half", QtyPercent: &half}) {
		t.Fatalf("Exit() = false, want true")
	}
	p.ProcessOrders(cfg, bar(103, 105, 101, 104, day(2)), 2)

	if p.OpenTradesCount() != 1 {
		t.Fatalf("OpenTradesCount() = %d, want 1", p.OpenTradesCount())
	}
	if !closeEnough(p.Size(), 1) {
		t.Errorf("Size() = %v, want 1", p.Size())
	}
	if p.ClosedTradesCount() != 1 {
		t.Fatalf("ClosedTradesCount() = %d, want 1", p.ClosedTradesCount())
	}
	if !closeEnough(p.NetProfit(), 2) {
		t.Errorf("NetProfit() = %v, want 2", p.NetProfit())
	}
}

func TestCancelRemovesPendingOrder(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	p := NewPosition()
	warmUp(p, cfg, 100)

	stop := numeric.Ptr(110.0)
	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long, Stop: stop})

	if !p.Cancel("e1") {
		t.Fatalf("Cancel(\"e1\") = false, want true")
	}
	if p.Cancel("e1") {
		t.Errorf("second Cancel(\"e1\") = true, want false (already removed)")
	}

	p.ProcessOrders(cfg, bar(101, 120, 100, 115, day(1)), 1)
	if p.OpenTradesCount() != 0 {
		t.Errorf("OpenTradesCount() = %d, want 0 (order was cancelled before the stop could fill)", p.OpenTradesCount())
	}
}

func TestCloseAllImmediateFillsSameBarInsteadOfNext(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	p := NewPosition()
	warmUp(p, cfg, 100)

	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long})
	p.ProcessOrders(cfg, bar(101, 103, 99, 102, day(1)), 1)
	if p.OpenTradesCount() != 1 {
		t.Fatalf("OpenTradesCount() = %d, want 1", p.OpenTradesCount())
	}

	closeBar := bar(103, 106, 102, 105, day(2))
	if !p.CloseAll(cfg, "flat now", true, closeBar) {
		t.Fatalf("CloseAll(immediate) = false, want true")
	}

	if p.OpenTradesCount() != 0 {
		t.Errorf("OpenTradesCount() right after immediate CloseAll = %d, want 0 (should not wait for ProcessOrders)", p.OpenTradesCount())
	}
	if p.ClosedTradesCount() != 1 {
		t.Fatalf("ClosedTradesCount() = %d, want 1", p.ClosedTradesCount())
	}
	if !closeEnough(p.ClosedTrades()[0].ExitPrice, 105) {
		t.Errorf("ExitPrice = %v, want 105 (closeBar's own close, not the following bar's)", p.ClosedTrades()[0].ExitPrice)
	}
}

func TestCloseImmediateClampsToRequestedQty(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Quantity.DefaultValue = 5
	p := NewPosition()
	warmUp(p, cfg, 100)

	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long})
	p.ProcessOrders(cfg, bar(101, 103, 99, 102, day(1)), 1)

	partial := 2.0
	closeBar := bar(103, 106, 102, 105, day(2))
	if !p.Close(cfg, "e1", &partial, "trim", true, closeBar) {
		t.Fatalf("Close(immediate) = false, want true")
	}

	if !closeEnough(p.Size(), 3) {
		t.Errorf("Size() = %v, want 3 (5 - 2 closed immediately)", p.Size())
	}
	if p.ClosedTradesCount() != 1 {
		t.Fatalf("ClosedTradesCount() = %d, want 1", p.ClosedTradesCount())
	}
}

func TestCancelAllClearsBothQueues(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	p := NewPosition()
	warmUp(p, cfg, 100)

	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long})
	p.ProcessOrders(cfg, bar(101, 103, 99, 102, day(1)), 1)
	p.Exit(cfg, ExitParams{ID: "tp", Limit: numeric.Ptr(200)})

	p.CancelAll()

	p.ProcessOrders(cfg, bar(103, 250, 100, 103, day(2)), 2)
	if p.OpenTradesCount() != 1 {
		t.Errorf("OpenTradesCount() = %d, want 1 (exit was cancelled before it could fill)", p.OpenTradesCount())
	}
}
