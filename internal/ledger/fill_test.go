package ledger

import (
	"testing"

	"stratengine/internal/numeric"
	"stratengine/pkg/types"
)

func TestEntryReversalSplitsCloseAndOpenLegs(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	p := NewPosition()
	warmUp(p, cfg, 100)

	qtyLong := 2.0
	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long, Qty: &qtyLong})
	p.ProcessOrders(cfg, bar(101, 105, 99, 103, day(1)), 1)

	if !closeEnough(p.Size(), 2) {
		t.Fatalf("Size() after opening leg = %v, want 2", p.Size())
	}

	qtyShort := 5.0
	if !p.Entry(cfg, EntryParams{ID: "e2", Direction: types.Short, Qty: &qtyShort}) {
		t.Fatalf("reversing Entry() = false, want true")
	}
	p.ProcessOrders(cfg, bar(104, 106, 100, 101, day(2)), 2)

	if !closeEnough(p.Size(), -3) {
		t.Errorf("Size() after reversal = %v, want -3", p.Size())
	}
	if !closeEnough(p.AvgPrice(), 103) {
		t.Errorf("AvgPrice() after reversal = %v, want 103 (fresh opening leg's fill price)", p.AvgPrice())
	}
	if p.OpenTradesCount() != 1 {
		t.Errorf("OpenTradesCount() = %d, want 1", p.OpenTradesCount())
	}
	if p.ClosedTradesCount() != 1 {
		t.Errorf("ClosedTradesCount() = %d, want 1 (the flattened long leg)", p.ClosedTradesCount())
	}
	if !closeEnough(p.NetProfit(), 6) {
		t.Errorf("NetProfit() = %v, want 6 (2 * (103 - 100))", p.NetProfit())
	}
}

func TestReversalBlockedByAllowedDirectionStillClosesOldLeg(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Risk.AllowedDirection = "long"
	p := NewPosition()
	warmUp(p, cfg, 100)

	qtyLong := 2.0
	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long, Qty: &qtyLong})
	p.ProcessOrders(cfg, bar(101, 105, 99, 103, day(1)), 1)

	qtyShort := 5.0
	p.Entry(cfg, EntryParams{ID: "e2", Direction: types.Short, Qty: &qtyShort})
	p.ProcessOrders(cfg, bar(104, 106, 100, 101, day(2)), 2)

	// The reversal's closing leg always executes; only the fresh opening
	// leg is subject to the allowed-direction gate, so a short reopening
	// leg is rejected here and the account is left flat rather than short.
	if p.OpenTradesCount() != 0 {
		t.Errorf("OpenTradesCount() = %d, want 0 (reopening short leg should be blocked)", p.OpenTradesCount())
	}
	if p.ClosedTradesCount() != 1 {
		t.Errorf("ClosedTradesCount() = %d, want 1 (the long leg still flattens)", p.ClosedTradesCount())
	}
	if !closeEnough(p.Size(), 0) {
		t.Errorf("Size() = %v, want 0", p.Size())
	}
}

func TestCommissionPercentChargedOnBothLegs(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Commission.Type = types.CommissionPercent
	cfg.Commission.Value = 1
	cfg.Quantity.DefaultValue = 2
	p := NewPosition()
	warmUp(p, cfg, 100)

	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long})
	p.ProcessOrders(cfg, bar(101, 103, 99, 102, day(1)), 1)
	if !closeEnough(p.NetProfit(), -2) {
		t.Fatalf("NetProfit() after open = %v, want -2 (1%% of 2*100)", p.NetProfit())
	}

	p.CloseAll(cfg, "flat", false, types.Bar{})
	p.ProcessOrders(cfg, bar(103, 105, 101, 104, day(2)), 2)

	// entry commission -2, exit fills at prevC=102: profit=2*(102-100)=4,
	// exit commission = 1% * 2 * 102 = 2.04, net = -2 + 4 - 2.04 = -0.04
	if !closeEnough(p.NetProfit(), -0.04) {
		t.Errorf("NetProfit() = %v, want -0.04", p.NetProfit())
	}
}

func TestCommissionCashPerOrderSplitsProportionallyAcrossClosedLegs(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Commission.Type = types.CommissionCashPerOrder
	cfg.Commission.Value = 9
	cfg.Capital.Pyramiding = 2
	p := NewPosition()
	warmUp(p, cfg, 100)

	qty1 := 1.0
	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long, Qty: &qty1})
	p.ProcessOrders(cfg, bar(101, 102, 99, 101, day(1)), 1)

	qty2 := 2.0
	p.Entry(cfg, EntryParams{ID: "e2", Direction: types.Long, Qty: &qty2})
	p.ProcessOrders(cfg, bar(102, 103, 101, 103, day(2)), 2)

	p.CloseAll(cfg, "flat", false, types.Bar{})
	p.ProcessOrders(cfg, bar(104, 106, 103, 105, day(3)), 3)

	if p.ClosedTradesCount() != 2 {
		t.Fatalf("ClosedTradesCount() = %d, want 2", p.ClosedTradesCount())
	}
	if !closeEnough(p.NetProfit(), -20) {
		t.Errorf("NetProfit() = %v, want -20 (3 + 4 - 9 per entry - 9 flat exit fee)", p.NetProfit())
	}

	var totalCommission float64
	for _, tr := range p.ClosedTrades() {
		totalCommission += tr.Commission
	}
	if !closeEnough(totalCommission, 27) {
		t.Errorf("sum of closed trade commissions = %v, want 27 (two entry fees plus the flat exit fee, fully allocated)", totalCommission)
	}
}

func TestFIFOPartialCloseRetainsRemainingLegAtItsOwnEntryPrice(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Capital.Pyramiding = 2
	p := NewPosition()
	warmUp(p, cfg, 100)

	qtyA := 2.0
	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long, Qty: &qtyA})
	p.ProcessOrders(cfg, bar(101, 106, 99, 105, day(1)), 1)

	qtyB := 3.0
	p.Entry(cfg, EntryParams{ID: "e2", Direction: types.Long, Qty: &qtyB})
	p.ProcessOrders(cfg, bar(106, 108, 104, 107, day(2)), 2)

	if !closeEnough(p.Size(), 5) {
		t.Fatalf("Size() before partial close = %v, want 5", p.Size())
	}

	qtyOut := 3.0
	p.Exit(cfg, ExitParams{ID: "partial", Qty: &qtyOut})
	p.ProcessOrders(cfg, bar(108, 110, 106, 109, day(3)), 3)

	if p.OpenTradesCount() != 1 {
		t.Fatalf("OpenTradesCount() = %d, want 1", p.OpenTradesCount())
	}
	if !closeEnough(p.Size(), 2) {
		t.Errorf("Size() = %v, want 2 (2 contracts retained from the second, partially-closed leg)", p.Size())
	}
	if !closeEnough(p.AvgPrice(), 105) {
		t.Errorf("AvgPrice() = %v, want 105 (the retained leg's own entry price, not a blend)", p.AvgPrice())
	}
	if p.ClosedTradesCount() != 2 {
		t.Errorf("ClosedTradesCount() = %d, want 2 (full first leg + clone of the partial second leg)", p.ClosedTradesCount())
	}
	if !closeEnough(p.NetProfit(), 16) {
		t.Errorf("NetProfit() = %v, want 16 (2*(107-100) + 1*(107-105))", p.NetProfit())
	}
}

func TestOcaCancelRemovesSiblingOnFill(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	p := NewPosition()
	warmUp(p, cfg, 100)

	p.Entry(cfg, EntryParams{ID: "e1", Direction: types.Long})
	p.ProcessOrders(cfg, bar(101, 103, 99, 101, day(1)), 1)

	p.Exit(cfg, ExitParams{ID: "tp", Limit: numeric.Ptr(110), OcaName: "bracket", OcaType: types.OcaCancel})
	p.Exit(cfg, ExitParams{ID: "sl", Stop: numeric.Ptr(95), OcaName: "bracket", OcaType: types.OcaCancel})

	p.ProcessOrders(cfg, bar(101, 112, 99, 108, day(2)), 2)

	if p.ClosedTradesCount() != 1 {
		t.Fatalf("ClosedTradesCount() = %d, want 1", p.ClosedTradesCount())
	}
	if !closeEnough(p.NetProfit(), 10) {
		t.Errorf("NetProfit() = %v, want 10 (1 * (110 - 100))", p.NetProfit())
	}
	if p.Cancel("sl") {
		t.Errorf("Cancel(\"sl\") = true, want false (its OCA sibling should already have removed it)")
	}
}
