package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSetsGauges(t *testing.T) {
	Observe(Snapshot{
		Equity:      10500,
		NetProfit:   500,
		OpenSize:    2,
		MaxDrawdown: 120,
		MaxRunup:    600,
	})

	if got := testutil.ToFloat64(equity); got != 10500 {
		t.Errorf("equity = %v, want 10500", got)
	}
	if got := testutil.ToFloat64(netProfit); got != 500 {
		t.Errorf("netProfit = %v, want 500", got)
	}
	if got := testutil.ToFloat64(openPositionSize); got != 2 {
		t.Errorf("openPositionSize = %v, want 2", got)
	}
}

func TestObserveOnlyAddsCounterDeltas(t *testing.T) {
	lastCounts.win, lastCounts.loss, lastCounts.even = 0, 0, 0

	Observe(Snapshot{WinTrades: 1})
	Observe(Snapshot{WinTrades: 1}) // unchanged, should not double count
	Observe(Snapshot{WinTrades: 3})

	got := testutil.ToFloat64(closedTrades.WithLabelValues("win"))
	if got != 3 {
		t.Errorf("win counter = %v, want 3 (cumulative count, not per-call delta)", got)
	}
}
