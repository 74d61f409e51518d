package ledger

import (
	"math"

	"stratengine/internal/config"
	"stratengine/internal/numeric"
	"stratengine/internal/risk"
	"stratengine/pkg/types"
)

// ProcessOrders is the per-bar matching routine: it snaps the bar's OHLC
// and the previous close onto the instrument's tick grid, walks every
// pending order twice (once per half of the bar's inferred intrabar
// trajectory, nearest-extreme-first), fills whatever qualifies, then
// updates unrealized P&L, equity extrema, the risk gate, and the
// just-closed trades' cumulative stats. Entries are evaluated before
// exits in both passes; within each pending map, orders are evaluated in
// the order they were placed.
func (p *Position) ProcessOrders(cfg *config.Config, bar types.Bar, barIndex int) {
	sym := cfg.Symbol
	mintick := sym.MinTick

	o := numeric.RoundToTick(bar.Open, mintick)
	h := numeric.RoundToTick(bar.High, mintick)
	l := numeric.RoundToTick(bar.Low, mintick)
	c := numeric.RoundToTick(bar.Close, mintick)
	prevC := numeric.RoundToTick(p.prevC, mintick)

	p.o, p.h, p.l, p.c = o, h, l, c
	p.barIndex = barIndex
	p.barTime = bar.Time

	upFirst := math.Abs(h-o) < math.Abs(l-o)

	p.drawdownSumm = 0
	p.runupSumm = 0
	p.newClosed = p.newClosed[:0]

	dayIndex := bar.Time.Unix() / 86400
	risk.RollDay(p.riskCfg(cfg), &p.riskState, dayIndex, p.Equity(cfg), p.logger)

	for _, ord := range p.pendingOrders() {
		if ord.cancelled {
			continue
		}
		p.tryFillPass(cfg, ord, o, h, l, prevC, upFirst, true)
	}

	for _, ord := range p.pendingOrders() {
		if ord.cancelled {
			continue
		}
		filled := p.tryFillPass(cfg, ord, o, h, l, prevC, upFirst, false)
		if !filled && ord.TrailTriggered && ord.Stop != nil {
			p.tryTrailClose(cfg, ord, h, l, c, upFirst)
		}
	}

	p.updateUnrealized(c)
	p.updateEquityExtrema(cfg)
	risk.CheckEquity(p.riskCfg(cfg), &p.riskState, p.Equity(cfg), p.maxEquity, p.logger)
	p.applyCumulativeStats(cfg)

	p.prevC = bar.Close
}

func (p *Position) pendingOrders() []*Order {
	e := p.entryOrders.Values()
	x := p.exitOrders.Values()
	out := make([]*Order, 0, len(e)+len(x))
	out = append(out, e...)
	out = append(out, x...)
	return out
}

// entryPriceForExit resolves the entry price a close order's tick-distance
// parameters (ProfitTicks/LossTicks/TrailPointsTicks) should be measured
// from: the specific trade's entry price if FromEntryID names one still
// open, otherwise the position's volume-weighted average price.
func (p *Position) entryPriceForExit(order *Order) (float64, bool) {
	if order.FromEntryID != nil {
		for _, t := range p.openTrades {
			if t.EntryID == *order.FromEntryID {
				return t.EntryPrice, true
			}
		}
		return 0, false
	}
	if len(p.openTrades) == 0 {
		return 0, false
	}
	return p.avgPrice, true
}

// resolveOrderPrices converts a close order's tick-distance parameters
// into absolute Limit/Stop/TrailPrice values the first time the order is
// evaluated. It is a no-op once resolved, or if the order already carries
// explicit prices instead of tick distances.
func (p *Position) resolveOrderPrices(cfg *config.Config, order *Order) {
	if order.Kind != orderClose || order.resolved {
		return
	}
	order.resolved = true

	entryPrice, ok := p.entryPriceForExit(order)
	if !ok {
		return
	}
	mintick := cfg.Symbol.MinTick

	// posSign is the sign of the position this exit is closing, i.e. the
	// opposite of the exit order's own (selling) sign.
	posSign := -1.0
	if order.Size < 0 {
		posSign = 1.0
	}

	if order.ProfitTicks != nil && order.Limit == nil {
		lim := numeric.PriceRound(entryPrice+posSign*(*order.ProfitTicks)*mintick, posSign, mintick)
		order.Limit = &lim
	}
	if order.LossTicks != nil && order.Stop == nil {
		stp := numeric.PriceRound(entryPrice-posSign*(*order.LossTicks)*mintick, -posSign, mintick)
		order.Stop = &stp
	}
	if order.TrailPointsTicks != nil && order.TrailPrice == nil {
		tp := numeric.PriceRound(entryPrice+posSign*(*order.TrailPointsTicks)*mintick, posSign, mintick)
		order.TrailPrice = &tp
	}
}

// tryFillPass evaluates order against one half of the bar's trajectory.
// Market orders only ever fill in the first pass, at the previous close
// plus slippage. firstPass selects which half of the upFirst-ordered
// trajectory (o->extreme->other extreme) this call represents.
func (p *Position) tryFillPass(cfg *config.Config, order *Order, o, h, l, prevC float64, upFirst, firstPass bool) bool {
	p.resolveOrderPrices(cfg, order)

	if order.IsMarketOrder {
		if !firstPass {
			return false
		}
		price := prevC + cfg.Capital.SlippageTicks*cfg.Symbol.MinTick*order.Sign
		p.FillOrder(cfg, order, price, h, l)
		return true
	}

	checkUp := firstPass == upFirst
	if checkUp {
		return p.checkHigh(cfg, order, o, h, l)
	}
	return p.checkLow(cfg, order, o, h, l)
}

// checkHigh evaluates a non-market order against the bar's high,
// including arming/ratcheting a trailing stop, then checks for a fill. The
// trailing logic here only applies to a sell-side order (Sign < 0, closing
// a long): it arms once price has run up past TrailPrice and ratchets the
// stop upward from there. A buy-side trailing stop arms and ratchets on
// the downward half instead, in checkLow.
func (p *Position) checkHigh(cfg *config.Config, order *Order, o, h, l float64) bool {
	mintick := cfg.Symbol.MinTick
	if order.TrailPrice != nil && order.Sign < 0 {
		offset := order.TrailOffset * mintick
		if !order.TrailTriggered && h > *order.TrailPrice {
			order.TrailTriggered = true
		}
		if order.TrailTriggered {
			candidate := numeric.RoundToTick(h-offset, mintick)
			if order.Stop == nil || candidate > *order.Stop {
				order.Stop = &candidate
			}
		}
	}
	return p.checkHighStop(cfg, order, o, h, l)
}

func (p *Position) checkHighStop(cfg *config.Config, order *Order, o, h, l float64) bool {
	if order.Sign > 0 && order.Stop != nil && h >= *order.Stop {
		price := math.Max(*order.Stop, o)
		p.FillOrder(cfg, order, price, h, l)
		return true
	}
	if order.Sign < 0 && order.Limit != nil && h >= *order.Limit {
		price := math.Max(*order.Limit, o)
		p.FillOrder(cfg, order, price, h, l)
		return true
	}
	return false
}

// checkLow mirrors checkHigh for the downward half of the trajectory: its
// trailing logic only applies to a buy-side order (Sign > 0, closing a
// short), arming once price has run down past TrailPrice.
func (p *Position) checkLow(cfg *config.Config, order *Order, o, h, l float64) bool {
	mintick := cfg.Symbol.MinTick
	if order.TrailPrice != nil && order.Sign > 0 {
		offset := order.TrailOffset * mintick
		if !order.TrailTriggered && l < *order.TrailPrice {
			order.TrailTriggered = true
		}
		if order.TrailTriggered {
			candidate := numeric.RoundToTick(l+offset, mintick)
			if order.Stop == nil || candidate < *order.Stop {
				order.Stop = &candidate
			}
		}
	}
	return p.checkLowStop(cfg, order, o, h, l)
}

func (p *Position) checkLowStop(cfg *config.Config, order *Order, o, h, l float64) bool {
	if order.Sign < 0 && order.Stop != nil && l <= *order.Stop {
		price := math.Min(*order.Stop, o)
		p.FillOrder(cfg, order, price, h, l)
		return true
	}
	if order.Sign > 0 && order.Limit != nil && l <= *order.Limit {
		price := math.Min(*order.Limit, o)
		p.FillOrder(cfg, order, price, h, l)
		return true
	}
	return false
}

// tryTrailClose is pass 2's fallback for an armed trailing stop that the
// trajectory check didn't already fill: if the bar's close crossed the
// ratcheted stop, it fills there even though the stop price itself wasn't
// touched by the inferred high/low path.
func (p *Position) tryTrailClose(cfg *config.Config, order *Order, h, l, c float64, upFirst bool) {
	if order.Stop == nil {
		return
	}
	if upFirst {
		if *order.Stop <= c {
			p.FillOrder(cfg, order, *order.Stop, *order.Stop, l)
		}
		return
	}
	if *order.Stop >= c {
		p.FillOrder(cfg, order, *order.Stop, h, *order.Stop)
	}
}

// updateUnrealized recomputes each open trade's unrealized profit and
// intrabar drawdown/run-up, and the position's aggregate open profit.
// Drawdown/run-up excursions use the position's average price (not each
// trade's own entry price), matching how a single net position's running
// exposure is measured even when multiple pyramided legs make it up.
func (p *Position) updateUnrealized(c float64) {
	var openProfit float64
	for _, t := range p.openTrades {
		t.Profit = t.Size*(c-t.EntryPrice) - t.Commission
		hp := t.Size*(p.h-p.avgPrice) - t.Commission
		lp := t.Size*(p.l-p.avgPrice) - t.Commission
		ddMag := -math.Min(math.Min(hp, lp), 0)
		ruMag := math.Max(math.Max(hp, lp), 0)
		if ddMag > t.MaxDrawdown {
			t.MaxDrawdown = ddMag
		}
		if ruMag > t.MaxRunup {
			t.MaxRunup = ruMag
		}
		notional := math.Abs(t.Size) * t.EntryPrice
		if notional != 0 {
			t.ProfitPercent = t.Profit / notional * 100
			t.MaxDrawdownPercent = t.MaxDrawdown / notional * 100
			t.MaxRunupPercent = t.MaxRunup / notional * 100
		}
		openProfit += t.Profit
		if ddMag > p.drawdownSumm {
			p.drawdownSumm = ddMag
		}
		if ruMag > p.runupSumm {
			p.runupSumm = ruMag
		}
	}
	p.openProfit = openProfit
	if p.drawdownSumm > p.maxDrawdown {
		p.maxDrawdown = p.drawdownSumm
	}
	if p.runupSumm > p.maxRunup {
		p.maxRunup = p.runupSumm
	}
}

func (p *Position) updateEquityExtrema(cfg *config.Config) {
	eq := p.Equity(cfg)
	if eq > p.maxEquity {
		p.maxEquity = eq
	}
	if eq < p.minEquity {
		p.minEquity = eq
	}
}

// applyCumulativeStats folds this bar's newly closed trades into the
// running cumulative profit series and re-anchors entryEquity, so the
// next bar's equity bookkeeping starts from a stable baseline rather than
// drifting with every fill.
func (p *Position) applyCumulativeStats(cfg *config.Config) {
	for _, t := range p.newClosed {
		prevCum := p.cumProfit
		profit := t.Size*(t.ExitPrice-t.EntryPrice) - t.Commission
		p.cumProfit += profit
		t.CumProfit = p.cumProfit
		t.CumMaxDrawdown = p.maxDrawdown
		t.CumMaxRunup = p.maxRunup

		base := cfg.Capital.InitialCapital + prevCum
		if base != 0 {
			t.CumProfitPercent = profit / base * 100
		}
		p.entryEquity += profit
	}
}
