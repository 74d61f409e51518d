package ledger

import (
	"math"

	"stratengine/internal/config"
	"stratengine/internal/numeric"
	"stratengine/internal/risk"
	"stratengine/pkg/types"
)

// FillOrder executes order at price (with h/l as the bar's rounded high/low,
// used to bound intrabar drawdown/run-up on whatever this fill closes). It
// is the single funnel every match path (market, stop, limit, trailing,
// close/close_all) goes through, so risk gating, OCA cancellation, and
// pending-order bookkeeping only need to live in one place.
func (p *Position) FillOrder(cfg *config.Config, order *Order, price, h, l float64) {
	rc := p.riskCfg(cfg)
	if !risk.AllowsFill(rc, p.riskState) {
		p.removeOrder(order)
		return
	}

	p.fillOrder(cfg, order, price, h, l)
	risk.RecordFill(&p.riskState)
	p.removeOrder(order)

	if order.OcaName != "" && order.OcaType == types.OcaCancel {
		p.cancelOcaSiblings(order)
	}
}

func (p *Position) removeOrder(order *Order) {
	switch order.Kind {
	case orderEntry:
		if order.OrderID != nil {
			p.entryOrders.Delete(*order.OrderID)
		}
	case orderClose:
		p.exitOrders.Delete(order.ExitID)
	}
}

func (p *Position) cancelOcaSiblings(filled *Order) {
	for _, o := range p.entryOrders.Values() {
		if o != filled && o.OcaName == filled.OcaName {
			p.entryOrders.Delete(derefOrEmpty(o.OrderID))
		}
	}
	for _, o := range p.exitOrders.Values() {
		if o != filled && o.OcaName == filled.OcaName {
			p.exitOrders.Delete(o.ExitID)
		}
	}
}

// fillOrder handles the reversal case: an order whose fill would flip the
// position's sign is split into a close leg that exactly flattens the
// existing position, followed by a fresh opening leg for the remainder.
// Splitting this way keeps the new leg's entry price clean instead of
// blending it with the average price of the position being exited. A
// Close-kind order never reopens: one that would carry past flat (or that
// points the same way as the position) is clamped to exactly flatten it.
func (p *Position) fillOrder(cfg *config.Config, order *Order, price, h, l float64) bool {
	sym := cfg.Symbol

	if order.Kind == orderClose {
		if p.size == 0 {
			return false
		}
		if order.Sign != -p.sign || math.Abs(order.Size) > math.Abs(p.size) {
			order.Size = -p.size
			order.Sign = signOf(order.Size)
		}
		p.applyFill(cfg, order, price, h, l)
		return false
	}

	newSize := p.size + order.Size
	collapsed := numeric.NearZero(newSize, sym.SizeRoundFactor)
	newSign := 0.0
	if !collapsed {
		newSign = signOf(newSize)
	}

	reversing := p.sign != 0 && !collapsed && newSign != 0 && newSign != p.sign

	if !reversing {
		p.applyFill(cfg, order, price, h, l)
		return true
	}

	closeLeg := &Order{
		Size:    -p.size,
		Sign:    signOf(-p.size),
		Kind:    orderClose,
		ExitID:  derefOrEmpty(order.OrderID),
		Comment: order.Comment,
	}
	p.applyFill(cfg, closeLeg, price, h, l)

	dir := types.Long
	if newSign < 0 {
		dir = types.Short
	}
	if !risk.AllowsNewPosition(p.riskCfg(cfg), dir) {
		return false
	}

	order.Size = newSize
	order.Sign = newSign
	p.applyFill(cfg, order, price, h, l)
	return true
}

// applyFill dispatches to the opening or closing leg logic depending on
// whether order's sign agrees with the current position's sign.
func (p *Position) applyFill(cfg *config.Config, order *Order, price, h, l float64) {
	if p.sign != 0 && order.Sign != p.sign {
		p.applyClose(cfg, order, price, h, l)
		return
	}
	p.applyOpen(cfg, order, price)
}

func commissionForOpen(cfg *config.Config, size, price float64) float64 {
	switch cfg.Commission.Type {
	case types.CommissionCashPerContract:
		return cfg.Commission.Value * math.Abs(size)
	case types.CommissionPercent:
		return cfg.Commission.Value / 100 * math.Abs(size) * price
	case types.CommissionCashPerOrder:
		return cfg.Commission.Value
	default:
		return 0
	}
}

// applyOpen appends a brand-new open trade (or, in the pyramiding case, an
// additional leg) for order's full size.
func (p *Position) applyOpen(cfg *config.Config, order *Order, price float64) {
	beforeEquity := p.Equity(cfg)
	wasFlat := len(p.openTrades) == 0

	commission := commissionForOpen(cfg, order.Size, price)
	reserved := commission

	trade := &Trade{
		Size:                   order.Size,
		Sign:                   order.Sign,
		EntryID:                derefOrEmpty(order.OrderID),
		EntryBarIndex:          p.barIndex,
		EntryTime:              p.barTime,
		EntryPrice:             price,
		EntryComment:           order.Comment,
		EntryEquity:            beforeEquity,
		Commission:             commission,
		reservedExitCommission: reserved,
	}

	p.openTrades = append(p.openTrades, trade)
	p.openCommission += reserved
	p.netProfit -= commission

	p.recomputeFromOpenTrades()

	if wasFlat {
		p.entryEquity = p.Equity(cfg)
	}
}

// applyClose walks the FIFO open-trades queue, closing (or partially
// closing) enough of it to satisfy order's full size, realizing profit
// and commission per leg and bounding each leg's max drawdown/run-up by
// both its intrabar excursion and its own realized profit.
func (p *Position) applyClose(cfg *config.Config, order *Order, price, h, l float64) {
	sym := cfg.Symbol
	remaining := math.Abs(order.Size)

	exitID := order.ExitID
	if exitID == "" {
		exitID = "close"
	}

	var cashPerOrderLegs []*Trade
	var cashPerOrderTotalSize float64

	for remaining > 0 && len(p.openTrades) > 0 {
		ot := p.openTrades[0]
		otSize := math.Abs(ot.Size)
		closeSize := math.Min(remaining, otSize)
		full := numeric.NearZero(otSize-closeSize, sym.SizeRoundFactor)

		var closedTrade *Trade
		if full {
			closedTrade = ot
			p.openTrades = p.openTrades[1:]
		} else {
			ratio := closeSize / otSize
			closedTrade = ot.clone()
			closedTrade.Size = ot.Sign * closeSize
			closedTrade.Commission = ot.Commission * ratio
			closedTrade.reservedExitCommission = ot.reservedExitCommission * ratio
			closedTrade.MaxDrawdown = ot.MaxDrawdown * ratio
			closedTrade.MaxRunup = ot.MaxRunup * ratio

			ot.Size = ot.Sign * (otSize - closeSize)
			ot.Commission -= closedTrade.Commission
			ot.reservedExitCommission -= closedTrade.reservedExitCommission
			ot.MaxDrawdown -= closedTrade.MaxDrawdown
			ot.MaxRunup -= closedTrade.MaxRunup
		}

		entryPrice := closedTrade.EntryPrice
		rawProfit := closedTrade.Size * (price - entryPrice)

		var commission float64
		switch cfg.Commission.Type {
		case types.CommissionCashPerContract:
			commission = cfg.Commission.Value * math.Abs(closedTrade.Size)
		case types.CommissionPercent:
			commission = cfg.Commission.Value / 100 * math.Abs(closedTrade.Size) * price
		case types.CommissionCashPerOrder:
			cashPerOrderLegs = append(cashPerOrderLegs, closedTrade)
			cashPerOrderTotalSize += math.Abs(closedTrade.Size)
		}

		// Net this leg's exit commission out of profit before any
		// classification or drawdown/run-up bound uses it. The entry
		// commission was already debited from netProfit when the leg opened
		// and is not netted again here. cash_per_order's flat fee is split
		// across legs below, once every leg this order touched is known, so
		// it is not yet reflected here.
		profit := rawProfit - commission

		hp := closedTrade.Size*(h-entryPrice) - commission
		lp := closedTrade.Size*(l-entryPrice) - commission
		ddMag := -math.Min(math.Min(hp, lp), 0)
		ruMag := math.Max(math.Max(hp, lp), 0)
		if ddMag > closedTrade.MaxDrawdown {
			closedTrade.MaxDrawdown = ddMag
		}
		if ruMag > closedTrade.MaxRunup {
			closedTrade.MaxRunup = ruMag
		}
		// Bound both by the leg's own realized profit: drawdown can never
		// be shallower than an actual realized loss, run-up never smaller
		// than an actual realized gain.
		if lossMag := math.Max(-profit, 0); lossMag > closedTrade.MaxDrawdown {
			closedTrade.MaxDrawdown = lossMag
		}
		if profit > closedTrade.MaxRunup {
			closedTrade.MaxRunup = profit
		}
		if closedTrade.MaxDrawdown > p.drawdownSumm {
			p.drawdownSumm = closedTrade.MaxDrawdown
		}
		if closedTrade.MaxRunup > p.runupSumm {
			p.runupSumm = closedTrade.MaxRunup
		}

		closedTrade.Commission += commission
		closedTrade.Closed = true
		closedTrade.ExitID = exitID
		closedTrade.ExitBarIndex = p.barIndex
		closedTrade.ExitTime = p.barTime
		closedTrade.ExitPrice = price
		closedTrade.ExitComment = order.Comment

		p.netProfit += profit
		switch {
		case profit > 0:
			p.grossProfit += profit
			p.winTrades++
		case profit < 0:
			p.grossLoss += -profit
			p.lossTrades++
		default:
			p.evenTrades++
		}
		p.openCommission -= closedTrade.reservedExitCommission

		closedTrade.Profit = profit
		notional := math.Abs(closedTrade.Size) * entryPrice
		if notional != 0 {
			closedTrade.ProfitPercent = profit / notional * 100
			closedTrade.MaxDrawdownPercent = closedTrade.MaxDrawdown / notional * 100
			closedTrade.MaxRunupPercent = closedTrade.MaxRunup / notional * 100
		}
		closedTrade.ExitEquity = p.Equity(cfg)

		p.closed.Push(closedTrade)
		p.newClosed = append(p.newClosed, closedTrade)

		remaining -= closeSize
	}

	// cash_per_order charges one flat fee per exit order, split across
	// whatever legs it closed in proportion to their size.
	if cfg.Commission.Type == types.CommissionCashPerOrder && cashPerOrderTotalSize > 0 {
		total := cfg.Commission.Value
		for _, leg := range cashPerOrderLegs {
			share := math.Abs(leg.Size) / cashPerOrderTotalSize * total
			leg.Commission += share
			p.netProfit -= share
		}
	}

	p.recomputeFromOpenTrades()
}
