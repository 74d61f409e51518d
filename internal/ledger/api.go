package ledger

import (
	"fmt"
	"math"

	"stratengine/internal/config"
	"stratengine/internal/numeric"
	"stratengine/internal/risk"
	"stratengine/pkg/types"
)

// EntryParams are the arguments to Position.Entry. Qty/QtyType default to
// the host config's quantity settings when nil.
type EntryParams struct {
	ID           string
	Direction    types.Direction
	Qty          *float64
	QtyType      *types.QtyType
	Limit        *float64
	Stop         *float64
	OcaName      string
	OcaType      types.OcaType
	Comment      string
	AlertMessage string
}

// Entry places a pending entry order, or returns false without placing
// anything if pyramiding, risk direction, or sizing rules reject it. A
// well-formed but empty ID is a programming error, not a rejectable
// condition, and panics.
func (p *Position) Entry(cfg *config.Config, params EntryParams) bool {
	if params.ID == "" {
		panic("ledger: entry id must not be empty")
	}
	dirSign := params.Direction.Sign()

	if dirSign == p.sign && p.sign != 0 && len(p.openTrades) >= maxInt(cfg.Capital.Pyramiding, 1) {
		return false
	}
	if p.sign == 0 && !risk.AllowsNewPosition(p.riskCfg(cfg), params.Direction) {
		return false
	}

	qty := p.resolveQty(cfg, params)
	qty = numeric.RoundSize(qty, cfg.Symbol.SizeRoundFactor)
	if qty <= 0 {
		return false
	}
	qty = risk.ClampSize(p.riskCfg(cfg), qty)
	if qty <= 0 {
		return false
	}

	id := params.ID
	order := &Order{
		OrderID:       &id,
		Size:          qty * dirSign,
		Sign:          dirSign,
		Kind:          orderEntry,
		Limit:         params.Limit,
		Stop:          params.Stop,
		OcaName:       params.OcaName,
		OcaType:       params.OcaType,
		Comment:       params.Comment,
		AlertMessage:  params.AlertMessage,
		IsMarketOrder: params.Limit == nil && params.Stop == nil,
	}
	p.entryOrders.Set(id, order)
	return true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// resolveQty interprets an entry's requested quantity under the
// config-selected (or call-overridden) quantity type, solving
// percent_of_equity for the contract count each commission model implies.
func (p *Position) resolveQty(cfg *config.Config, params EntryParams) float64 {
	qtyType := cfg.Quantity.DefaultType
	if params.QtyType != nil {
		qtyType = *params.QtyType
	}
	qtyValue := cfg.Quantity.DefaultValue
	if params.Qty != nil {
		qtyValue = *params.Qty
	}

	price := p.c
	if price <= 0 {
		price = p.avgPrice
	}

	switch qtyType {
	case types.QtyFixed:
		return qtyValue
	case types.QtyCash:
		if price <= 0 {
			return 0
		}
		return qtyValue / price
	case types.QtyPercentOfEquity:
		if price <= 0 {
			return 0
		}
		margin := cfg.Capital.MarginLong
		if params.Direction == types.Short {
			margin = cfg.Capital.MarginShort
		}
		if margin <= 0 {
			margin = 1
		}
		capacity := p.Equity(cfg) * qtyValue / 100 / margin
		switch cfg.Commission.Type {
		case types.CommissionPercent:
			denom := price * (1 + cfg.Commission.Value/100)
			if denom <= 0 {
				return 0
			}
			return capacity / denom
		case types.CommissionCashPerContract:
			denom := price + cfg.Commission.Value
			if denom <= 0 {
				return 0
			}
			return capacity / denom
		case types.CommissionCashPerOrder:
			return (capacity - cfg.Commission.Value) / price
		default:
			return capacity / price
		}
	default:
		panic(fmt.Sprintf("ledger: unknown quantity type %q", qtyType))
	}
}

// ExitParams are the arguments to Position.Exit.
type ExitParams struct {
	ID          string
	FromEntryID *string
	Qty         *float64
	QtyPercent  *float64

	Limit       *float64
	Stop        *float64
	ProfitTicks *float64
	LossTicks   *float64
	TrailPoints *float64
	TrailOffset float64

	OcaName      string
	OcaType      types.OcaType
	Comment      string
	AlertMessage string
}

// Exit places a pending close order targeting either a specific entry (via
// FromEntryID) or the whole current position. Returns false if there is
// nothing open to target.
func (p *Position) Exit(cfg *config.Config, params ExitParams) bool {
	if params.ID == "" {
		panic("ledger: exit id must not be empty")
	}
	sign := p.exitTargetSign(params.FromEntryID)
	if sign == 0 {
		return false
	}

	size := p.exitSize(cfg, params, sign)
	if size <= 0 {
		return false
	}

	order := &Order{
		ExitID:           params.ID,
		FromEntryID:      params.FromEntryID,
		Size:             -sign * size,
		Sign:             -sign,
		Kind:             orderClose,
		Limit:            params.Limit,
		Stop:             params.Stop,
		ProfitTicks:      params.ProfitTicks,
		LossTicks:        params.LossTicks,
		TrailPointsTicks: params.TrailPoints,
		TrailOffset:      params.TrailOffset,
		OcaName:          params.OcaName,
		OcaType:          params.OcaType,
		Comment:          params.Comment,
		AlertMessage:     params.AlertMessage,
		IsMarketOrder: params.Limit == nil && params.Stop == nil &&
			params.ProfitTicks == nil && params.LossTicks == nil && params.TrailPoints == nil,
	}
	p.exitOrders.Set(params.ID, order)
	return true
}

func (p *Position) exitTargetSign(fromEntryID *string) float64 {
	if fromEntryID != nil {
		for _, t := range p.openTrades {
			if t.EntryID == *fromEntryID {
				return t.Sign
			}
		}
		return 0
	}
	return p.sign
}

func (p *Position) exitSize(cfg *config.Config, params ExitParams, sign float64) float64 {
	base := p.sizeForSign(sign)
	if base == 0 {
		return 0
	}
	switch {
	case params.QtyPercent != nil:
		return numeric.RoundSize(base*(*params.QtyPercent)/100, cfg.Symbol.SizeRoundFactor)
	case params.Qty != nil:
		q := numeric.RoundSize(*params.Qty, cfg.Symbol.SizeRoundFactor)
		return math.Min(q, base)
	default:
		return base
	}
}

// Close cancels any pending entry order under id and, if id names an open
// trade, closes it (or qty of it). By default this queues a market order
// that fills against the next bar processed, same as every other order;
// if immediate is true it fills right away against bar's own (c, h, l)
// instead of waiting a bar.
func (p *Position) Close(cfg *config.Config, id string, qty *float64, comment string, immediate bool, bar types.Bar) bool {
	p.entryOrders.Delete(id)

	var sign float64
	for _, t := range p.openTrades {
		if t.EntryID == id {
			sign = t.Sign
			break
		}
	}
	if sign == 0 {
		return false
	}

	size := p.sizeForSign(sign)
	if qty != nil {
		q := numeric.RoundSize(*qty, cfg.Symbol.SizeRoundFactor)
		if q < size {
			size = q
		}
	}
	if size <= 0 {
		return false
	}

	exitKey := "close:" + id
	order := &Order{
		ExitID:        exitKey,
		Size:          -sign * size,
		Sign:          -sign,
		Kind:          orderClose,
		Comment:       comment,
		IsMarketOrder: true,
	}

	if immediate {
		p.fillImmediately(cfg, order, bar)
		return true
	}

	p.exitOrders.Set(exitKey, order)
	return true
}

// CloseAll cancels every other pending order and, by default, queues a
// market order that flattens the whole position on the next bar processed.
// immediate fills it right away against bar's own (c, h, l) instead.
func (p *Position) CloseAll(cfg *config.Config, comment string, immediate bool, bar types.Bar) bool {
	if p.sign == 0 {
		return false
	}
	p.entryOrders.Clear()
	p.exitOrders.Clear()

	order := &Order{
		ExitID:        "close_all",
		Size:          -p.size,
		Sign:          signOf(-p.size),
		Kind:          orderClose,
		Comment:       comment,
		IsMarketOrder: true,
	}

	if immediate {
		p.fillImmediately(cfg, order, bar)
		return true
	}

	p.exitOrders.Set("close_all", order)
	return true
}

// fillImmediately settles order right now against bar's tick-rounded
// close/high/low, the same price/h/l a queued market order would see on
// the next bar's warm-up fill, just one bar earlier.
func (p *Position) fillImmediately(cfg *config.Config, order *Order, bar types.Bar) {
	mintick := cfg.Symbol.MinTick
	price := numeric.RoundToTick(bar.Close, mintick)
	h := numeric.RoundToTick(bar.High, mintick)
	l := numeric.RoundToTick(bar.Low, mintick)
	p.FillOrder(cfg, order, price, h, l)
}

// Cancel removes a single pending entry or exit order by id.
func (p *Position) Cancel(id string) bool {
	if _, ok := p.entryOrders.Get(id); ok {
		p.entryOrders.Delete(id)
		return true
	}
	if _, ok := p.exitOrders.Get(id); ok {
		p.exitOrders.Delete(id)
		return true
	}
	return false
}

// CancelAll removes every pending entry and exit order.
func (p *Position) CancelAll() {
	p.entryOrders.Clear()
	p.exitOrders.Clear()
}
