package ledger

import "stratengine/pkg/types"

// orderKind distinguishes an order that opens or adds to a position from
// one that closes or reduces it. Unexported: callers build orders only
// through the strategy API (Entry/Exit/Close/CloseAll), never by hand.
type orderKind int

const (
	orderEntry orderKind = iota
	orderClose
)

// Order is a pending instruction waiting to be matched against a future
// bar. Entry orders are keyed by OrderID in Position's pending-entries map;
// close orders are keyed by ExitID in the pending-exits map. Any of
// (Limit, Stop, TrailPrice) being set makes this a non-market order;
// IsMarketOrder is true only when none are.
type Order struct {
	OrderID *string // nil for close orders, always set for entry orders
	Size    float64 // signed: positive buys, negative sells
	Sign    float64 // sign of Size, cached for cheap comparisons
	Kind    orderKind

	ExitID      string  // set for close orders
	FromEntryID *string // optional: ties an exit to one specific entry/trade

	Limit *float64
	Stop  *float64

	OcaName string
	OcaType types.OcaType

	Comment      string
	AlertMessage string

	TrailPrice     *float64
	TrailOffset    float64 // in ticks
	TrailTriggered bool

	// Deferred tick-distance exit parameters, resolved into Limit/Stop/
	// TrailPrice against the relevant entry price the first time the
	// order is evaluated (see Position.resolveOrderPrices).
	ProfitTicks      *float64
	LossTicks        *float64
	TrailPointsTicks *float64

	IsMarketOrder bool

	resolved  bool // ProfitTicks/LossTicks/TrailPointsTicks already resolved
	cancelled bool
}
