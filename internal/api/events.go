package api

import (
	"time"

	"stratengine/internal/ledger"
)

// DashboardEvent is the envelope for everything pushed over the WebSocket
// feed to connected dashboard clients.
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot", "bar", "trade"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// BarEvent is emitted once per bar processed.
type BarEvent struct {
	BarIndex     int       `json:"bar_index"`
	BarTime      time.Time `json:"bar_time"`
	Close        float64   `json:"close"`
	NetProfit    float64   `json:"net_profit"`
	OpenProfit   float64   `json:"open_profit"`
	PositionSize float64   `json:"position_size"`
}

// TradeEvent is emitted whenever a new trade closes.
type TradeEvent struct {
	Trade TradeSummary `json:"trade"`
}

// NewTradeEvent wraps a freshly closed ledger.Trade for broadcast.
func NewTradeEvent(t *ledger.Trade) TradeEvent {
	return TradeEvent{Trade: NewTradeSummary(t)}
}
