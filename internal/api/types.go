package api

import (
	"strconv"
	"time"

	"stratengine/internal/config"
	"stratengine/internal/ledger"
)

// DashboardSnapshot represents the complete read-only state of a running
// backtest.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	BarIndex int       `json:"bar_index"`
	BarTime  time.Time `json:"bar_time"`

	NetProfit   float64 `json:"net_profit"`
	OpenProfit  float64 `json:"open_profit"`
	GrossProfit float64 `json:"gross_profit"`
	GrossLoss   float64 `json:"gross_loss"`

	PositionSize float64 `json:"position_size"`
	AvgPrice     float64 `json:"avg_price"`

	MaxDrawdown float64 `json:"max_drawdown"`
	MaxRunup    float64 `json:"max_runup"`
	MaxEquity   float64 `json:"max_equity"`
	MinEquity   float64 `json:"min_equity"`

	ClosedTrades int `json:"closed_trades"`
	OpenTrades   int `json:"open_trades"`
	WinTrades    int `json:"win_trades"`
	LossTrades   int `json:"loss_trades"`
	EvenTrades   int `json:"even_trades"`

	RecentTrades []TradeSummary `json:"recent_trades"`

	Config ConfigSummary `json:"config"`
}

// TradeSummary is the subset of ledger.Trade shown on the dashboard.
type TradeSummary struct {
	EntryID     string    `json:"entry_id"`
	ExitID      string    `json:"exit_id"`
	Direction   string    `json:"direction"`
	Size        float64   `json:"size"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	EntryTime   time.Time `json:"entry_time"`
	ExitTime    time.Time `json:"exit_time"`
	Profit      float64   `json:"profit"`
	Commission  float64   `json:"commission"`
}

// NewTradeSummary converts a ledger.Trade to its dashboard view.
func NewTradeSummary(t *ledger.Trade) TradeSummary {
	direction := "long"
	if t.Sign < 0 {
		direction = "short"
	}
	return TradeSummary{
		EntryID:    t.EntryID,
		ExitID:     t.ExitID,
		Direction:  direction,
		Size:       t.Size,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		EntryTime:  t.EntryTime,
		ExitTime:   t.ExitTime,
		Profit:     t.Profit,
		Commission: t.Commission,
	}
}

// ConfigSummary is the run configuration shown alongside the snapshot.
type ConfigSummary struct {
	Symbol          string  `json:"symbol_mintick"`
	InitialCapital  float64 `json:"initial_capital"`
	Pyramiding      int     `json:"pyramiding"`
	CommissionType  string  `json:"commission_type"`
	CommissionValue float64 `json:"commission_value"`
	AllowedDir      string  `json:"allowed_direction"`
}

// NewConfigSummary builds a ConfigSummary from the host config.
func NewConfigSummary(cfg *config.Config) ConfigSummary {
	return ConfigSummary{
		Symbol:          strconv.FormatFloat(cfg.Symbol.MinTick, 'f', -1, 64),
		InitialCapital:  cfg.Capital.InitialCapital,
		Pyramiding:      cfg.Capital.Pyramiding,
		CommissionType:  string(cfg.Commission.Type),
		CommissionValue: cfg.Commission.Value,
		AllowedDir:      cfg.Risk.AllowedDirection,
	}
}
