package api

import (
	"time"

	"stratengine/internal/config"
	"stratengine/internal/ledger"
)

// SnapshotProvider gives the dashboard read-only access to the running
// backtest's position and config.
type SnapshotProvider interface {
	Position() *ledger.Position
	Config() *config.Config
	BarIndex() int
	BarTime() time.Time
}

// BuildSnapshot aggregates state from the provider into a DashboardSnapshot.
func BuildSnapshot(provider SnapshotProvider) DashboardSnapshot {
	pos := provider.Position()
	cfg := provider.Config()

	closed := pos.ClosedTrades()
	recent := closed
	const maxRecent = 50
	if len(recent) > maxRecent {
		recent = recent[len(recent)-maxRecent:]
	}
	summaries := make([]TradeSummary, 0, len(recent))
	for _, t := range recent {
		summaries = append(summaries, NewTradeSummary(t))
	}

	return DashboardSnapshot{
		Timestamp: time.Now(),
		BarIndex:  provider.BarIndex(),
		BarTime:   provider.BarTime(),

		NetProfit:   pos.NetProfit(),
		OpenProfit:  pos.OpenProfit(),
		GrossProfit: pos.GrossProfit(),
		GrossLoss:   pos.GrossLoss(),

		PositionSize: pos.Size(),
		AvgPrice:     pos.AvgPrice(),

		MaxDrawdown: pos.MaxDrawdown(),
		MaxRunup:    pos.MaxRunup(),
		MaxEquity:   pos.MaxEquity(),
		MinEquity:   pos.MinEquity(),

		ClosedTrades: pos.ClosedTradesCount(),
		OpenTrades:   pos.OpenTradesCount(),
		WinTrades:    pos.WinTrades(),
		LossTrades:   pos.LossTrades(),
		EvenTrades:   pos.EvenTrades(),

		RecentTrades: summaries,

		Config: NewConfigSummary(cfg),
	}
}
