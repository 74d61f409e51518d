// Package config defines the host configuration a backtest run is started
// with. Config is loaded from a YAML file (default: configs/config.yaml)
// with environment variable overrides for anything that plausibly varies
// per run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"stratengine/pkg/types"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Symbol     SymbolConfig     `mapstructure:"symbol"`
	Capital    CapitalConfig    `mapstructure:"capital"`
	Commission CommissionConfig `mapstructure:"commission"`
	Quantity   QuantityConfig   `mapstructure:"quantity"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
}

// SymbolConfig is the instrument metadata the ledger rounds prices and
// sizes against.
type SymbolConfig struct {
	MinTick         float64 `mapstructure:"mintick"`
	PointValue      float64 `mapstructure:"pointvalue"`
	SizeRoundFactor float64 `mapstructure:"size_round_factor"`
}

// ToTypes adapts SymbolConfig to the shared types.SymbolInfo the ledger
// and numeric packages operate on.
func (s SymbolConfig) ToTypes() types.SymbolInfo {
	return types.SymbolInfo{MinTick: s.MinTick, PointValue: s.PointValue, SizeRoundFactor: s.SizeRoundFactor}
}

// CapitalConfig sets the account's starting capital, per-side margin
// requirement (used only to size percent_of_equity orders), the
// pyramiding cap, and per-order slippage in ticks.
type CapitalConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	MarginLong     float64 `mapstructure:"margin_long"`
	MarginShort    float64 `mapstructure:"margin_short"`
	Pyramiding     int     `mapstructure:"pyramiding"`
	SlippageTicks  float64 `mapstructure:"slippage_ticks"`
}

// CommissionConfig selects the commission model and its per-unit value.
type CommissionConfig struct {
	Type  types.CommissionType `mapstructure:"type"`
	Value float64              `mapstructure:"value"`
}

// QuantityConfig sets the default order-size interpretation used when a
// strategy call omits an explicit quantity type.
type QuantityConfig struct {
	DefaultType  types.QtyType `mapstructure:"default_qty_type"`
	DefaultValue float64       `mapstructure:"default_qty_value"`
}

// RiskConfig sets the hard limits the risk gate enforces.
type RiskConfig struct {
	AllowedDirection        string        `mapstructure:"allowed_direction"` // "", "long", "short"
	MaxPositionSize         float64       `mapstructure:"max_position_size"`
	MaxIntradayFilledOrders int           `mapstructure:"max_intraday_filled_orders"`
	MaxConsLossDays         int           `mapstructure:"max_cons_loss_days"`
	MaxDrawdownValue        float64       `mapstructure:"max_drawdown_value"`
	MaxDrawdownType         types.QtyType `mapstructure:"max_drawdown_type"`
	MaxIntradayLossValue    float64       `mapstructure:"max_intraday_loss_value"`
	MaxIntradayLossType     types.QtyType `mapstructure:"max_intraday_loss_type"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the read-only web dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides. Run-varying
// fields use env vars under the STRAT_ prefix, e.g.
// STRAT_INITIAL_CAPITAL, STRAT_MAX_DRAWDOWN_VALUE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("STRAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if capital := os.Getenv("STRAT_INITIAL_CAPITAL"); capital != "" {
		if f, err := strconv.ParseFloat(capital, 64); err == nil {
			cfg.Capital.InitialCapital = f
		}
	}
	if dd := os.Getenv("STRAT_MAX_DRAWDOWN_VALUE"); dd != "" {
		if f, err := strconv.ParseFloat(dd, 64); err == nil {
			cfg.Risk.MaxDrawdownValue = f
		}
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Symbol.MinTick <= 0 {
		return fmt.Errorf("symbol.mintick must be > 0")
	}
	if c.Symbol.PointValue <= 0 {
		return fmt.Errorf("symbol.pointvalue must be > 0")
	}
	if c.Symbol.SizeRoundFactor <= 0 {
		return fmt.Errorf("symbol.size_round_factor must be > 0")
	}
	if c.Capital.InitialCapital <= 0 {
		return fmt.Errorf("capital.initial_capital must be > 0")
	}
	if c.Capital.Pyramiding < 1 {
		return fmt.Errorf("capital.pyramiding must be >= 1")
	}
	switch c.Commission.Type {
	case types.CommissionCashPerContract, types.CommissionCashPerOrder, types.CommissionPercent:
	default:
		return fmt.Errorf("commission.type must be one of: cash_per_contract, cash_per_order, percent")
	}
	if c.Commission.Value < 0 {
		return fmt.Errorf("commission.value must be >= 0")
	}
	switch c.Quantity.DefaultType {
	case types.QtyFixed, types.QtyCash, types.QtyPercentOfEquity:
	default:
		return fmt.Errorf("quantity.default_qty_type must be one of: fixed, cash, percent_of_equity")
	}
	switch c.Risk.AllowedDirection {
	case "", "long", "short":
	default:
		return fmt.Errorf("risk.allowed_direction must be one of: \"\", long, short")
	}
	return nil
}

// AllowedDirection translates the YAML string into a *types.Direction, nil
// meaning unrestricted.
func (c *Config) AllowedDirection() *types.Direction {
	switch c.Risk.AllowedDirection {
	case "long":
		d := types.Long
		return &d
	case "short":
		d := types.Short
		return &d
	default:
		return nil
	}
}
