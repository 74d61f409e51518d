// Command backtest runs a strategy-scripting-compatible backtest over a bar
// file and reports its trade history.
//
// Layout:
//
//	main.go     — cobra root + run/report/history subcommands
//	strategy.go — bundled SMA-crossover demo strategy
//
// A run loads configs/config.yaml (with STRAT_-prefixed env overrides),
// walks a CSV bar feed through the bundled demo strategy, settles orders
// against the ledger one bar at a time, and on completion writes a trade
// CSV and a text performance summary. If the dashboard is enabled in
// config, a read-only HTTP/WebSocket server streams the run live.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"stratengine/internal/api"
	"stratengine/internal/config"
	"stratengine/internal/ledger"
	"stratengine/internal/marketdata"
	"stratengine/internal/metrics"
	"stratengine/internal/report"
	"stratengine/internal/script"
	"stratengine/internal/store"
	"stratengine/pkg/types"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Strategy-scripting-compatible backtesting engine",
}

func init() {
	rootCmd.PersistentFlags().String("config", "configs/config.yaml", "config file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(historyCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [bars.csv]",
	Short: "Run the bundled demo strategy over a bar file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		fastLen, _ := cmd.Flags().GetInt("fast")
		slowLen, _ := cmd.Flags().GetInt("slow")
		tradesOut, _ := cmd.Flags().GetString("trades-out")
		summaryOut, _ := cmd.Flags().GetString("summary-out")
		historyDir, _ := cmd.Flags().GetString("history-dir")

		_ = godotenv.Load()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger := newLogger(cfg.Logging)

		feed, err := marketdata.OpenCSVFeed(args[0])
		if err != nil {
			return fmt.Errorf("open bar feed: %w", err)
		}

		runner := script.New(cfg, logger)

		var apiServer *api.Server
		if cfg.Dashboard.Enabled {
			apiServer = api.NewServer(cfg.Dashboard, runner, logger)
			go func() {
				if err := apiServer.Start(); err != nil {
					logger.Error("dashboard server failed", "error", err)
				}
			}()
			logger.Info("dashboard started", "port", cfg.Dashboard.Port)
		}

		strat := newSMACrossover(fastLen, slowLen)
		seenClosed := 0

		onBar := func(r *script.Runner, bar types.Bar) {
			pos := r.Position()
			metrics.Observe(metrics.Snapshot{
				Equity:      pos.Equity(cfg),
				NetProfit:   pos.NetProfit(),
				OpenSize:    pos.Size(),
				MaxDrawdown: pos.MaxDrawdown(),
				MaxRunup:    pos.MaxRunup(),
				WinTrades:   pos.WinTrades(),
				LossTrades:  pos.LossTrades(),
				EvenTrades:  pos.EvenTrades(),
			})

			if apiServer != nil {
				apiServer.BroadcastBar(api.BarEvent{
					BarIndex:     r.BarIndex(),
					BarTime:      r.BarTime(),
					Close:        bar.Close,
					NetProfit:    pos.NetProfit(),
					OpenProfit:   pos.OpenProfit(),
					PositionSize: pos.Size(),
				})
				closed := pos.ClosedTrades()
				for ; seenClosed < len(closed); seenClosed++ {
					apiServer.BroadcastTrade(api.NewTradeEvent(closed[seenClosed]))
				}
			}
		}

		if err := runner.Run(feed, strat.run, onBar); err != nil {
			return fmt.Errorf("run backtest: %w", err)
		}

		runID := report.RunID()
		if err := writeReportFiles(runID, runner, tradesOut, summaryOut); err != nil {
			return err
		}

		if historyDir != "" {
			if err := saveRunRecord(historyDir, runID, cfg, runner.Position()); err != nil {
				logger.Error("failed to save run history", "error", err)
			}
		}

		if apiServer != nil {
			if err := apiServer.Stop(); err != nil {
				logger.Error("failed to stop dashboard", "error", err)
			}
		}

		logger.Info("backtest complete",
			"run_id", runID,
			"net_profit", runner.Position().NetProfit(),
			"closed_trades", runner.Position().ClosedTradesCount(),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().Int("fast", 10, "fast SMA length")
	runCmd.Flags().Int("slow", 30, "slow SMA length")
	runCmd.Flags().String("trades-out", "trades.csv", "trade CSV output path")
	runCmd.Flags().String("summary-out", "", "summary text output path (stdout if empty)")
	runCmd.Flags().String("history-dir", "runs", "directory to record this run's summary in, empty to skip")
}

var reportCmd = &cobra.Command{
	Use:   "report [trades.csv]",
	Short: "Print summary statistics for a previously exported trade CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open trades file: %w", err)
		}
		defer f.Close()

		summary, err := report.ReadTradesSummary(f)
		if err != nil {
			return fmt.Errorf("read trades summary: %w", err)
		}

		var winRate float64
		if summary.TotalTrades > 0 {
			winRate = float64(summary.WinTrades) / float64(summary.TotalTrades) * 100
		}
		fmt.Printf("trades:     %d\n", summary.TotalTrades)
		fmt.Printf("wins:       %d\n", summary.WinTrades)
		fmt.Printf("losses:     %d\n", summary.LossTrades)
		fmt.Printf("win rate:   %.1f%%\n", winRate)
		fmt.Printf("net profit: %.2f\n", summary.NetProfit)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previously recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("history-dir")
		s, err := store.Open(dir)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer s.Close()

		runs, err := s.ListRuns()
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("no recorded runs")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %-12s  net_profit=%-10.2f trades=%-4d win=%-4d loss=%-4d max_dd=%.2f\n",
				r.Timestamp.Format("2006-01-02 15:04:05"), r.RunID, r.NetProfit, r.ClosedTrades, r.WinTrades, r.LossTrades, r.MaxDrawdown)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().String("history-dir", "runs", "directory run summaries were recorded in")
}

func saveRunRecord(dir, runID string, cfg *config.Config, pos *ledger.Position) error {
	s, err := store.Open(dir)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer s.Close()

	rec := store.RunRecord{
		RunID:        runID,
		Timestamp:    time.Now(),
		Symbol:       strconv.FormatFloat(cfg.Symbol.MinTick, 'f', -1, 64),
		NetProfit:    pos.NetProfit(),
		MaxDrawdown:  pos.MaxDrawdown(),
		MaxRunup:     pos.MaxRunup(),
		ClosedTrades: pos.ClosedTradesCount(),
		WinTrades:    pos.WinTrades(),
		LossTrades:   pos.LossTrades(),
	}
	return s.SaveRun(rec)
}

func writeReportFiles(runID string, runner *script.Runner, tradesPath, summaryPath string) error {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	defer tf.Close()
	if err := report.WriteTrades(tf, runner.Position()); err != nil {
		return err
	}

	var sw = os.Stdout
	if summaryPath != "" {
		f, err := os.Create(summaryPath)
		if err != nil {
			return fmt.Errorf("create summary file: %w", err)
		}
		defer f.Close()
		sw = f
	}
	return report.WriteSummary(sw, runID, runner.Position())
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
