// Package report turns a finished ledger.Position into the two artifacts an
// operator pulls off a backtest run: a CSV trade list for spreadsheet
// analysis and a plain-text performance summary for the terminal. Each run
// is stamped with a uuid so a batch of runs can be told apart on disk.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"stratengine/internal/ledger"
)

// RunID mints a fresh identifier for one backtest run.
func RunID() string {
	return uuid.New().String()
}

var tradesHeader = []string{
	"entry_id", "exit_id", "direction", "size",
	"entry_time", "entry_price", "exit_time", "exit_price",
	"commission", "profit", "profit_percent", "cum_profit",
	"max_drawdown", "max_runup", "cum_max_drawdown", "cum_max_runup",
	"entry_comment", "exit_comment",
}

// WriteTrades writes every closed trade in the position to w as CSV,
// oldest first. Prices and profits are rounded to 10 decimal places and
// timestamps are emitted as UTC millisecond epoch, matching the export
// convention the charting platform's own strategy report uses.
func WriteTrades(w io.Writer, pos *ledger.Position) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradesHeader); err != nil {
		return fmt.Errorf("write trades header: %w", err)
	}

	for _, t := range pos.ClosedTrades() {
		direction := "long"
		if t.Sign < 0 {
			direction = "short"
		}
		record := []string{
			t.EntryID,
			t.ExitID,
			direction,
			formatFloat(t.Size),
			formatMillis(t.EntryTime),
			formatFloat(t.EntryPrice),
			formatMillis(t.ExitTime),
			formatFloat(t.ExitPrice),
			formatFloat(t.Commission),
			formatFloat(t.Profit),
			formatFloat(t.ProfitPercent),
			formatFloat(t.CumProfit),
			formatFloat(t.MaxDrawdown),
			formatFloat(t.MaxRunup),
			formatFloat(t.CumMaxDrawdown),
			formatFloat(t.CumMaxRunup),
			t.EntryComment,
			t.ExitComment,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write trade row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush trades csv: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(roundTo10(v), 'f', 10, 64)
}

func roundTo10(v float64) float64 {
	const factor = 1e10
	return float64(int64(v*factor+sign(v)*0.5)) / factor
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func formatMillis(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UTC().UnixMilli(), 10)
}

// TradesSummary is the set of stats ReadTradesSummary recovers from a
// previously exported trade CSV, for a run whose in-memory Position is gone.
type TradesSummary struct {
	TotalTrades int
	WinTrades   int
	LossTrades  int
	NetProfit   float64
}

// ReadTradesSummary reads back a CSV produced by WriteTrades and recomputes
// trade counts and net profit from its profit column, for reporting on a
// run after the process that produced it has exited.
func ReadTradesSummary(r io.Reader) (TradesSummary, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return TradesSummary{}, fmt.Errorf("read trades header: %w", err)
	}
	profitCol := -1
	for i, h := range header {
		if h == "profit" {
			profitCol = i
			break
		}
	}
	if profitCol < 0 {
		return TradesSummary{}, fmt.Errorf("trades csv has no profit column")
	}

	var out TradesSummary
	for {
		rec, err := cr.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return TradesSummary{}, fmt.Errorf("read trade row: %w", err)
		}
		if profitCol >= len(rec) {
			continue
		}
		profit, err := strconv.ParseFloat(rec[profitCol], 64)
		if err != nil {
			return TradesSummary{}, fmt.Errorf("parse profit %q: %w", rec[profitCol], err)
		}
		out.TotalTrades++
		out.NetProfit += profit
		switch {
		case profit > 0:
			out.WinTrades++
		case profit < 0:
			out.LossTrades++
		}
	}
	return out, nil
}

// WriteSummary writes a human-readable performance summary to w.
func WriteSummary(w io.Writer, runID string, pos *ledger.Position) error {
	total := pos.WinTrades() + pos.LossTrades() + pos.EvenTrades()
	var winRate float64
	if total > 0 {
		winRate = float64(pos.WinTrades()) / float64(total) * 100
	}
	var profitFactor float64
	if pos.GrossLoss() > 0 {
		profitFactor = pos.GrossProfit() / pos.GrossLoss()
	}

	_, err := fmt.Fprintf(w,
		"run: %s\n"+
			"net profit:      %.2f\n"+
			"gross profit:    %.2f\n"+
			"gross loss:      %.2f\n"+
			"profit factor:   %.2f\n"+
			"max drawdown:    %.2f\n"+
			"max run-up:      %.2f\n"+
			"closed trades:   %d\n"+
			"win trades:      %d\n"+
			"loss trades:     %d\n"+
			"even trades:     %d\n"+
			"win rate:        %.1f%%\n"+
			"open trades:     %d\n"+
			"open profit:     %.2f\n",
		runID,
		pos.NetProfit(),
		pos.GrossProfit(),
		pos.GrossLoss(),
		profitFactor,
		pos.MaxDrawdown(),
		pos.MaxRunup(),
		total,
		pos.WinTrades(),
		pos.LossTrades(),
		pos.EvenTrades(),
		winRate,
		pos.OpenTradesCount(),
		pos.OpenProfit(),
	)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
