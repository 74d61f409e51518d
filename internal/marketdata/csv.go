package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"stratengine/pkg/types"
)

// CSVFeed reads bars from a local CSV file with a header row:
// time,open,high,low,close. time is parsed as RFC3339.
type CSVFeed struct {
	rows []types.Bar
	pos  int
}

// OpenCSVFeed loads the entire file into memory and returns a Feed over it.
// Backtests are bounded in size, so loading up front keeps Next() simple and
// allocation-free.
func OpenCSVFeed(path string) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bar file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 5 {
		return nil, fmt.Errorf("bar file header has %d columns, want at least 5 (time,open,high,low,close)", len(header))
	}

	var rows []types.Bar
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bar row: %w", err)
		}
		bar, err := parseBarRow(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, bar)
	}

	return &CSVFeed{rows: rows}, nil
}

func parseBarRow(rec []string) (types.Bar, error) {
	if len(rec) < 5 {
		return types.Bar{}, fmt.Errorf("bar row has %d fields, want at least 5", len(rec))
	}
	t, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return types.Bar{}, fmt.Errorf("parse bar time %q: %w", rec[0], err)
	}
	o, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("parse open %q: %w", rec[1], err)
	}
	h, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("parse high %q: %w", rec[2], err)
	}
	l, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("parse low %q: %w", rec[3], err)
	}
	c, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return types.Bar{}, fmt.Errorf("parse close %q: %w", rec[4], err)
	}
	return types.Bar{Time: t, Open: o, High: h, Low: l, Close: c}, nil
}

// Next implements Feed.
func (c *CSVFeed) Next() (types.Bar, bool) {
	if c.pos >= len(c.rows) {
		return types.Bar{}, false
	}
	bar := c.rows[c.pos]
	c.pos++
	return bar, true
}

// Len returns the total bar count, regardless of how far Next has advanced.
func (c *CSVFeed) Len() int { return len(c.rows) }
