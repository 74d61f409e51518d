// Package marketdata supplies the bar stream a backtest run walks forward.
// A Feed yields bars in time order; CSVFeed reads them from a local file and
// RestyFeed fetches them from a remote OHLC API, mirroring the way the
// teacher bot split local book state from its resty-backed Gamma scanner.
package marketdata

import "stratengine/pkg/types"

// Feed yields bars one at a time in chronological order.
type Feed interface {
	// Next returns the next bar and true, or a zero Bar and false once the
	// feed is exhausted.
	Next() (types.Bar, bool)
}
