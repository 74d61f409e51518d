package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"stratengine/pkg/types"
)

// remoteBar is the JSON shape returned by the bar history endpoint.
type remoteBar struct {
	Time  int64   `json:"t"` // unix seconds
	Open  float64 `json:"o"`
	High  float64 `json:"h"`
	Low   float64 `json:"l"`
	Close float64 `json:"c"`
}

// RestyFeed fetches a symbol's bar history from a remote OHLC API in pages
// and replays it in order. It is built for backfilling a run against a live
// data provider rather than a canned CSV fixture.
type RestyFeed struct {
	client   *resty.Client
	symbol   string
	interval string
	from, to time.Time
	pageSize int

	buf    []types.Bar
	cursor time.Time
	done   bool
}

// NewRestyFeed builds a feed pointed at baseURL, covering [from, to) at the
// given bar interval (e.g. "1h", "1d").
func NewRestyFeed(baseURL, symbol, interval string, from, to time.Time) *RestyFeed {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(time.Second)

	return &RestyFeed{
		client:   client,
		symbol:   symbol,
		interval: interval,
		from:     from,
		to:       to,
		pageSize: 1000,
		cursor:   from,
	}
}

// Next implements Feed, transparently paging against the remote API as the
// buffered page is drained.
func (f *RestyFeed) Next() (types.Bar, bool) {
	if len(f.buf) == 0 {
		if f.done {
			return types.Bar{}, false
		}
		if err := f.fillPage(); err != nil || len(f.buf) == 0 {
			f.done = true
			return types.Bar{}, false
		}
	}
	bar := f.buf[0]
	f.buf = f.buf[1:]
	return bar, true
}

func (f *RestyFeed) fillPage() error {
	if !f.cursor.Before(f.to) {
		f.done = true
		return nil
	}

	var out struct {
		Bars []remoteBar `json:"bars"`
	}
	resp, err := f.client.R().
		SetContext(context.Background()).
		SetQueryParams(map[string]string{
			"symbol":   f.symbol,
			"interval": f.interval,
			"from":     strconvInt(f.cursor.Unix()),
			"to":       strconvInt(f.to.Unix()),
			"limit":    strconvInt(int64(f.pageSize)),
		}).
		SetResult(&out).
		Get("/bars")
	if err != nil {
		return fmt.Errorf("fetch bar page: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetch bar page: status %d", resp.StatusCode())
	}

	if len(out.Bars) == 0 {
		f.done = true
		return nil
	}

	f.buf = make([]types.Bar, 0, len(out.Bars))
	for _, rb := range out.Bars {
		f.buf = append(f.buf, types.Bar{
			Time:  time.Unix(rb.Time, 0).UTC(),
			Open:  rb.Open,
			High:  rb.High,
			Low:   rb.Low,
			Close: rb.Close,
		})
	}
	f.cursor = f.buf[len(f.buf)-1].Time.Add(time.Second)

	if len(out.Bars) < f.pageSize {
		f.done = true
	}
	return nil
}

func strconvInt(v int64) string {
	return fmt.Sprintf("%d", v)
}
