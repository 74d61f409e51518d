package main

import (
	"fmt"

	"stratengine/internal/ledger"
	"stratengine/internal/script"
	"stratengine/pkg/types"
)

// smaCrossover is the bundled demo strategy: goes long when a fast SMA
// crosses above a slow SMA, flat (via CloseAll) on the cross back down. It
// exists to exercise the full order lifecycle end to end without requiring
// an external strategy plugin.
type smaCrossover struct {
	fastLen, slowLen int
	closes           []float64
	wasAbove         bool
	haveCross        bool
	entries          int
}

func newSMACrossover(fastLen, slowLen int) *smaCrossover {
	return &smaCrossover{fastLen: fastLen, slowLen: slowLen}
}

func (s *smaCrossover) run(ctx *script.Context) {
	s.closes = append(s.closes, ctx.Bar.Close)
	if len(s.closes) < s.slowLen {
		return
	}

	fast := sma(s.closes, s.fastLen)
	slow := sma(s.closes, s.slowLen)
	above := fast > slow

	if !s.haveCross {
		s.wasAbove = above
		s.haveCross = true
		return
	}

	switch {
	case above && !s.wasAbove:
		ctx.CancelAll()
		s.entries++
		ctx.Entry(ledger.EntryParams{
			ID:        fmt.Sprintf("sma_long_%d", s.entries),
			Direction: types.Long,
			Comment:   "fast sma crossed above slow sma",
		})
	case !above && s.wasAbove:
		ctx.CloseAll("sma crossed back below", false)
	}
	s.wasAbove = above
}

func sma(closes []float64, n int) float64 {
	if n <= 0 || n > len(closes) {
		return 0
	}
	var sum float64
	for _, c := range closes[len(closes)-n:] {
		sum += c
	}
	return sum / float64(n)
}
