// Package numeric provides the small set of rounding and absence helpers
// the ledger needs to stay byte-exact across bars: directional tick
// rounding for prices, decimal-based floor rounding for sizes (binary
// floats drift right at the collapse threshold a naive round would miss),
// and a uniform way to treat an optional numeric argument as absent.
package numeric

import (
	"math"

	"github.com/shopspring/decimal"
)

// IsAbsent reports whether an optional numeric argument was not supplied.
// The ledger uses *float64 uniformly for optional prices and offsets; nil
// is the absence marker everywhere one of these crosses an API boundary.
func IsAbsent(v *float64) bool { return v == nil }

// Ptr is a small convenience constructor for optional-float call sites
// (tests and the strategy API), so callers can write numeric.Ptr(1.5)
// instead of taking the address of a local.
func Ptr(v float64) *float64 { return &v }

// PriceRound snaps price to the instrument's tick grid. direction < 0
// floors to the tick below; direction >= 0 ceils to the tick at or above,
// except when price already sits exactly on a tick.
func PriceRound(price, direction, mintick float64) float64 {
	if mintick <= 0 {
		return price
	}
	ratio := roundHalfEven(price/mintick, 5)
	whole := math.Trunc(ratio)
	if direction < 0 {
		return whole * mintick
	}
	if ratio == whole {
		return whole * mintick
	}
	return (whole + 1) * mintick
}

// roundHalfEven rounds x to the given number of decimal places using
// round-half-to-even, matching the reference implementation's use of
// Python's round() rather than Go's round-half-away-from-zero default.
func roundHalfEven(x float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	v := x * shift
	floor := math.Floor(v)
	diff := v - floor
	switch {
	case diff < 0.5:
		return floor / shift
	case diff > 0.5:
		return (floor + 1) / shift
	default:
		if math.Mod(floor, 2) == 0 {
			return floor / shift
		}
		return (floor + 1) / shift
	}
}

// RoundToTick snaps price to the nearest tick (round-half-to-even), for
// stamping raw bar OHLC onto the instrument's tick grid. Unlike PriceRound
// this has no directional bias — it is not used for computing order
// trigger prices, only for normalizing market data.
func RoundToTick(price, mintick float64) float64 {
	if mintick <= 0 {
		return price
	}
	return roundHalfEven(price/mintick, 0) * mintick
}

// RoundSize floors qty's magnitude to the nearest multiple of
// 1/sizeRoundFactor using decimal arithmetic, preserving sign. Binary
// float64 multiplication/division drifts by enough ULPs right at a lot-size
// boundary that a naive math.Floor can round a fill a whole lot short or
// long; Decimal keeps the comparison exact.
func RoundSize(qty, sizeRoundFactor float64) float64 {
	if qty == 0 || sizeRoundFactor <= 0 {
		return qty
	}
	sign := decimal.NewFromInt(1)
	if qty < 0 {
		sign = decimal.NewFromInt(-1)
	}
	rfactor := decimal.NewFromFloat(sizeRoundFactor)
	qtyD := decimal.NewFromFloat(qty).Abs()

	scaled := qtyD.Mul(rfactor).Mul(decimal.NewFromInt(10))
	floored := scaled.Truncate(0).Mul(decimal.NewFromFloat(0.1))
	lots := floored.Truncate(0)

	result := sign.Mul(lots.Div(rfactor))
	f, _ := result.Float64()
	return f
}

// NearZero reports whether size is dust left over from float rounding
// rather than a genuine remaining position. The collapse threshold is
// fixed at one lot (1/sizeRoundFactor).
func NearZero(size, sizeRoundFactor float64) bool {
	if sizeRoundFactor <= 0 {
		return size == 0
	}
	return math.Abs(size) < 1/sizeRoundFactor
}
