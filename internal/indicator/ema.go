package indicator

import (
	"math"

	"cryptodash/internal/model"
)

// EMA is the exponential moving average with alpha = 2/(period+1).
//
// The average is seeded with the first defined input and has no bias
// adjustment, so it is defined from that first value onwards and a constant
// series yields that constant at every index. NaN inputs carry the previous
// average forward.
//
// talib's Ema is not used: it seeds with an SMA of the first period values and
// leaves the lookback undefined, which changes every early value.
func EMA(values []float64, period int) model.Series {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)

	prev := math.NaN()
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			// carry
		case math.IsNaN(prev):
			prev = v
		default:
			prev += alpha * (v - prev)
		}
		out[i] = prev
	}
	return out
}
