package indicator

import (
	"math"

	"cryptodash/internal/model"
)

// StochasticResult holds %K and %D.
type StochasticResult struct {
	K model.Series `json:"k"`
	D model.Series `json:"d"`
}

// Stochastic computes
//
//	%K = 100·(close - lowest low) / (highest high - lowest low)
//
// over kPeriod bars, and %D = rolling mean of %K over dPeriod bars.
// A flat window (zero range) gives NaN, and any NaN in a %D window makes that
// %D entry NaN.
func Stochastic(high, low, close []float64, kPeriod, dPeriod int) StochasticResult {
	n := len(close)
	hh := rollingMax(high, kPeriod)
	ll := rollingMin(low, kPeriod)

	k := nanSeries(n)
	for i := 0; i < n; i++ {
		rng := hh[i] - ll[i]
		if math.IsNaN(rng) || rng == 0 {
			continue
		}
		v := 100 * (close[i] - ll[i]) / rng
		// malformed bars can put close outside their own high/low
		k[i] = math.Max(0, math.Min(100, v))
	}
	return StochasticResult{K: k, D: rollingMean(k, dPeriod)}
}
