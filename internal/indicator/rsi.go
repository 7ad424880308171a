package indicator

import (
	"math"

	"cryptodash/internal/model"
)

// RSI is the Relative Strength Index over period bars using simple rolling
// means of gains and losses (not Wilder smoothing).
//
//	RS  = mean(gains, period) / mean(losses, period)
//	RSI = 100 - 100/(1+RS)
//
// The first delta exists at index 1, so RSI is defined from index period.
// A zero average loss saturates at 100. Output is always within [0, 100].
func RSI(closes []float64, period int) model.Series {
	n := len(closes)
	out := nanSeries(n)
	if period <= 0 || n < period+1 {
		return out
	}

	gains := make([]float64, n-1)
	losses := make([]float64, n-1)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i-1] = d
		} else {
			losses[i-1] = -d
		}
	}

	avgGain := rollingMean(gains, period)
	avgLoss := rollingMean(losses, period)

	for i := period - 1; i < n-1; i++ {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		// running sums can leave tiny negative residue
		if g < 0 {
			g = 0
		}
		if l <= 0 {
			out[i+1] = 100
			continue
		}
		out[i+1] = 100 - 100/(1+g/l)
	}
	return out
}
