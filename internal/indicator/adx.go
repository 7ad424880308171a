package indicator

import (
	"math"

	"cryptodash/internal/model"
)

// ADXResult holds the directional indicators and the ADX line.
type ADXResult struct {
	PlusDI  model.Series
	MinusDI model.Series
	DX      model.Series
	ADX     model.Series
}

// ADX computes the Average Directional Index over period bars.
//
// Directional movement per bar i>0:
//
//	up   = high[i] - high[i-1]
//	down = |low[i] - low[i-1]|
//	+DM  = up   if up > down and up > 0, else 0
//	-DM  = down if down > +DM and down > 0, else 0
//
// Both DMs are smoothed with a simple rolling mean and divided by ATR to give
// ±DI (scaled by 100). DX = 100·|+DI - -DI| / (+DI + -DI) and ADX is the rolling
// mean of DX, so ADX is defined from index 2·period-2.
// A zero ATR or zero DI sum gives NaN.
func ADX(high, low, close []float64, period int) ADXResult {
	n := len(close)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := math.Abs(low[i] - low[i-1])
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > plusDM[i] && down > 0 {
			minusDM[i] = down
		}
	}

	atr := ATR(high, low, close, period)
	avgPlus := rollingMean(plusDM, period)
	avgMinus := rollingMean(minusDM, period)

	plusDI := nanSeries(n)
	minusDI := nanSeries(n)
	dx := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) || atr[i] == 0 {
			continue
		}
		plusDI[i] = 100 * avgPlus[i] / atr[i]
		minusDI[i] = 100 * avgMinus[i] / atr[i]
		sum := plusDI[i] + minusDI[i]
		if math.IsNaN(sum) || sum == 0 {
			continue
		}
		dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
	}

	return ADXResult{
		PlusDI:  plusDI,
		MinusDI: minusDI,
		DX:      dx,
		ADX:     rollingMean(dx, period),
	}
}
