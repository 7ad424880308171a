package indicator

import (
	"math"

	"cryptodash/internal/model"
)

// cciConstant is Lambert's scaling factor.
const cciConstant = 0.015

// CCI is the Commodity Channel Index over period bars:
//
//	(tp - SMA(tp)) / (0.015 · MAD(tp))
//
// with tp the typical price and MAD the mean absolute deviation from the
// window mean. A zero MAD gives NaN.
//
// talib's Cci is avoided because it returns 0 instead of an undefined value on
// a flat window.
func CCI(high, low, close []float64, period int) model.Series {
	tp := TypicalPrice(high, low, close)
	sma := SMA(tp, period)
	mad := rollingApply(tp, period, meanAbsDeviation)

	out := nanSeries(len(tp))
	for i := range tp {
		if math.IsNaN(sma[i]) || math.IsNaN(mad[i]) || mad[i] == 0 {
			continue
		}
		out[i] = (tp[i] - sma[i]) / (cciConstant * mad[i])
	}
	return out
}
