package indicator

import (
	talib "github.com/markcheno/go-talib"

	"cryptodash/internal/model"
)

// VWAP is the running volume-weighted average of the typical price since the
// start of the snapshot. Entries are NaN while cumulative volume is zero.
func VWAP(high, low, close, volume []float64) model.Series {
	tp := TypicalPrice(high, low, close)
	out := nanSeries(len(tp))

	var cumPV, cumVol float64
	for i := range tp {
		cumPV += tp[i] * volume[i]
		cumVol += volume[i]
		if cumVol == 0 {
			continue
		}
		out[i] = cumPV / cumVol
	}
	return out
}

// OBV is on-balance volume starting from zero at the first bar: volume is added
// on an up close, subtracted on a down close and ignored on an unchanged close.
func OBV(close, volume []float64) model.Series {
	n := len(close)
	if n == 0 {
		return model.Series{}
	}
	if hasNaN(close) || hasNaN(volume) {
		return nanSeries(n)
	}
	// talib starts the running total at volume[0]
	obv := talib.Obv(close, volume)
	base := volume[0]
	for i := range obv {
		obv[i] -= base
	}
	return model.Series(obv)
}
