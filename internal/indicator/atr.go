package indicator

import (
	talib "github.com/markcheno/go-talib"

	"cryptodash/internal/model"
)

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses high-low.
func TrueRange(high, low, close []float64) model.Series {
	n := len(close)
	if n == 0 {
		return model.Series{}
	}
	tr := talib.TRange(high, low, close)
	tr[0] = high[0] - low[0]
	return model.Series(tr)
}

// ATR is the simple rolling mean of TrueRange over period bars,
// defined from index period-1.
func ATR(high, low, close []float64, period int) model.Series {
	return rollingMean(TrueRange(high, low, close), period)
}
