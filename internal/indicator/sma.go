package indicator

import "cryptodash/internal/model"

// SMA is the simple moving average of values over period bars.
// The first period-1 entries are NaN.
func SMA(values []float64, period int) model.Series {
	return rollingMean(values, period)
}
