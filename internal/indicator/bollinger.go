package indicator

import "cryptodash/internal/model"

// BollingerResult holds the three bands.
type BollingerResult struct {
	Upper  model.Series `json:"upper"`
	Middle model.Series `json:"middle"`
	Lower  model.Series `json:"lower"`
}

// Bollinger computes middle = SMA(period) and upper/lower = middle ± k·stddev,
// where stddev is the sample standard deviation over the same window.
func Bollinger(closes []float64, period int, k float64) BollingerResult {
	mid := SMA(closes, period)
	sd := rollingStd(closes, period)

	upper := make(model.Series, len(closes))
	lower := make(model.Series, len(closes))
	for i := range closes {
		upper[i] = mid[i] + k*sd[i]
		lower[i] = mid[i] - k*sd[i]
	}
	return BollingerResult{Upper: upper, Middle: mid, Lower: lower}
}
