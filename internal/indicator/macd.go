package indicator

import "cryptodash/internal/model"

// MACDResult holds the three MACD series.
type MACDResult struct {
	Line      model.Series `json:"line"`
	Signal    model.Series `json:"signal"`
	Histogram model.Series `json:"histogram"`
}

// MACD computes line = EMA(fast) - EMA(slow), signal = EMA(signal) of the line,
// and histogram = line - signal. With EMA seeded from the first close, all three
// are defined from index 0.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)

	line := make(model.Series, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig := EMA(line, signal)

	hist := make(model.Series, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return MACDResult{Line: line, Signal: sig, Histogram: hist}
}
