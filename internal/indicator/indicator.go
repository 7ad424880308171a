// Package indicator computes technical indicator series over a candle snapshot.
//
// Every function is pure: it takes parallel numeric arrays (or candles), never
// mutates its input, and returns series of the same length as the input with NaN
// wherever the lookback window is not yet full or a denominator is zero.
// Indicators are recomputed over the whole snapshot on every call; there is no
// incremental state.
package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"
	"github.com/montanaflynn/stats"

	"cryptodash/internal/model"
)

// nanSeries returns a series of n NaNs.
func nanSeries(n int) model.Series {
	out := make(model.Series, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// blankLeading overwrites the first n entries with NaN. talib fills its
// lookback region with zeros, which would read as real values.
func blankLeading(s []float64, n int) model.Series {
	if n > len(s) {
		n = len(s)
	}
	for i := 0; i < n; i++ {
		s[i] = math.NaN()
	}
	return model.Series(s)
}

// rollingApply evaluates fn over every full window of length period.
// Windows containing NaN produce NaN.
func rollingApply(values []float64, period int, fn func(window []float64) float64) model.Series {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		w := values[i-period+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = fn(w)
	}
	return out
}

// rollingMean is the trailing mean over period bars, defined from index period-1.
func rollingMean(values []float64, period int) model.Series {
	if period <= 0 || len(values) < period {
		return nanSeries(len(values))
	}
	if hasNaN(values) {
		return rollingApply(values, period, mean)
	}
	if period == 1 {
		out := make(model.Series, len(values))
		copy(out, values)
		return out
	}
	return blankLeading(talib.Sma(values, period), period-1)
}

// rollingStd is the trailing sample standard deviation (n-1 denominator).
func rollingStd(values []float64, period int) model.Series {
	return rollingApply(values, period, func(w []float64) float64 {
		sd, err := stats.StandardDeviationSample(w)
		if err != nil {
			return math.NaN()
		}
		return sd
	})
}

// rollingMax and rollingMin return the trailing extreme over period bars.
func rollingMax(values []float64, period int) model.Series {
	if period <= 0 || len(values) < period {
		return nanSeries(len(values))
	}
	if period == 1 {
		out := make(model.Series, len(values))
		copy(out, values)
		return out
	}
	return blankLeading(talib.Max(values, period), period-1)
}

func rollingMin(values []float64, period int) model.Series {
	if period <= 0 || len(values) < period {
		return nanSeries(len(values))
	}
	if period == 1 {
		out := make(model.Series, len(values))
		copy(out, values)
		return out
	}
	return blankLeading(talib.Min(values, period), period-1)
}

func mean(w []float64) float64 {
	m, err := stats.Mean(w)
	if err != nil {
		return math.NaN()
	}
	return m
}

// meanAbsDeviation is mean(|x - mean(x)|) over the window.
func meanAbsDeviation(w []float64) float64 {
	m := mean(w)
	dev := make([]float64, len(w))
	for i, v := range w {
		dev[i] = math.Abs(v - m)
	}
	return mean(dev)
}

// TypicalPrice returns (high+low+close)/3 per bar.
func TypicalPrice(high, low, close []float64) model.Series {
	out := make(model.Series, len(close))
	for i := range close {
		out[i] = (high[i] + low[i] + close[i]) / 3
	}
	return out
}
