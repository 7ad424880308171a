package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Candle is one closed OHLCV bar for a single symbol.
// Symbol is the lower-case store key, e.g. "btcusdt". Prices are quote-asset floats.
type Candle struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bar open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// TypicalPrice returns (high+low+close)/3.
func (c *Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// NormalizeSymbol lower-cases and trims a symbol so "BTCUSDT" and " btcusdt" share a key.
func NormalizeSymbol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Columns splits candles into parallel open/high/low/close/volume arrays aligned by index.
func Columns(candles []Candle) (open, high, low, close, volume []float64) {
	n := len(candles)
	open = make([]float64, n)
	high = make([]float64, n)
	low = make([]float64, n)
	close = make([]float64, n)
	volume = make([]float64, n)
	for i := range candles {
		open[i] = candles[i].Open
		high[i] = candles[i].High
		low[i] = candles[i].Low
		close[i] = candles[i].Close
		volume[i] = candles[i].Volume
	}
	return
}
