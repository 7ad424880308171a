// Package dashboard turns a symbol's buffered candles into the view the UI
// renders: latest price, EMA, RSI, the classified signal and optionally the
// full indicator series.
package dashboard

import (
	"time"

	"cryptodash/internal/indicator"
	"cryptodash/internal/model"
	"cryptodash/internal/signal"
)

// MinBars is the smallest snapshot that is evaluated. Below it the view is "waiting".
const MinBars = 5

// WaitingMessage is shown while a symbol has fewer than MinBars bars.
const WaitingMessage = "Waiting for enough data..."

// View statuses.
const (
	StatusOK      = "ok"
	StatusWaiting = "waiting"
)

// Source is the read side of the candle store.
type Source interface {
	Get(symbol string) []model.Candle
}

// View is one evaluation of a symbol.
type View struct {
	Symbol  string    `json:"symbol"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	Bars    int       `json:"bars"`
	TS      time.Time `json:"ts"` // open time of the newest bar

	EvaluatedAt time.Time `json:"evaluated_at"`

	Price  model.Value    `json:"price"`
	EMA    model.Value    `json:"ema"`
	RSI    model.Value    `json:"rsi"`
	Signal *signal.Signal `json:"signal,omitempty"`

	Indicators *indicator.Latest `json:"indicators,omitempty"`
	Series     *indicator.Set    `json:"series,omitempty"`
	Candles    []model.Candle    `json:"candles,omitempty"`
}

// Ready reports whether the view carries an evaluation.
func (v View) Ready() bool { return v.Status == StatusOK }

// Evaluator computes views from a candle source.
type Evaluator struct {
	src    Source
	params indicator.Params
}

// NewEvaluator uses p for every indicator period; EMA and RSI periods also
// drive the signal.
func NewEvaluator(src Source, p indicator.Params) *Evaluator {
	return &Evaluator{src: src, params: p}
}

// Evaluate snapshots symbol and computes its view on the copy.
// withSeries adds the candles and every indicator series.
func (e *Evaluator) Evaluate(symbol string, withSeries bool) View {
	symbol = model.NormalizeSymbol(symbol)
	candles := e.src.Get(symbol)

	v := View{Symbol: symbol, Bars: len(candles), EvaluatedAt: time.Now().UTC()}
	if len(candles) > 0 {
		v.TS = candles[len(candles)-1].TS
	}
	if len(candles) < MinBars {
		v.Status = StatusWaiting
		v.Message = WaitingMessage
		return v
	}

	set := indicator.Compute(candles, e.params)
	latest := set.Latest()
	sig := signal.Classify(float64(latest.Close), float64(latest.EMA), float64(latest.RSI))

	v.Status = StatusOK
	v.Price = latest.Close
	v.EMA = latest.EMA
	v.RSI = latest.RSI
	v.Signal = &sig
	v.Indicators = &latest
	if withSeries {
		v.Series = set
		v.Candles = candles
	}
	return v
}
