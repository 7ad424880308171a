package indicator

import (
	"math"
	"time"

	"cryptodash/internal/model"
)

// Params configures the periods used by Compute.
type Params struct {
	SMAPeriod       int
	EMAPeriod       int
	RSIPeriod       int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	BollingerPeriod int
	BollingerK      float64
	ATRPeriod       int
	StochK          int
	StochD          int
	CCIPeriod       int
	ADXPeriod       int
}

// DefaultParams returns the dashboard's standard periods.
func DefaultParams() Params {
	return Params{
		SMAPeriod:       20,
		EMAPeriod:       14,
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerPeriod: 20,
		BollingerK:      2,
		ATRPeriod:       14,
		StochK:          14,
		StochD:          3,
		CCIPeriod:       20,
		ADXPeriod:       14,
	}
}

// Set holds every indicator series for one candle snapshot, index-aligned with it.
type Set struct {
	Times []time.Time      `json:"ts"`
	Close model.Series     `json:"close"`
	SMA   model.Series     `json:"sma"`
	EMA   model.Series     `json:"ema"`
	RSI   model.Series     `json:"rsi"`
	MACD  MACDResult       `json:"macd"`
	BB    BollingerResult  `json:"bollinger"`
	ATR   model.Series     `json:"atr"`
	Stoch StochasticResult `json:"stochastic"`
	CCI   model.Series     `json:"cci"`
	ADX   model.Series     `json:"adx"`
	VWAP  model.Series     `json:"vwap"`
	OBV   model.Series     `json:"obv"`
}

// Compute runs every indicator over candles. The input is not modified.
func Compute(candles []model.Candle, p Params) *Set {
	_, high, low, close, volume := model.Columns(candles)

	times := make([]time.Time, len(candles))
	for i, c := range candles {
		times[i] = c.TS
	}

	return &Set{
		Times: times,
		Close: model.Series(close),
		SMA:   SMA(close, p.SMAPeriod),
		EMA:   EMA(close, p.EMAPeriod),
		RSI:   RSI(close, p.RSIPeriod),
		MACD:  MACD(close, p.MACDFast, p.MACDSlow, p.MACDSignal),
		BB:    Bollinger(close, p.BollingerPeriod, p.BollingerK),
		ATR:   ATR(high, low, close, p.ATRPeriod),
		Stoch: Stochastic(high, low, close, p.StochK, p.StochD),
		CCI:   CCI(high, low, close, p.CCIPeriod),
		ADX:   ADX(high, low, close, p.ADXPeriod).ADX,
		VWAP:  VWAP(high, low, close, volume),
		OBV:   OBV(close, volume),
	}
}

// Len returns the number of bars the set was computed over.
func (s *Set) Len() int { return len(s.Close) }

// Latest is the final value of every series. NaN marks "not yet computable".
type Latest struct {
	Close      model.Value `json:"close"`
	SMA        model.Value `json:"sma"`
	EMA        model.Value `json:"ema"`
	RSI        model.Value `json:"rsi"`
	MACD       model.Value `json:"macd"`
	MACDSignal model.Value `json:"macd_signal"`
	MACDHist   model.Value `json:"macd_hist"`
	BBUpper    model.Value `json:"bb_upper"`
	BBMiddle   model.Value `json:"bb_middle"`
	BBLower    model.Value `json:"bb_lower"`
	ATR        model.Value `json:"atr"`
	StochK     model.Value `json:"stoch_k"`
	StochD     model.Value `json:"stoch_d"`
	CCI        model.Value `json:"cci"`
	ADX        model.Value `json:"adx"`
	VWAP       model.Value `json:"vwap"`
	OBV        model.Value `json:"obv"`
}

// Latest extracts the last value of each series.
func (s *Set) Latest() Latest {
	v := func(x model.Series) model.Value { return model.Value(x.Last()) }
	return Latest{
		Close:      v(s.Close),
		SMA:        v(s.SMA),
		EMA:        v(s.EMA),
		RSI:        v(s.RSI),
		MACD:       v(s.MACD.Line),
		MACDSignal: v(s.MACD.Signal),
		MACDHist:   v(s.MACD.Histogram),
		BBUpper:    v(s.BB.Upper),
		BBMiddle:   v(s.BB.Middle),
		BBLower:    v(s.BB.Lower),
		ATR:        v(s.ATR),
		StochK:     v(s.Stoch.K),
		StochD:     v(s.Stoch.D),
		CCI:        v(s.CCI),
		ADX:        v(s.ADX),
		VWAP:       v(s.VWAP),
		OBV:        v(s.OBV),
	}
}

// Ready reports whether v holds a computable value.
func Ready(v model.Value) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
