// Package signal maps the latest price, EMA and RSI of a symbol to a discrete
// trade recommendation.
package signal

// Label is the recommendation tier.
type Label string

const (
	StrongBuy  Label = "STRONG_BUY"
	Buy        Label = "BUY"
	StrongSell Label = "STRONG_SELL"
	Sell       Label = "SELL"
	WeakBuy    Label = "WEAK_BUY"
	WeakSell   Label = "WEAK_SELL"
	Hold       Label = "HOLD"
)

// Severity groups labels by conviction.
type Severity string

const (
	SeverityStrong  Severity = "strong"
	SeverityNormal  Severity = "normal"
	SeverityWeak    Severity = "weak"
	SeverityNeutral Severity = "neutral"
)

// RSI thresholds.
const (
	Oversold   = 30.0
	Overbought = 70.0
)

// Signal is the classifier output with its display text.
type Signal struct {
	Label       Label    `json:"label"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
}

// IsStrong reports whether the label is one of the two strong tiers.
func (s Signal) IsStrong() bool { return s.Severity == SeverityStrong }

var catalog = map[Label]Signal{
	StrongBuy: {
		Label: StrongBuy, Severity: SeverityStrong, Color: "#ff4444",
		Description: "STRONG BUY: RSI is oversold and price is above EMA. Strong upward signal.",
	},
	Buy: {
		Label: Buy, Severity: SeverityNormal, Color: "#dc3545",
		Description: "BUY: RSI is oversold but price is below EMA. Possible rebound ahead.",
	},
	StrongSell: {
		Label: StrongSell, Severity: SeverityStrong, Color: "#00C851",
		Description: "STRONG SELL: RSI is overbought and price is below EMA. Strong downward signal.",
	},
	Sell: {
		Label: Sell, Severity: SeverityNormal, Color: "#28a745",
		Description: "SELL: RSI is overbought but price is above EMA. May start to drop.",
	},
	WeakBuy: {
		Label: WeakBuy, Severity: SeverityWeak, Color: "#8bc34a",
		Description: "WEAK BUY: price is above EMA with RSI in the neutral band.",
	},
	WeakSell: {
		Label: WeakSell, Severity: SeverityWeak, Color: "#ff8a65",
		Description: "WEAK SELL: price is below EMA with RSI in the neutral band.",
	},
	Hold: {
		Label: Hold, Severity: SeverityNeutral, Color: "#e5c461",
		Description: "HOLD: no clear signal. Market is neutral; best to wait.",
	},
}

// For returns the full Signal for a label. Unknown labels map to Hold.
func For(l Label) Signal {
	if s, ok := catalog[l]; ok {
		return s
	}
	return catalog[Hold]
}

// Classify is total over all float inputs. Comparisons against NaN are false,
// so an undefined RSI skips the RSI tiers and an undefined EMA ends at Hold.
func Classify(price, ema, rsi float64) Signal {
	switch {
	case rsi < Oversold:
		if price > ema {
			return For(StrongBuy)
		}
		return For(Buy)
	case rsi > Overbought:
		if price < ema {
			return For(StrongSell)
		}
		return For(Sell)
	case price > ema:
		return For(WeakBuy)
	case price < ema:
		return For(WeakSell)
	default:
		return For(Hold)
	}
}
