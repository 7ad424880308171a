package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"cryptodash/internal/dashboard"
	"cryptodash/internal/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// num formats v, printing "-" for values not yet computable.
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func renderCandles(w io.Writer, candles []model.Candle) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Open time", "Open", "High", "Low", "Close", "Volume"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, c := range candles {
		table.Append([]string{
			c.TS.UTC().Format(time.DateTime),
			num(c.Open), num(c.High), num(c.Low), num(c.Close), num(c.Volume),
		})
	}
	table.SetFooter([]string{"", "", "", "", "Bars", strconv.Itoa(len(candles))})
	table.Render()
}

func renderView(w io.Writer, v dashboard.View) {
	if !v.Ready() {
		fmt.Fprintf(w, "%s: %s (%d bars)\n", v.Symbol, v.Message, v.Bars)
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.AppendBulk([][]string{
		{"Symbol", v.Symbol},
		{"Bars", strconv.Itoa(v.Bars)},
		{"Last bar", v.TS.UTC().Format(time.DateTime)},
		{"Price", num(float64(v.Price))},
		{"EMA", num(float64(v.EMA))},
		{"RSI", num(float64(v.RSI))},
	})
	if v.Indicators != nil {
		in := v.Indicators
		table.AppendBulk([][]string{
			{"SMA", num(float64(in.SMA))},
			{"MACD", num(float64(in.MACD))},
			{"MACD signal", num(float64(in.MACDSignal))},
			{"BB upper", num(float64(in.BBUpper))},
			{"BB lower", num(float64(in.BBLower))},
			{"ATR", num(float64(in.ATR))},
			{"Stoch %K", num(float64(in.StochK))},
			{"CCI", num(float64(in.CCI))},
			{"ADX", num(float64(in.ADX))},
			{"VWAP", num(float64(in.VWAP))},
		})
	}
	if v.Signal != nil {
		table.Append([]string{"Signal", string(v.Signal.Label)})
	}
	table.Render()

	if v.Signal != nil {
		fmt.Fprintln(w, v.Signal.Description)
	}
}
