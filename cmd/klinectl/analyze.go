package main

import (
	"github.com/spf13/cobra"

	"cryptodash/config"
	"cryptodash/internal/candlestore"
	"cryptodash/internal/dashboard"
	"cryptodash/internal/indicator"
	"cryptodash/internal/model"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Seed a buffer over REST and print the dashboard evaluation",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, interval, asJSON := commonFlags(cmd)
		limit, _ := cmd.Flags().GetInt("limit")
		url, _ := cmd.Flags().GetString("url")

		candles, err := fetchCandles(cmd.Context(), url, symbol, interval, limit)
		if err != nil {
			return err
		}
		view := evaluate(symbol, candles)
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), view)
		}
		renderView(cmd.OutOrStdout(), view)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntP("limit", "n", 100, "bars to seed the buffer with")
	analyzeCmd.Flags().String("url", config.DefaultRESTURL, "klines endpoint")
}

func evaluate(symbol string, candles []model.Candle) dashboard.View {
	store := candlestore.New(len(candles))
	store.Seed(symbol, candles)
	return dashboard.NewEvaluator(store, indicator.DefaultParams()).Evaluate(symbol, false)
}
