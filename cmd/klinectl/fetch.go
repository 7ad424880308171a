package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cryptodash/config"
	"cryptodash/internal/marketdata/rest"
	"cryptodash/internal/model"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch recent closed klines over REST",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, interval, asJSON := commonFlags(cmd)
		limit, _ := cmd.Flags().GetInt("limit")
		url, _ := cmd.Flags().GetString("url")

		candles, err := fetchCandles(cmd.Context(), url, symbol, interval, limit)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), candles)
		}
		renderCandles(cmd.OutOrStdout(), candles)
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntP("limit", "n", 20, "number of bars")
	fetchCmd.Flags().String("url", config.DefaultRESTURL, "klines endpoint")
}

func commonFlags(cmd *cobra.Command) (symbol, interval string, asJSON bool) {
	symbol, _ = cmd.Flags().GetString("symbol")
	interval, _ = cmd.Flags().GetString("interval")
	asJSON, _ = cmd.Flags().GetBool("json")
	return model.NormalizeSymbol(symbol), interval, asJSON
}

func fetchCandles(ctx context.Context, url, symbol, interval string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	loader := rest.New(rest.Config{URL: url, Interval: interval, Limit: limit})
	res := loader.FetchInitial(ctx, symbol)
	switch res.Status {
	case rest.StatusFailed:
		return nil, fmt.Errorf("fetch %s: %w", symbol, res.Err)
	case rest.StatusEmpty:
		return nil, fmt.Errorf("fetch %s: no klines returned", symbol)
	}
	return res.Candles, nil
}
