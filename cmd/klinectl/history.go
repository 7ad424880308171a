package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	sqlitestore "cryptodash/internal/store/sqlite"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Read archived candles from the SQLite database",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, interval, asJSON := commonFlags(cmd)
		dbPath, _ := cmd.Flags().GetString("db")
		sinceStr, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")

		var since time.Time
		if sinceStr != "" {
			t, err := time.Parse(time.RFC3339, sinceStr)
			if err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			since = t
		}

		r, err := sqlitestore.NewReader(dbPath)
		if err != nil {
			return err
		}
		defer r.Close()

		candles, err := r.ReadCandles(cmd.Context(), symbol, interval, since, limit)
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
	historyCmd.Flags().String("db", "data/candles.db", "archive path")
	historyCmd.Flags().String("since", "", "only bars opened after this RFC3339 time")
	historyCmd.Flags().IntP("limit", "n", 100, "max bars, 0 for all")
}
