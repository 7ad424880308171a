// Command klinectl fetches Binance klines and runs the dashboard evaluation
// once from the terminal.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "klinectl",
	Short:         "Inspect Binance klines, indicators and signals",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("symbol", "s", "btcusdt", "trading pair, e.g. btcusdt")
	rootCmd.PersistentFlags().StringP("interval", "i", "1m", "kline interval")
	rootCmd.PersistentFlags().Bool("json", false, "print JSON instead of a table")

	rootCmd.AddCommand(fetchCmd, analyzeCmd, historyCmd, replayCmd)
}

func main() {
	log.SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		log.Printf("klinectl: %v", err)
		os.Exit(1)
	}
}
