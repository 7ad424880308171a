package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"cryptodash/internal/candlestore"
	"cryptodash/internal/dashboard"
	"cryptodash/internal/indicator"
	"cryptodash/internal/marketdata/replay"
	"cryptodash/internal/model"
	"cryptodash/internal/signal"
	sqlitestore "cryptodash/internal/store/sqlite"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay archived candles through the classifier and list signal changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, interval, asJSON := commonFlags(cmd)
		dbPath, _ := cmd.Flags().GetString("db")
		speed, _ := cmd.Flags().GetFloat64("speed")
		bufCap, _ := cmd.Flags().GetInt("buffer")

		reader, err := sqlitestore.NewReader(dbPath)
		if err != nil {
			return err
		}
		defer reader.Close()

		changes, total, err := runReplay(cmd.Context(), replay.New(reader, interval), symbol, speed, bufCap)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), changes)
		}
		renderChanges(cmd.OutOrStdout(), changes, total)
		return nil
	},
}

func init() {
	replayCmd.Flags().String("db", "data/candles.db", "archive path")
	replayCmd.Flags().Float64("speed", 0, "playback speed multiplier (0=max, 1=realtime)")
	replayCmd.Flags().Int("buffer", 500, "bars kept in the evaluation buffer")
}

// Change is one label transition seen during a replay.
type Change struct {
	TS    time.Time    `json:"ts"`
	Price float64      `json:"price"`
	RSI   model.Value  `json:"rsi"`
	From  signal.Label `json:"from,omitempty"`
	To    signal.Label `json:"to"`
}

// runReplay feeds every archived bar into a fresh buffer and evaluates after
// each append, the way the live poller would if it ticked once per bar.
func runReplay(ctx context.Context, r *replay.Replayer, symbol string, speed float64, bufCap int) ([]Change, int, error) {
	if bufCap <= 0 {
		return nil, 0, fmt.Errorf("buffer must be positive, got %d", bufCap)
	}
	store := candlestore.New(bufCap)
	eval := dashboard.NewEvaluator(store, indicator.DefaultParams())

	ch := make(chan model.Candle, 1024)
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx, []string{symbol}, time.Time{}, speed, ch)
		close(ch)
		errCh <- err
	}()

	var (
		changes []Change
		last    signal.Label
		total   int
	)
	for c := range ch {
		total++
		if !store.Append(symbol, c) {
			log.Printf("[replay] out-of-order bar at %s", c.TS.Format(time.RFC3339))
		}
		v := eval.Evaluate(symbol, false)
		if !v.Ready() || v.Signal.Label == last {
			continue
		}
		changes = append(changes, Change{TS: c.TS, Price: c.Close, RSI: v.RSI, From: last, To: v.Signal.Label})
		last = v.Signal.Label
	}
	return changes, total, <-errCh
}

func renderChanges(w io.Writer, changes []Change, total int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Bar", "Price", "RSI", "From", "To"})
	for _, c := range changes {
		from := string(c.From)
		if from == "" {
			from = "-"
		}
		table.Append([]string{c.TS.UTC().Format(time.DateTime), num(c.Price), num(float64(c.RSI)), from, string(c.To)})
	}
	table.SetFooter([]string{"", "", "", "Bars", strconv.Itoa(total)})
	table.Render()
}
