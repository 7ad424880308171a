// Package replay plays archived candles back in open-time order so the
// signal classifier can be exercised without a live stream.
package replay

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"cryptodash/internal/model"
)

// maxGap caps the simulated wait between two bars.
const maxGap = 5 * time.Second

// Replayer reads archived candles and re-emits them.
type Replayer struct {
	reader   model.CandleReader
	interval string
}

// New creates a Replayer over reader for one kline interval.
func New(reader model.CandleReader, interval string) *Replayer {
	return &Replayer{reader: reader, interval: interval}
}

// Run emits every archived candle for symbols opened after since into out,
// interleaved by open time. speed scales the gaps between bars: 1 is real
// time, 100 is 100x, 0 is as fast as possible. out is not closed.
func (r *Replayer) Run(ctx context.Context, symbols []string, since time.Time, speed float64, out chan<- model.Candle) (int, error) {
	var all []model.Candle
	for _, sym := range symbols {
		candles, err := r.reader.ReadCandles(ctx, model.NormalizeSymbol(sym), r.interval, since, 0)
		if err != nil {
			return 0, fmt.Errorf("replay: read %s: %w", sym, err)
		}
		all = append(all, candles...)
	}
	if len(all) == 0 {
		log.Println("[replay] no archived candles found")
		return 0, nil
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].TS.Before(all[j].TS) })

	log.Printf("[replay] loaded %d candles for %d symbols, speed=%.1fx", len(all), len(symbols), speed)

	var prevTS time.Time
	emitted := 0
	for _, c := range all {
		if speed > 0 && !prevTS.IsZero() {
			if gap := c.TS.Sub(prevTS); gap > 0 {
				wait := time.Duration(float64(gap) / speed)
				if wait > maxGap {
					wait = maxGap
				}
				select {
				case <-ctx.Done():
					return emitted, ctx.Err()
				case <-time.After(wait):
				}
			}
		}
		prevTS = c.TS

		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d candles", emitted)
			return emitted, ctx.Err()
		case out <- c:
			emitted++
		}
	}

	log.Printf("[replay] completed: %d candles replayed", emitted)
	return emitted, nil
}
