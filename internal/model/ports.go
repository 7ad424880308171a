package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These decouple the feed and API from the concrete sinks (Redis, SQLite).
// The in-memory candle store is not behind a port: it is the one shared resource
// and every component holds it directly.

// CandleWriter consumes closed candles from a channel and persists or publishes them.
type CandleWriter interface {
	// Run reads candles from candleCh and writes them.
	// Blocks until ctx is cancelled or candleCh is closed.
	Run(ctx context.Context, candleCh <-chan Candle)

	// Close releases underlying resources.
	Close() error
}

// CandleReader reads archived candles.
type CandleReader interface {
	// ReadCandles returns up to limit candles for symbol/interval with TS > since,
	// ordered by timestamp ascending.
	ReadCandles(ctx context.Context, symbol, interval string, since time.Time, limit int) ([]Candle, error)

	// Close releases underlying resources.
	Close() error
}
