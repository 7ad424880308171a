package redis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"cryptodash/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const defaultLatestTTL = 30 * time.Minute

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Interval string // kline interval used in candle keys, e.g. "1m"

	MaxFailures  int           // consecutive failures before the breaker opens (default 5)
	ResetTimeout time.Duration // open duration before a probe (default 10s)
	MaxBuffered  int           // writes held while the breaker is open (default 10000)
}

// Writer publishes closed candles and dashboard views to Redis.
// Every write is a pipelined SET latest (TTL) + PUBLISH guarded by a circuit breaker;
// writes rejected while the breaker is open are buffered and replayed when it closes.
type Writer struct {
	client   *goredis.Client
	interval string
	cb       *CircuitBreaker
	pending  *pendingQueue
	sendMu   sync.Mutex

	// exec runs one pipelined write. Replaced in tests.
	exec func(ctx context.Context, w write) error
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// Breaker returns the circuit breaker guarding writes.
func (w *Writer) Breaker() *CircuitBreaker { return w.cb }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	w := newWriter(cfg)
	w.client = client
	w.exec = w.pipeline
	return w, nil
}

func newWriter(cfg WriterConfig) *Writer {
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}
	w := &Writer{
		interval: cfg.Interval,
		cb:       NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		pending:  newPendingQueue(cfg.MaxBuffered),
	}
	w.cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit %s -> %s", from, to)
	}
	return w
}

// CandleKey is the latest-candle key for symbol, e.g. "candle:1m:latest:btcusdt".
func CandleKey(interval, symbol string) string {
	return "candle:" + interval + ":latest:" + symbol
}

// CandleChannel is the pub/sub channel for closed candles of symbol.
func CandleChannel(interval, symbol string) string {
	return "pub:candle:" + interval + ":" + symbol
}

// ViewKey is the latest-dashboard key for symbol.
func ViewKey(symbol string) string { return "dash:latest:" + symbol }

// ViewChannel is the pub/sub channel for dashboard views of symbol.
func ViewChannel(symbol string) string { return "pub:dash:" + symbol }

// Run reads closed candles from candleCh and writes them to Redis.
// Blocks until ctx is cancelled or candleCh is closed.
func (w *Writer) Run(ctx context.Context, candleCh <-chan model.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-candleCh:
			if !ok {
				return
			}
			if err := w.WriteCandle(ctx, candle); err != nil {
				log.Printf("[redis] candle %s: %v", candle.Symbol, err)
			}
		}
	}
}

// WriteCandle stores candle as the symbol's latest bar and publishes it.
func (w *Writer) WriteCandle(ctx context.Context, candle model.Candle) error {
	return w.do(ctx, write{
		key:     CandleKey(w.interval, candle.Symbol),
		channel: CandleChannel(w.interval, candle.Symbol),
		payload: string(candle.JSON()),
	})
}

// PublishView stores an encoded dashboard view as the symbol's latest and publishes it.
func (w *Writer) PublishView(ctx context.Context, symbol string, payload []byte) error {
	return w.do(ctx, write{
		key:     ViewKey(symbol),
		channel: ViewChannel(symbol),
		payload: string(payload),
	})
}

// Pending returns the number of writes buffered while the breaker was open.
func (w *Writer) Pending() int { return w.pending.len() }

// do sends wr, or buffers it while the breaker is open. Writes that get through
// are serialized, and anything buffered goes out ahead of wr so the newest
// payload for a key is always the last one SET and published.
func (w *Writer) do(ctx context.Context, wr write) error {
	if err := w.cb.Allow(); err != nil {
		w.pending.push(wr)
		return nil
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	var err error
	if w.pending.len() > 0 {
		w.pending.push(wr)
		err = w.flush(ctx)
	} else {
		err = w.exec(ctx, wr)
	}
	w.cb.Record(err)
	return err
}

// pipeline performs SET latest with TTL and PUBLISH in one roundtrip.
func (w *Writer) pipeline(ctx context.Context, wr write) error {
	pipe := w.client.Pipeline()
	pipe.Set(ctx, wr.key, wr.payload, defaultLatestTTL)
	pipe.Publish(ctx, wr.channel, wr.payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline %s: %w", wr.key, err)
	}
	return nil
}

// flush sends buffered writes oldest first. A failure stops the replay and
// re-buffers what is left, unless a newer write for the same key arrived since.
func (w *Writer) flush(ctx context.Context) error {
	items := w.pending.drain()
	for i, wr := range items {
		if err := w.exec(ctx, wr); err != nil {
			log.Printf("[redis] flush stopped after %d writes: %v", i, err)
			for _, rest := range items[i:] {
				w.pending.requeue(rest)
			}
			return err
		}
	}
	if len(items) > 1 {
		log.Printf("[redis] flushed %d buffered writes", len(items))
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	if w.client == nil {
		return nil
	}
	return w.client.Close()
}
