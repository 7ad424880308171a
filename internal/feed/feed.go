// Package feed owns the market-data lifecycle: seed every symbol from REST,
// then stream closed bars into the candle store until stopped.
// Nothing starts until the host calls Start.
package feed

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"cryptodash/internal/marketdata/rest"
)

// ErrStarted is returned by a second call to Start.
var ErrStarted = errors.New("feed: already started")

// Seeder fetches history for every symbol and seeds the store.
type Seeder interface {
	SeedAll(ctx context.Context, symbols []string, store rest.Seeder, onResult func(rest.SeedResult)) []rest.SeedResult
}

// Streamer runs the live stream until ctx is cancelled or the connection ends.
type Streamer interface {
	Run(ctx context.Context) error
}

// Feed sequences the historical seed and the streaming ingestor.
type Feed struct {
	symbols []string
	store   rest.Seeder
	seeder  Seeder
	stream  Streamer

	// SessionID tags the logs of one Start/Stop cycle.
	SessionID string

	// OnSeed, if set, sees every seed result before the stream opens.
	OnSeed func(rest.SeedResult)

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// New creates a stopped Feed.
func New(symbols []string, store rest.Seeder, seeder Seeder, stream Streamer) *Feed {
	return &Feed{
		symbols:   symbols,
		store:     store,
		seeder:    seeder,
		stream:    stream,
		SessionID: uuid.NewString(),
		done:      make(chan struct{}),
	}
}

// Start seeds every symbol sequentially, then launches the stream on its own
// goroutine and returns the seed results. Seed failures are reported in the
// results, never as an error. The stream stops when ctx is cancelled or Stop is called.
func (f *Feed) Start(ctx context.Context) ([]rest.SeedResult, error) {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return nil, ErrStarted
	}
	f.started = true
	ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	log.Printf("[feed] session %s: seeding %d symbols", f.SessionID, len(f.symbols))
	results := f.seeder.SeedAll(ctx, f.symbols, f.store, f.OnSeed)
	seeded := 0
	for _, r := range results {
		if r.Status == rest.StatusOK {
			seeded++
		}
	}
	log.Printf("[feed] session %s: seeded %d/%d symbols, opening stream", f.SessionID, seeded, len(f.symbols))

	go func() {
		defer close(f.done)
		err := f.stream.Run(ctx)
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		if err != nil {
			log.Printf("[feed] session %s: stream ended: %v", f.SessionID, err)
		} else {
			log.Printf("[feed] session %s: stream stopped", f.SessionID)
		}
	}()
	return results, nil
}

// Stop cancels the stream and waits for its goroutine. Safe to call more than
// once and before Start.
func (f *Feed) Stop() {
	f.mu.Lock()
	started, cancel := f.started, f.cancel
	f.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-f.done
}

// Done is closed when the stream goroutine exits.
func (f *Feed) Done() <-chan struct{} { return f.done }

// Err returns the stream's terminal error once Done is closed.
// It is nil after a clean stop.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
