package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cryptodash/internal/candlestore"
	"cryptodash/internal/marketdata/rest"
	"cryptodash/internal/model"
)

type fakeSeeder struct {
	mu    sync.Mutex
	calls []string
}

func (s *fakeSeeder) SeedAll(ctx context.Context, symbols []string, store rest.Seeder, onResult func(rest.SeedResult)) []rest.SeedResult {
	var out []rest.SeedResult
	for _, sym := range symbols {
		s.mu.Lock()
		s.calls = append(s.calls, sym)
		s.mu.Unlock()
		res := rest.SeedResult{Symbol: sym, Status: rest.StatusFailed, Err: errors.New("timeout")}
		if sym == "btcusdt" {
			res = rest.SeedResult{Symbol: sym, Status: rest.StatusOK, Candles: []model.Candle{{Symbol: sym, Close: 1}}}
			store.Seed(sym, res.Candles)
		}
		if onResult != nil {
			onResult(res)
		}
		out = append(out, res)
	}
	return out
}

// fakeStream records whether the store was already seeded when Run began.
type fakeStream struct {
	store     *candlestore.Store
	seededLen chan int
	err       error
}

func (s *fakeStream) Run(ctx context.Context) error {
	s.seededLen <- s.store.Len("btcusdt")
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return nil
}

func TestFeed_SeedsBeforeStreaming(t *testing.T) {
	store := candlestore.New(0)
	stream := &fakeStream{store: store, seededLen: make(chan int, 1)}
	f := New([]string{"btcusdt", "ethusdt"}, store, &fakeSeeder{}, stream)

	var seen []rest.Status
	f.OnSeed = func(r rest.SeedResult) { seen = append(seen, r.Status) }

	results, err := f.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Status != rest.StatusOK || results[1].Status != rest.StatusFailed {
		t.Errorf("unexpected results %+v", results)
	}
	if len(seen) != 2 {
		t.Errorf("OnSeed saw %d results", len(seen))
	}

	select {
	case n := <-stream.seededLen:
		if n != 1 {
			t.Errorf("stream opened before seeding finished (len=%d)", n)
		}
	case <-time.After(time.Second):
		t.Fatal("stream never started")
	}

	f.Stop()
	select {
	case <-f.Done():
	default:
		t.Fatal("Done must be closed after Stop returns")
	}
	if f.Err() != nil {
		t.Errorf("clean stop should leave no error, got %v", f.Err())
	}
	f.Stop() // second stop is a no-op
}

func TestFeed_StreamErrorSurfacesOnDone(t *testing.T) {
	store := candlestore.New(0)
	boom := errors.New("connection reset")
	stream := &fakeStream{store: store, seededLen: make(chan int, 1), err: boom}
	f := New([]string{"btcusdt"}, store, &fakeSeeder{}, stream)

	if _, err := f.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after stream error")
	}
	if !errors.Is(f.Err(), boom) {
		t.Errorf("expected stream error, got %v", f.Err())
	}
}

func TestFeed_StartTwice(t *testing.T) {
	store := candlestore.New(0)
	stream := &fakeStream{store: store, seededLen: make(chan int, 1)}
	f := New(nil, store, &fakeSeeder{}, stream)
	defer f.Stop()

	if _, err := f.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Start(context.Background()); !errors.Is(err, ErrStarted) {
		t.Errorf("expected ErrStarted, got %v", err)
	}
}

func TestFeed_StopBeforeStart(t *testing.T) {
	f := New(nil, candlestore.New(0), &fakeSeeder{}, &fakeStream{})
	f.Stop()
	if f.SessionID == "" {
		t.Error("expected a session id")
	}
}
