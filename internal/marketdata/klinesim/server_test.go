package klinesim

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"cryptodash/internal/candlestore"
	"cryptodash/internal/marketdata/binance"
	"cryptodash/internal/marketdata/rest"
)

func init() { gin.SetMode(gin.TestMode) }

func newSim(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	sim := New(Config{Symbols: []string{"btcusdt", "ethusdt"}, TicksPerBar: 3, Seed: 42})
	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(srv.Close)
	return sim, srv
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ────────────────────────────────────────────────────────────
// REST
// ────────────────────────────────────────────────────────────

func TestKlines_SeedThroughLoader(t *testing.T) {
	sim, srv := newSim(t)
	loader := rest.New(rest.Config{URL: srv.URL + "/api/v3/klines", Interval: "1m", Limit: 50})

	res := loader.FetchInitial(context.Background(), "BTCUSDT")
	if res.Status != rest.StatusOK {
		t.Fatalf("expected ok, got %s: %v", res.Status, res.Err)
	}
	if len(res.Candles) != 50 {
		t.Fatalf("expected 50 candles, got %d", len(res.Candles))
	}
	for i := 1; i < len(res.Candles); i++ {
		if got := res.Candles[i].TS.Sub(res.Candles[i-1].TS); got != time.Minute {
			t.Fatalf("bar %d: expected 1m spacing, got %v", i, got)
		}
	}
	last := res.Candles[len(res.Candles)-1]
	if want := sim.inst[0].cur.openTime.Add(-time.Minute); !last.TS.Equal(want) {
		t.Errorf("history must end before the live bar: got %v want %v", last.TS, want)
	}
	if last.Close != sim.inst[0].cur.o {
		t.Errorf("last close %v must equal live open %v", last.Close, sim.inst[0].cur.o)
	}
}

func TestKlines_Errors(t *testing.T) {
	h := New(Config{Symbols: []string{"btcusdt"}}).Handler()
	cases := []struct {
		query string
		want  string
	}{
		{"symbol=DOGEUSDT", "Invalid symbol"},
		{"symbol=BTCUSDT&limit=5000", "limit"},
		{"symbol=BTCUSDT&limit=x", "limit"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v3/klines?"+tc.query, nil))
		if rec.Code != 400 || !strings.Contains(rec.Body.String(), tc.want) {
			t.Errorf("%s: got %d %s", tc.query, rec.Code, rec.Body.String())
		}
	}
}

// ────────────────────────────────────────────────────────────
// Stream
// ────────────────────────────────────────────────────────────

func TestStream_FeedsIngestor(t *testing.T) {
	sim, srv := newSim(t)
	store := candlestore.New(100)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"

	ing, err := binance.New(binance.Config{URL: base, Symbols: []string{"btcusdt"}, Interval: "1m"}, store)
	if err != nil {
		t.Fatal(err)
	}
	discards := make(chan string, 64)
	ing.OnDiscard = func(sym string) { discards <- sym }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	waitFor(t, "stream client", func() bool { return sim.ClientCount() == 1 })
	for i := 0; i < 6; i++ {
		sim.Step()
	}
	waitFor(t, "two closed bars", func() bool { return store.Len("btcusdt") == 2 })

	if store.Len("ethusdt") != 0 {
		t.Error("unsubscribed symbol must not reach the store")
	}
	bars := store.Get("btcusdt")
	if got := bars[1].TS.Sub(bars[0].TS); got != time.Minute {
		t.Errorf("expected consecutive bars, got gap %v", got)
	}
	if bars[1].Open != bars[0].Close {
		t.Errorf("next bar must open at the previous close")
	}
	if len(discards) != 4 {
		t.Errorf("expected 4 forming frames discarded, got %d", len(discards))
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("ingestor did not stop")
	}
}

func TestStreamSymbols(t *testing.T) {
	got := streamSymbols("btcusdt@kline_1m/ETHUSDT@kline_1m/bad")
	if len(got) != 2 || !got["btcusdt"] || !got["ethusdt"] {
		t.Errorf("unexpected %v", got)
	}
	if len(streamSymbols("")) != 0 {
		t.Error("empty query must follow every symbol")
	}
}
