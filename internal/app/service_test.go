package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"cryptodash/config"
	"cryptodash/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Symbols:        []string{"btcusdt", "ethusdt"},
		KlineInterval:  "1m",
		BufferCap:      50,
		SeedLimit:      50,
		BinanceRESTURL: config.DefaultRESTURL,
		BinanceWSURL:   config.DefaultWSURL,
		PollInterval:   time.Second,
		HTTPAddr:       "127.0.0.1:0",
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := newService(testConfig(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("newService: %v", err)
	}
	return svc
}

// ────────────────────────────────────────────────────────────
// Wiring
// ────────────────────────────────────────────────────────────

func TestNew_OptionalSinksDisabled(t *testing.T) {
	svc := newTestService(t)
	if svc.redisWriter != nil || svc.sqlWriter != nil || svc.sqlReader != nil {
		t.Error("empty addresses must leave the sinks disabled")
	}
	if svc.metricSrv != nil {
		t.Error("empty metrics address must disable the metrics server")
	}
	if svc.redisClientOrNil() != nil || svc.sqlDBOrNil() != nil {
		t.Error("liveness probes must see nil handles")
	}
	if got := svc.apiDeps().History; got != nil {
		t.Errorf("history must be a nil interface, got %T", got)
	}
}

func TestHooks_CandleReachesFanoutInput(t *testing.T) {
	svc := newTestService(t)
	c := model.Candle{Symbol: "btcusdt", TS: time.Now().Add(-time.Minute), Close: 100}

	svc.ingestor.OnCandle(c)

	if n := len(svc.candleCh); n != 1 {
		t.Fatalf("expected 1 queued candle, got %d", n)
	}
	if v := testutil.ToFloat64(svc.prom.CandlesTotal.WithLabelValues("btcusdt")); v != 1 {
		t.Errorf("candles_total = %v, want 1", v)
	}
	if r := svc.health.Report(); r.CandleAge == "" {
		t.Errorf("expected a candle age in report %+v", r)
	}
}

func TestHooks_DisconnectMarksStreamDown(t *testing.T) {
	svc := newTestService(t)
	svc.ingestor.OnConnect()
	if !svc.health.Report().WSConnected {
		t.Fatal("expected ws connected after OnConnect")
	}
	svc.ingestor.OnDisconnect(errors.New("binance: read: unexpected EOF"))
	if svc.health.Report().WSConnected {
		t.Error("expected ws disconnected")
	}
	if v := testutil.ToFloat64(svc.prom.WSReconnects); v != 1 {
		t.Errorf("ws disconnects = %v, want 1", v)
	}
}

func TestHooks_CleanCloseIsNotCounted(t *testing.T) {
	svc := newTestService(t)
	svc.ingestor.OnConnect()
	svc.ingestor.OnDisconnect(nil)
	if svc.health.Report().WSConnected {
		t.Error("expected ws disconnected after shutdown")
	}
	if v := testutil.ToFloat64(svc.prom.WSReconnects); v != 0 {
		t.Errorf("ws disconnects = %v, want 0 on a clean close", v)
	}
}

// ────────────────────────────────────────────────────────────
// Gauges and stats
// ────────────────────────────────────────────────────────────

func TestRefreshGauges(t *testing.T) {
	svc := newTestService(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		svc.store.Append("btcusdt", model.Candle{Symbol: "btcusdt", TS: base.Add(time.Duration(i) * time.Minute)})
	}
	for i := 0; i < candleChanSize/2; i++ {
		svc.candleCh <- model.Candle{}
	}

	svc.refreshGauges()

	if v := testutil.ToFloat64(svc.prom.BufferedBars.WithLabelValues("btcusdt")); v != 3 {
		t.Errorf("buffered bars = %v, want 3", v)
	}
	if v := testutil.ToFloat64(svc.prom.ChannelSaturationPct.WithLabelValues("candle_input")); v != 50 {
		t.Errorf("saturation = %v, want 50", v)
	}
}

func TestStats(t *testing.T) {
	svc := newTestService(t)
	svc.store.Append("ethusdt", model.Candle{Symbol: "ethusdt", TS: time.Now()})

	s, ok := svc.stats().(Stats)
	if !ok {
		t.Fatalf("unexpected stats type %T", svc.stats())
	}
	if s.Session == "" {
		t.Error("expected a session id")
	}
	if s.Symbols["ethusdt"] != 1 {
		t.Errorf("expected 1 buffered ethusdt bar, got %+v", s.Symbols)
	}
	if s.RedisBreaker != "" {
		t.Errorf("redis breaker must be omitted without redis, got %q", s.RedisBreaker)
	}
}

func TestBuildScheduler_WithoutArchive(t *testing.T) {
	svc := newTestService(t)
	s, err := svc.buildScheduler(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n := len(s.Cron.Entries()); n != 1 {
		t.Errorf("expected only the stats job, got %d entries", n)
	}
}
