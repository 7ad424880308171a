// Package app wires the dashboard service: seed and stream into the candle
// store, evaluate on a poll loop, and serve views over HTTP and websocket.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cryptodash/config"
	"cryptodash/internal/api"
	"cryptodash/internal/candlestore"
	"cryptodash/internal/dashboard"
	"cryptodash/internal/feed"
	"cryptodash/internal/gateway"
	"cryptodash/internal/indicator"
	"cryptodash/internal/marketdata/binance"
	"cryptodash/internal/marketdata/bus"
	"cryptodash/internal/marketdata/rest"
	"cryptodash/internal/metrics"
	"cryptodash/internal/model"
	"cryptodash/internal/notification"
	"cryptodash/internal/scheduler"
	redisstore "cryptodash/internal/store/redis"
	sqlitestore "cryptodash/internal/store/sqlite"
)

const (
	candleChanSize = 5000
	fanoutBufSize  = 1000
	replayDepth    = 100
)

// Service owns every component of the dashboard process.
type Service struct {
	cfg *config.Config

	store     *candlestore.Store
	loader    *rest.Loader
	ingestor  *binance.Ingestor
	feed      *feed.Feed
	evaluator *dashboard.Evaluator
	poller    *dashboard.Poller
	hub       *gateway.Hub
	notifier  notification.Notifier

	fanout   *bus.FanOut[model.Candle]
	candleCh chan model.Candle

	redisWriter *redisstore.Writer
	sqlWriter   *sqlitestore.Writer
	sqlReader   *sqlitestore.Reader

	prom      *metrics.Metrics
	health    *metrics.HealthStatus
	metricSrv *metrics.Server
	httpSrv   *http.Server
	sched     *scheduler.Scheduler
}

// New builds a Service from cfg. Redis and SQLite are optional: a failed
// connection is logged and the service runs without that sink.
func New(cfg *config.Config) (*Service, error) {
	return newService(cfg, prometheus.DefaultRegisterer)
}

func newService(cfg *config.Config, reg prometheus.Registerer) (*Service, error) {
	svc := &Service{
		cfg:      cfg,
		store:    candlestore.New(cfg.BufferCap),
		prom:     metrics.NewMetrics(reg),
		health:   metrics.NewHealthStatus(),
		hub:      gateway.NewHub(replayDepth),
		notifier: notification.New(cfg.AlertWebhookURL, cfg.TelegramBotToken, cfg.TelegramChatID),
		fanout:   bus.New[model.Candle](fanoutBufSize),
		candleCh: make(chan model.Candle, candleChanSize),
	}

	svc.loader = rest.New(rest.Config{
		URL:      cfg.BinanceRESTURL,
		Interval: cfg.KlineInterval,
		Limit:    cfg.SeedLimit,
	})

	var err error
	svc.ingestor, err = binance.New(binance.Config{
		URL:       cfg.BinanceWSURL,
		Symbols:   cfg.Symbols,
		Interval:  cfg.KlineInterval,
		Reconnect: cfg.StreamReconnect,
	}, svc.store)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	svc.feed = feed.New(cfg.Symbols, svc.store, svc.loader, svc.ingestor)
	svc.evaluator = dashboard.NewEvaluator(svc.store, indicator.DefaultParams())

	if cfg.SQLitePath != "" {
		svc.openSQLite()
	}
	if cfg.RedisAddr != "" {
		svc.openRedis()
	}

	sinks := []dashboard.Sink{svc.hub}
	if svc.redisWriter != nil {
		sinks = append(sinks, svc.redisWriter)
	}
	svc.poller = dashboard.NewPoller(dashboard.PollerConfig{
		Symbols:  func() []string { return cfg.Symbols },
		Interval: cfg.PollInterval,
	}, svc.evaluator, svc.notifier, sinks...)

	svc.wireHooks()

	if cfg.MetricsAddr != "" {
		svc.metricSrv = metrics.NewServer(cfg.MetricsAddr, svc.health)
	}
	svc.httpSrv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(svc.apiDeps()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return svc, nil
}

func (svc *Service) openSQLite() {
	svc.health.EnableSQLite()
	if dir := filepath.Dir(svc.cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("[app] WARNING: create sqlite dir: %v (continuing without archive)", err)
			return
		}
	}
	w, err := sqlitestore.New(sqlitestore.WriterConfig{
		DBPath:   svc.cfg.SQLitePath,
		Interval: svc.cfg.KlineInterval,
	})
	if err != nil {
		log.Printf("[app] WARNING: sqlite writer init failed: %v (continuing without archive)", err)
		return
	}
	r, err := sqlitestore.NewReader(svc.cfg.SQLitePath)
	if err != nil {
		log.Printf("[app] WARNING: sqlite reader init failed: %v (history disabled)", err)
	}
	svc.sqlWriter, svc.sqlReader = w, r
	svc.health.SetSQLiteOK(true)
}

func (svc *Service) openRedis() {
	svc.health.EnableRedis()
	w, err := redisstore.New(redisstore.WriterConfig{
		Addr:     svc.cfg.RedisAddr,
		Password: svc.cfg.RedisPassword,
		Interval: svc.cfg.KlineInterval,
	})
	if err != nil {
		log.Printf("[app] WARNING: redis init failed: %v (continuing without cache)", err)
		return
	}
	svc.redisWriter = w
	svc.health.SetRedisConnected(true)
}

func (svc *Service) apiDeps() api.Deps {
	d := api.Deps{
		Symbols:   svc.cfg.Symbols,
		Interval:  svc.cfg.KlineInterval,
		Store:     svc.store,
		Evaluator: svc.evaluator,
		WS:        svc.hub,
		Stats:     svc.stats,
	}
	// A nil *Reader must not become a non-nil interface.
	if svc.sqlReader != nil {
		d.History = svc.sqlReader
	}
	return d
}

// Stats is the /api/v1/stats body.
type Stats struct {
	Session      string              `json:"session"`
	Symbols      map[string]int      `json:"buffered_bars"`
	WSClients    int                 `json:"ws_clients"`
	Latency      gateway.Percentiles `json:"broadcast_latency"`
	Channels     []bus.ChannelStat   `json:"channels"`
	RedisPending int                 `json:"redis_pending"`
	RedisBreaker string              `json:"redis_breaker,omitempty"`
	Health       metrics.Report      `json:"health"`
}

func (svc *Service) stats() any {
	s := Stats{
		Session:   svc.feed.SessionID,
		Symbols:   make(map[string]int),
		WSClients: svc.hub.ClientCount(),
		Latency:   svc.hub.Latency.Snapshot(),
		Channels:  svc.fanout.ChannelStats(),
		Health:    svc.health.Report(),
	}
	for _, sym := range svc.store.Symbols() {
		s.Symbols[sym] = svc.store.Len(sym)
	}
	if svc.redisWriter != nil {
		s.RedisPending = svc.redisWriter.Pending()
		s.RedisBreaker = svc.redisWriter.Breaker().CurrentState().String()
	}
	return s
}

// Run seeds the store, opens the stream and serves until ctx is cancelled.
// A stream that ends on its own is logged and reflected in /healthz; the
// dashboard keeps serving the buffered data.
func (svc *Service) Run(ctx context.Context) error {
	log.Printf("[app] starting dashboard for %v (%s bars, buffer %d)",
		svc.cfg.Symbols, svc.cfg.KlineInterval, svc.cfg.BufferCap)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	if svc.metricSrv != nil {
		svc.metricSrv.Start()
	}
	svc.health.StartLivenessChecker(ctx, svc.redisClientOrNil(), svc.sqlDBOrNil(), 10*time.Second)

	// ---- Sinks ----
	if svc.sqlWriter != nil {
		ch := svc.fanout.Subscribe("sqlite")
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.sqlWriter.Run(ctx, ch)
		}()
	}
	if svc.redisWriter != nil {
		ch := svc.fanout.Subscribe("redis")
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.redisWriter.Run(ctx, ch)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.fanout.Run(ctx, svc.candleCh)
	}()

	// ---- Scheduler ----
	sched, err := svc.buildScheduler(ctx)
	if err != nil {
		cancel()
		wg.Wait()
		return err
	}
	svc.sched = sched
	svc.sched.Start()

	// ---- HTTP ----
	go func() {
		log.Printf("[app] http listening on %s", svc.httpSrv.Addr)
		if err := svc.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[app] http server error: %v", err)
			cancel()
		}
	}()

	// ---- Seed then stream ----
	results, err := svc.feed.Start(ctx)
	if err != nil {
		cancel()
		svc.shutdown(&wg)
		return fmt.Errorf("app: start feed: %w", err)
	}
	seeded := 0
	for _, r := range results {
		if r.Status == rest.StatusOK {
			seeded++
		}
	}
	svc.health.SetSeededSymbols(seeded)

	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.poller.Run(ctx)
	}()

	log.Printf("[app] all systems running (seeded %d/%d). Press Ctrl+C to stop.", seeded, len(svc.cfg.Symbols))

	select {
	case <-ctx.Done():
	case <-svc.feed.Done():
		if err := svc.feed.Err(); err != nil {
			log.Printf("[app] WARNING: live stream ended: %v (serving buffered data)", err)
		}
		<-ctx.Done()
	}

	svc.shutdown(&wg)
	return nil
}

// shutdown stops producers first so the sinks drain what was already queued.
func (svc *Service) shutdown(wg *sync.WaitGroup) {
	log.Println("[app] shutdown signal received...")

	svc.feed.Stop()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := svc.httpSrv.Shutdown(shutCtx); err != nil {
		log.Printf("[app] http shutdown: %v", err)
	}
	if svc.sched != nil {
		svc.sched.Stop()
	}
	svc.hub.Close()

	wg.Wait()

	if svc.metricSrv != nil {
		svc.metricSrv.Stop(shutCtx)
	}
	if svc.sqlReader != nil {
		svc.sqlReader.Close()
	}
	if svc.sqlWriter != nil {
		svc.sqlWriter.Close()
	}
	if svc.redisWriter != nil {
		svc.redisWriter.Close()
	}
	log.Println("[app] shutdown complete.")
}
