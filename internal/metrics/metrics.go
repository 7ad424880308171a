package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard service.
type Metrics struct {
	CandlesTotal     *prometheus.CounterVec // labels: symbol
	OutOfOrderTotal  prometheus.Counter
	OpenKlinesTotal  prometheus.Counter
	DecodeErrors     prometheus.Counter
	WSReconnects     prometheus.Counter
	CandleLag        prometheus.Gauge
	SeedResultsTotal *prometheus.CounterVec // labels: status
	SeedDur          prometheus.Histogram

	// Dashboard evaluation
	EvaluateDur  prometheus.Histogram
	SignalsTotal *prometheus.CounterVec // labels: label
	AlertsTotal  prometheus.Counter

	// Sinks
	SQLiteCommitDur          prometheus.Histogram
	FanoutDropsTotal         *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct     *prometheus.GaugeVec   // labels: channel_name
	RedisCircuitBreakerState prometheus.Gauge       // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	ArchivePrunedTotal       prometheus.Counter

	// Store
	BufferedBars *prometheus.GaugeVec // labels: symbol
	WSClients    prometheus.Gauge
}

// NewMetrics registers and returns all metrics on reg.
// Pass prometheus.DefaultRegisterer to expose them on /metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CandlesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptodash_candles_total",
			Help: "Closed candles appended to the store",
		}, []string{"symbol"}),
		OutOfOrderTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptodash_out_of_order_candles_total",
			Help: "Appended candles whose open time did not advance",
		}),
		OpenKlinesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptodash_open_klines_discarded_total",
			Help: "Forming (not closed) klines discarded from the stream",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptodash_stream_decode_errors_total",
			Help: "Stream frames skipped because they could not be decoded",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptodash_ws_disconnects_total",
			Help: "Stream connections that ended with an error",
		}),
		CandleLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cryptodash_candle_lag_seconds",
			Help: "Wall-clock time since the open time of the newest appended candle",
		}),
		SeedResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptodash_seed_results_total",
			Help: "Historical seed outcomes per status",
		}, []string{"status"}),
		SeedDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptodash_seed_duration_seconds",
			Help:    "Historical seed latency per symbol",
			Buckets: prometheus.DefBuckets,
		}),

		EvaluateDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptodash_evaluate_duration_seconds",
			Help:    "Indicator computation and classification latency per symbol",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptodash_signals_total",
			Help: "Signal label changes per label",
		}, []string{"label"}),
		AlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptodash_alerts_total",
			Help: "Strong-signal alerts sent",
		}),

		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptodash_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptodash_fanout_drops_total",
			Help: "Candles dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cryptodash_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cryptodash_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptodash_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		ArchivePrunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptodash_archive_pruned_rows_total",
			Help: "Archived candles removed by retention",
		}),

		BufferedBars: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cryptodash_buffered_bars",
			Help: "Bars held in the in-memory buffer per symbol",
		}, []string{"symbol"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cryptodash_ws_clients",
			Help: "Connected dashboard websocket clients",
		}),
	}

	reg.MustRegister(
		m.CandlesTotal,
		m.OutOfOrderTotal,
		m.OpenKlinesTotal,
		m.DecodeErrors,
		m.WSReconnects,
		m.CandleLag,
		m.SeedResultsTotal,
		m.SeedDur,
		m.EvaluateDur,
		m.SignalsTotal,
		m.AlertsTotal,
		m.SQLiteCommitDur,
		m.FanoutDropsTotal,
		m.ChannelSaturationPct,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.ArchivePrunedTotal,
		m.BufferedBars,
		m.WSClients,
	)

	return m
}

// HealthStatus represents the system health. Redis and SQLite only count
// toward the overall status when they are enabled.
type HealthStatus struct {
	mu sync.RWMutex

	WSConnected    bool
	LastCandleTime time.Time
	SeededSymbols  int
	RedisEnabled   bool
	RedisConnected bool
	SQLiteEnabled  bool
	SQLiteOK       bool

	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCandleTime(t time.Time) {
	h.mu.Lock()
	h.LastCandleTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetSeededSymbols(n int) {
	h.mu.Lock()
	h.SeededSymbols = n
	h.mu.Unlock()
}

// EnableRedis marks Redis as a required dependency.
func (h *HealthStatus) EnableRedis() {
	h.mu.Lock()
	h.RedisEnabled = true
	h.mu.Unlock()
}

// EnableSQLite marks the archive as a required dependency.
func (h *HealthStatus) EnableSQLite() {
	h.mu.Lock()
	h.SQLiteEnabled = true
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the archive and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil clients are skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// Report is the /healthz body.
type Report struct {
	Status          string  `json:"status"`
	Uptime          string  `json:"uptime"`
	WSConnected     bool    `json:"ws_connected"`
	LastCandleTime  string  `json:"last_candle_time"`
	CandleAge       string  `json:"candle_age"`
	SeededSymbols   int     `json:"seeded_symbols"`
	RedisEnabled    bool    `json:"redis_enabled"`
	RedisConnected  bool    `json:"redis_connected"`
	RedisLatencyMs  float64 `json:"redis_latency_ms"`
	SQLiteEnabled   bool    `json:"sqlite_enabled"`
	SQLiteOK        bool    `json:"sqlite_ok"`
	SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
	LastCheckAt     string  `json:"last_check_at"`
}

// Report evaluates the overall status: "healthy", "degraded" when the stream or
// an enabled sink is down, "unhealthy" when the stream is down and nothing is seeded.
func (h *HealthStatus) Report() Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.WSConnected || (h.RedisEnabled && !h.RedisConnected) || (h.SQLiteEnabled && !h.SQLiteOK) {
		status = "degraded"
	}
	if !h.WSConnected && h.SeededSymbols == 0 {
		status = "unhealthy"
	}

	candleAge := ""
	if !h.LastCandleTime.IsZero() {
		candleAge = time.Since(h.LastCandleTime).Round(time.Millisecond).String()
	}

	return Report{
		Status:          status,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:     h.WSConnected,
		LastCandleTime:  h.LastCandleTime.Format(time.RFC3339),
		CandleAge:       candleAge,
		SeededSymbols:   h.SeededSymbols,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteEnabled:   h.SQLiteEnabled,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep := h.Report()
	w.Header().Set("Content-Type", "application/json")
	if rep.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(rep)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
