package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"cryptodash/internal/marketdata/bus"
	"cryptodash/internal/marketdata/rest"
	"cryptodash/internal/model"
	"cryptodash/internal/notification"
	"cryptodash/internal/scheduler"
	"cryptodash/internal/signal"
	redisstore "cryptodash/internal/store/redis"
)

const statsSpec = "*/15 * * * * *"

// wireHooks connects component callbacks to metrics, health and the fan-out.
func (svc *Service) wireHooks() {
	m, h := svc.prom, svc.health

	ing := svc.ingestor
	ing.OnCandle = func(c model.Candle) {
		m.CandlesTotal.WithLabelValues(c.Symbol).Inc()
		m.CandleLag.Set(time.Since(c.TS).Seconds())
		h.SetLastCandleTime(time.Now())
		if !bus.Offer(svc.candleCh, c) {
			m.FanoutDropsTotal.WithLabelValues("input").Inc()
		}
	}
	ing.OnOutOfOrder = func(c model.Candle) {
		m.OutOfOrderTotal.Inc()
		log.Printf("[app] out-of-order bar for %s at %s", c.Symbol, c.TS.Format(time.RFC3339))
	}
	ing.OnDiscard = func(string) { m.OpenKlinesTotal.Inc() }
	ing.OnDecodeError = func(error) { m.DecodeErrors.Inc() }
	ing.OnConnect = func() { h.SetWSConnected(true) }
	ing.OnDisconnect = func(err error) {
		h.SetWSConnected(false)
		if err != nil {
			m.WSReconnects.Inc()
		}
	}

	svc.feed.OnSeed = func(r rest.SeedResult) {
		m.SeedResultsTotal.WithLabelValues(string(r.Status)).Inc()
		m.SeedDur.Observe(r.Elapsed.Seconds())
	}

	svc.fanout.OnDrop = func(name string) {
		m.FanoutDropsTotal.WithLabelValues(name).Inc()
	}

	svc.poller.OnEvaluate = func(_ string, d time.Duration) {
		m.EvaluateDur.Observe(d.Seconds())
	}
	svc.poller.OnSignalChange = func(_ string, _, to signal.Label) {
		m.SignalsTotal.WithLabelValues(string(to)).Inc()
	}
	svc.poller.OnAlert = func(notification.Alert) { m.AlertsTotal.Inc() }

	svc.hub.OnClientCount = func(n int) { m.WSClients.Set(float64(n)) }

	if svc.sqlWriter != nil {
		svc.sqlWriter.OnCommit = func(_ int, d time.Duration) {
			m.SQLiteCommitDur.Observe(d.Seconds())
		}
	}
	if svc.redisWriter != nil {
		cb := svc.redisWriter.Breaker()
		prev := cb.OnStateChange
		cb.OnStateChange = func(from, to redisstore.State) {
			if prev != nil {
				prev(from, to)
			}
			m.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				m.RedisCircuitBreakerTrips.Inc()
			}
		}
	}
}

// buildScheduler registers the archive prune and the gauge refresh jobs.
func (svc *Service) buildScheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	s := scheduler.New(ctx)
	s.OnPrune = func(n int64) { svc.prom.ArchivePrunedTotal.Add(float64(n)) }

	if svc.sqlWriter != nil && svc.cfg.ArchiveRetention > 0 {
		if err := s.RegisterPrune(svc.cfg.PruneCron, svc.sqlWriter, svc.cfg.ArchiveRetention); err != nil {
			return nil, fmt.Errorf("app: schedule prune: %w", err)
		}
	}
	if err := s.Register("stats", statsSpec, func(context.Context) { svc.refreshGauges() }); err != nil {
		return nil, fmt.Errorf("app: schedule stats: %w", err)
	}
	return s, nil
}

func (svc *Service) refreshGauges() {
	for _, sym := range svc.store.Symbols() {
		svc.prom.BufferedBars.WithLabelValues(sym).Set(float64(svc.store.Len(sym)))
	}
	report := func(name string, n, c int) {
		if c > 0 {
			svc.prom.ChannelSaturationPct.WithLabelValues(name).Set(float64(n) / float64(c) * 100)
		}
	}
	report("candle_input", len(svc.candleCh), cap(svc.candleCh))
	for _, st := range svc.fanout.ChannelStats() {
		report(st.Name, st.Len, st.Cap)
	}
}

func (svc *Service) redisClientOrNil() *goredis.Client {
	if svc.redisWriter == nil {
		return nil
	}
	return svc.redisWriter.Client()
}

func (svc *Service) sqlDBOrNil() *sql.DB {
	if svc.sqlWriter == nil {
		return nil
	}
	return svc.sqlWriter.DB()
}
