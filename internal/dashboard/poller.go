package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"cryptodash/internal/logger"
	"cryptodash/internal/notification"
	"cryptodash/internal/signal"
)

// Sink receives every encoded view. The Redis writer and the websocket hub implement it.
type Sink interface {
	PublishView(ctx context.Context, symbol string, payload []byte) error
}

// PollerConfig configures the Poller.
type PollerConfig struct {
	Symbols  func() []string
	Interval time.Duration // defaults to 2s
}

// Poller evaluates every tracked symbol on a ticker, hands the views to its
// sinks and alerts when a symbol's label changes into a strong tier.
type Poller struct {
	eval     *Evaluator
	symbols  func() []string
	interval time.Duration
	sinks    []Sink
	notifier notification.Notifier

	mu     sync.Mutex
	labels map[string]signal.Label

	// Optional hooks.
	OnEvaluate     func(symbol string, d time.Duration)
	OnSignalChange func(symbol string, from, to signal.Label)
	OnAlert        func(a notification.Alert)
}

// NewPoller creates a Poller. notifier may be nil.
func NewPoller(cfg PollerConfig, eval *Evaluator, notifier notification.Notifier, sinks ...Sink) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Poller{
		eval:     eval,
		symbols:  cfg.Symbols,
		interval: cfg.Interval,
		sinks:    sinks,
		notifier: notifier,
		labels:   make(map[string]signal.Label),
	}
}

// Run evaluates immediately and then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one evaluation pass over every symbol.
func (p *Poller) Tick(ctx context.Context) {
	for _, sym := range p.symbols() {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		v := p.eval.Evaluate(sym, false)
		if p.OnEvaluate != nil {
			p.OnEvaluate(v.Symbol, time.Since(start))
		}
		p.publish(ctx, v)
		if v.Ready() {
			p.track(ctx, v)
		}
	}
}

// Label returns the last observed label for symbol.
func (p *Poller) Label(symbol string) (signal.Label, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.labels[symbol]
	return l, ok
}

func (p *Poller) publish(ctx context.Context, v View) {
	if len(p.sinks) == 0 {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("[dashboard] marshal %s: %v", v.Symbol, err)
		return
	}
	for _, s := range p.sinks {
		if err := s.PublishView(ctx, v.Symbol, payload); err != nil {
			log.Printf("[dashboard] publish %s: %v", v.Symbol, err)
		}
	}
}

// track records the label and alerts on a change into a strong tier. The first
// label seen for a symbol is a baseline and never alerts.
func (p *Poller) track(ctx context.Context, v View) {
	to := v.Signal.Label
	p.mu.Lock()
	from, seen := p.labels[v.Symbol]
	p.labels[v.Symbol] = to
	p.mu.Unlock()

	if !seen || from == to {
		return
	}
	if p.OnSignalChange != nil {
		p.OnSignalChange(v.Symbol, from, to)
	}
	if !v.Signal.IsStrong() || p.notifier == nil {
		return
	}

	alert := notification.NewSignalAlert(v.Symbol, *v.Signal, float64(v.Price), v.TS)
	lg := logger.Symbol(logger.WithTraceID(ctx, logger.GenerateTraceID(v.Symbol, v.TS)), v.Symbol)
	lg.Info("strong signal", "from", string(from), "to", string(to), "alert_id", alert.ID)
	if err := p.notifier.Send(ctx, alert); err != nil {
		lg.Warn("alert delivery failed", "error", err)
	}
	if p.OnAlert != nil {
		p.OnAlert(alert)
	}
}
