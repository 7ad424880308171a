// Package scheduler runs periodic maintenance on cron specs with a seconds
// field: archive retention and store statistics.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes archived candles older than cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron *cron.Cron
	ctx  context.Context
	now  func() time.Time

	// OnPrune, if set, receives the number of rows each prune removed.
	OnPrune func(n int64)
}

// New creates a Scheduler whose jobs run with ctx.
func New(ctx context.Context) *Scheduler {
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		ctx:  ctx,
		now:  time.Now,
	}
}

// Register adds a named job on spec (six fields, seconds first).
func (s *Scheduler) Register(name, spec string, fn func(ctx context.Context)) error {
	if _, err := s.Cron.AddFunc(spec, func() {
		if s.ctx.Err() != nil {
			return
		}
		fn(s.ctx)
	}); err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	log.Printf("[scheduler] registered %s on %q", name, spec)
	return nil
}

// RegisterPrune deletes archived candles older than retention on spec.
func (s *Scheduler) RegisterPrune(spec string, p Pruner, retention time.Duration) error {
	if retention <= 0 {
		return fmt.Errorf("register prune task: retention must be positive, got %s", retention)
	}
	return s.Register("prune", spec, func(ctx context.Context) {
		if _, err := s.Prune(ctx, p, retention); err != nil {
			log.Printf("[scheduler] prune: %v", err)
		}
	})
}

// Prune runs one retention pass immediately.
func (s *Scheduler) Prune(ctx context.Context, p Pruner, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	n, err := p.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Printf("[scheduler] pruned %d archived candles before %s", n, cutoff.UTC().Format(time.RFC3339))
	if s.OnPrune != nil {
		s.OnPrune(n)
	}
	return n, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[scheduler] started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[scheduler] stopped")
}
