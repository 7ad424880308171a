// Package candlestore holds the bounded, per-symbol sequences of closed candles
// shared between the stream ingestor (sole writer) and dashboard readers.
//
// Readers always receive a copy, so an append or trim that happens while a reader
// iterates can never be observed half-done. The lock is held only for the copy.
package candlestore

import (
	"sort"
	"sync"

	"cryptodash/internal/model"
)

// DefaultCap is the number of bars kept per symbol.
const DefaultCap = 500

// Store maps symbol → ordered sequence of candles capped at Cap() entries.
type Store struct {
	mu      sync.RWMutex
	cap     int
	symbols map[string]*ring
}

// New creates a store keeping at most capacity bars per symbol.
// A non-positive capacity falls back to DefaultCap.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{
		cap:     capacity,
		symbols: make(map[string]*ring, 64),
	}
}

// Cap returns the per-symbol bar limit.
func (s *Store) Cap() int { return s.cap }

// Get returns a copy of symbol's sequence, oldest first. Unseen symbols yield nil.
func (s *Store) Get(symbol string) []model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.symbols[symbol]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// Append adds c as the newest bar of symbol, evicting the oldest bar beyond the cap.
// No ordering or duplicate check is applied: the candle is always appended.
// The return value reports whether c.TS is strictly after the previous newest bar
// (true for the first bar), so callers can observe replays without rejecting them.
func (s *Store) Append(symbol string, c model.Candle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ringFor(symbol)
	monotonic := true
	if prev, ok := r.last(); ok && !c.TS.After(prev.TS) {
		monotonic = false
	}
	r.push(c)
	return monotonic
}

// Seed replaces symbol's sequence wholesale, keeping the last Cap() entries.
// Intended for use before streaming begins; ordering is not enforced.
func (s *Store) Seed(symbol string, candles []model.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ringFor(symbol).reset(candles)
}

// Len returns the number of bars held for symbol.
func (s *Store) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.symbols[symbol]; ok {
		return r.len()
	}
	return 0
}

// Last returns the newest bar for symbol.
func (s *Store) Last(symbol string) (model.Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.symbols[symbol]; ok {
		return r.last()
	}
	return model.Candle{}, false
}

// Symbols returns every symbol that has been seeded or appended, sorted.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// ringFor returns the ring for symbol, creating it lazily. Caller holds mu.
func (s *Store) ringFor(symbol string) *ring {
	r, ok := s.symbols[symbol]
	if !ok {
		r = newRing(s.cap)
		s.symbols[symbol] = r
	}
	return r
}
