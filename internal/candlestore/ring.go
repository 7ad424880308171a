package candlestore

import "cryptodash/internal/model"

// ring is a fixed-size circular buffer of candles for one symbol.
// Push overwrites the oldest entry once full, giving tail(N) semantics.
// Not safe for concurrent use; Store serialises access.
type ring struct {
	buf  []model.Candle
	cap  int
	pos  int // next write position
	full bool
}

func newRing(capacity int) *ring {
	return &ring{
		buf: make([]model.Candle, capacity),
		cap: capacity,
	}
}

func (r *ring) push(c model.Candle) {
	r.buf[r.pos] = c
	r.pos = (r.pos + 1) % r.cap
	if r.pos == 0 && !r.full {
		r.full = true
	}
}

// reset replaces the contents with the last cap entries of candles.
func (r *ring) reset(candles []model.Candle) {
	r.pos = 0
	r.full = false
	if len(candles) > r.cap {
		candles = candles[len(candles)-r.cap:]
	}
	for _, c := range candles {
		r.push(c)
	}
}

func (r *ring) len() int {
	if r.full {
		return r.cap
	}
	return r.pos
}

// index converts a logical index (0 = oldest) to a physical buffer index.
func (r *ring) index(logical int) int {
	if r.full {
		return (r.pos + logical) % r.cap
	}
	return logical
}

// last returns the newest entry.
func (r *ring) last() (model.Candle, bool) {
	n := r.len()
	if n == 0 {
		return model.Candle{}, false
	}
	return r.buf[r.index(n-1)], true
}

// snapshot copies the contents oldest-first into a new slice.
func (r *ring) snapshot() []model.Candle {
	n := r.len()
	if n == 0 {
		return nil
	}
	out := make([]model.Candle, n)
	if !r.full {
		copy(out, r.buf[:n])
		return out
	}
	k := copy(out, r.buf[r.pos:])
	copy(out[k:], r.buf[:r.pos])
	return out
}
