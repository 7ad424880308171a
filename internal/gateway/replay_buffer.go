package gateway

import (
	"sort"
	"sync"
)

const defaultReplayDepth = 500

// Entry is one envelope sent to subscribers of a symbol.
type Entry struct {
	Seq  int64
	Data []byte
}

// ReplayBuffer retains the last N envelopes of one symbol so a client that
// reconnects with ?since=<seq> receives what it missed. Sequences must be
// pushed in increasing order; lookups binary-search on that.
type ReplayBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int // index of the oldest entry once the ring has wrapped
}

func NewReplayBuffer(depth int) *ReplayBuffer {
	if depth <= 0 {
		depth = defaultReplayDepth
	}
	return &ReplayBuffer{entries: make([]Entry, 0, depth)}
}

// Push stores a copy of data under seq, evicting the oldest entry when full.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	e := Entry{Seq: seq, Data: append([]byte(nil), data...)}

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if len(rb.entries) < cap(rb.entries) {
		rb.entries = append(rb.entries, e)
		return
	}
	rb.entries[rb.head] = e
	rb.head = (rb.head + 1) % len(rb.entries)
}

// Range returns retained entries with from <= Seq <= to, oldest first.
func (rb *ReplayBuffer) Range(from, to int64) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	n := len(rb.entries)
	lo := sort.Search(n, func(i int) bool { return rb.at(i).Seq >= from })
	var out []Entry
	for i := lo; i < n; i++ {
		e := rb.at(i)
		if e.Seq > to {
			break
		}
		out = append(out, e)
	}
	return out
}

// Since returns retained entries newer than seq.
func (rb *ReplayBuffer) Since(seq int64) []Entry {
	rb.mu.RLock()
	last := int64(-1)
	if n := len(rb.entries); n > 0 {
		last = rb.at(n - 1).Seq
	}
	rb.mu.RUnlock()
	if seq >= last {
		return nil
	}
	return rb.Range(seq+1, last)
}

// Len returns the number of retained entries.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.entries)
}

// at maps a logical position (0 = oldest) onto the ring.
func (rb *ReplayBuffer) at(i int) Entry {
	return rb.entries[(rb.head+i)%len(rb.entries)]
}
