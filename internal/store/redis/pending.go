package redis

import "sync"

// write is one SET latest + PUBLISH pair.
type write struct {
	key     string
	channel string
	payload string
}

// pendingQueue holds writes rejected while the circuit is open.
// When full, the oldest write is dropped. An older entry for the same key
// is superseded by the newer one.
type pendingQueue struct {
	mu    sync.Mutex
	items []write
	max   int

	dropped int
}

func newPendingQueue(max int) *pendingQueue {
	if max <= 0 {
		max = 10000
	}
	return &pendingQueue{items: make([]write, 0, 64), max: max}
}

func (q *pendingQueue) push(w write) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].key == w.key {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	if len(q.items) >= q.max {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, w)
}

// requeue puts back a write taken by drain. A newer entry for the same key
// pushed in the meantime wins.
func (q *pendingQueue) requeue(w write) {
	q.mu.Lock()
	for i := range q.items {
		if q.items[i].key == w.key {
			q.mu.Unlock()
			return
		}
	}
	q.mu.Unlock()
	q.push(w)
}

// drain takes ownership of everything buffered.
func (q *pendingQueue) drain() []write {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = make([]write, 0, 64)
	return out
}

func (q *pendingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
