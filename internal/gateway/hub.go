// Package gateway pushes dashboard views to browser websocket clients.
// Each client follows one symbol (or all symbols) and receives an envelope
// per evaluation:
//
//	{"type":"view","symbol":"btcusdt","seq":42,"ts":"...","data":{...view...}}
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cryptodash/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub manages websocket clients and fans views out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seqs    map[string]int64         // per-symbol sequence for gap detection
	latest  map[string][]byte        // last envelope per symbol
	replay  map[string]*ReplayBuffer // recent envelopes per symbol
	replayN int

	// Latency records evaluation-to-broadcast delay.
	Latency *LatencyTracker

	// OnClientCount, if set, is called with the client count after each connect/disconnect.
	OnClientCount func(n int)
}

// NewHub creates a Hub keeping replayN recent envelopes per symbol.
func NewHub(replayN int) *Hub {
	if replayN <= 0 {
		replayN = 100
	}
	return &Hub{
		clients: make(map[*Client]bool),
		seqs:    make(map[string]int64),
		latest:  make(map[string][]byte),
		replay:  make(map[string]*ReplayBuffer),
		replayN: replayN,
		Latency: NewLatencyTracker(10000),
	}
}

// PublishView wraps payload in an envelope and sends it to every client
// following symbol. Slow clients miss the message rather than block.
func (h *Hub) PublishView(_ context.Context, symbol string, payload []byte) error {
	now := time.Now().UTC()
	if at := evaluatedAt(payload); !at.IsZero() {
		if d := now.Sub(at); d >= 0 {
			h.Latency.Record(d)
		}
	}

	h.mu.Lock()
	h.seqs[symbol]++
	seq := h.seqs[symbol]
	env := envelope(symbol, seq, now, payload)
	h.latest[symbol] = env
	rb, ok := h.replay[symbol]
	if !ok {
		rb = NewReplayBuffer(h.replayN)
		h.replay[symbol] = rb
	}
	rb.Push(seq, env)

	// Held through the sends so concurrent publishers of one symbol reach
	// the replay ring and every client in seq order.
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.follows(symbol) {
			continue
		}
		select {
		case c.send <- env:
		default:
		}
	}
	return nil
}

// envelope hand-builds the message; payload is already JSON.
func envelope(symbol string, seq int64, ts time.Time, payload []byte) []byte {
	buf := make([]byte, 0, len(symbol)+len(payload)+96)
	buf = append(buf, `{"type":"view","symbol":`...)
	buf = strconv.AppendQuote(buf, symbol)
	buf = append(buf, `,"seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"ts":"`...)
	buf = ts.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","data":`...)
	buf = append(buf, payload...)
	buf = append(buf, '}')
	return buf
}

// evaluatedAt reads the view's evaluation time for latency tracking.
func evaluatedAt(payload []byte) time.Time {
	var partial struct {
		EvaluatedAt time.Time `json:"evaluated_at"`
	}
	if json.Unmarshal(payload, &partial) != nil {
		return time.Time{}
	}
	return partial.EvaluatedAt
}

// ServeHTTP upgrades /ws?symbol=btcusdt[&since=seq] and registers the client.
// Without symbol the client receives every symbol. since replays buffered
// envelopes newer than that sequence; otherwise the latest view is sent first.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	q := r.URL.Query()
	since, _ := strconv.ParseInt(q.Get("since"), 10, 64)
	h.register(conn, model.NormalizeSymbol(q.Get("symbol")), since)
}

func (h *Hub) register(conn *websocket.Conn, symbol string, since int64) {
	c := &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    h,
		symbol: symbol,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected symbol=%q (%d total)", symbol, count)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}

	c.sendInitialState(since)
	go c.writePump()
	go c.readPump()
}

// removeClient unregisters c and closes its send channel.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

// Latest returns the last envelope sent for symbol.
func (h *Hub) Latest(symbol string) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	env, ok := h.latest[symbol]
	return env, ok
}

// Seq returns the current sequence number for symbol.
func (h *Hub) Seq(symbol string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seqs[symbol]
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		conn.Close()
	}
}
