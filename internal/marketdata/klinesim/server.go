// Package klinesim serves a simulated exchange: a combined kline websocket
// stream and a klines REST endpoint in the exchange's wire format, so the
// dashboard can run offline.
package klinesim

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cryptodash/internal/model"
)

// Config configures the simulator.
type Config struct {
	Symbols     []string
	Interval    string        // interval label used in stream names, e.g. "1m"
	BarPeriod   time.Duration // simulated length of one bar, defaults to 1m
	TicksPerBar int           // forming updates sent per bar, defaults to 4
	Seed        int64
}

type bar struct {
	openTime      time.Time
	o, h, l, c, v float64
}

type instrument struct {
	symbol string
	cur    bar
}

// Server generates bars for every configured symbol and broadcasts them.
type Server struct {
	cfg Config

	mu    sync.Mutex // guards rng, inst and ticks
	rng   *rand.Rand
	inst  []*instrument
	ticks int

	cmu     sync.RWMutex
	clients map[*subscriber]struct{}
}

type subscriber struct {
	ch      chan []byte
	symbols map[string]bool // empty means all
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// New creates a Server whose first bar opens at the current BarPeriod boundary.
func New(cfg Config) *Server {
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	if cfg.BarPeriod <= 0 {
		cfg.BarPeriod = time.Minute
	}
	if cfg.TicksPerBar <= 0 {
		cfg.TicksPerBar = 4
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	s := &Server{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		clients: make(map[*subscriber]struct{}),
	}
	start := time.Now().UTC().Truncate(cfg.BarPeriod)
	for _, sym := range cfg.Symbols {
		p := startPrice(model.NormalizeSymbol(sym))
		s.inst = append(s.inst, &instrument{
			symbol: model.NormalizeSymbol(sym),
			cur:    bar{openTime: start, o: p, h: p, l: p, c: p},
		})
	}
	return s
}

// startPrice derives a stable price per symbol between 1 and 50000.
func startPrice(symbol string) float64 {
	switch symbol {
	case "btcusdt":
		return 60000
	case "ethusdt":
		return 3000
	}
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return 1 + float64(h.Sum32()%50000)
}

// Handler routes GET /stream, GET /api/v3/klines and GET /health.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/stream", gin.WrapF(s.serveStream))
	r.GET("/api/v3/klines", s.serveKlines)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "klinesim", "clients": s.ClientCount()})
	})
	return r
}

// Run steps the simulation every BarPeriod/TicksPerBar until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.BarPeriod / time.Duration(s.cfg.TicksPerBar))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step advances every instrument by one tick. Every TicksPerBar-th step closes
// the current bars and opens the next ones.
func (s *Server) Step() {
	s.mu.Lock()
	s.ticks++
	closing := s.ticks%s.cfg.TicksPerBar == 0
	frames := make([]frame, 0, len(s.inst))
	for _, in := range s.inst {
		b := &in.cur
		b.c = walk(s.rng, b.c)
		b.h = math.Max(b.h, b.c)
		b.l = math.Min(b.l, b.c)
		b.v += float64(s.rng.Intn(100)+1) / 10
		frames = append(frames, s.frame(in.symbol, *b, closing))
		if closing {
			next := b.openTime.Add(s.cfg.BarPeriod)
			in.cur = bar{openTime: next, o: b.c, h: b.c, l: b.c, c: b.c}
		}
	}
	s.mu.Unlock()

	for _, f := range frames {
		raw, err := json.Marshal(f)
		if err != nil {
			continue
		}
		s.broadcast(f.Data.Symbol, raw)
	}
}

// walk moves price by up to ±0.2%.
func walk(rng *rand.Rand, price float64) float64 {
	pct := (rng.Float64()*0.4 - 0.2) / 100
	return math.Max(price*(1+pct), 0.0001)
}

func (s *Server) broadcast(symbol string, raw []byte) {
	sym := strings.ToLower(symbol)
	s.cmu.RLock()
	defer s.cmu.RUnlock()
	for sub := range s.clients {
		if len(sub.symbols) > 0 && !sub.symbols[sym] {
			continue
		}
		select {
		case sub.ch <- raw:
		default: // slow client, drop
		}
	}
}

// ClientCount returns the number of connected stream clients.
func (s *Server) ClientCount() int {
	s.cmu.RLock()
	defer s.cmu.RUnlock()
	return len(s.clients)
}

// streamSymbols parses streams=btcusdt@kline_1m/ethusdt@kline_1m.
func streamSymbols(streams string) map[string]bool {
	out := make(map[string]bool)
	for _, name := range strings.Split(streams, "/") {
		if sym, _, ok := strings.Cut(name, "@"); ok && sym != "" {
			out[strings.ToLower(sym)] = true
		}
	}
	return out
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[klinesim] upgrade error: %v", err)
		return
	}
	sub := &subscriber{ch: make(chan []byte, 256), symbols: streamSymbols(r.URL.Query().Get("streams"))}
	s.cmu.Lock()
	s.clients[sub] = struct{}{}
	s.cmu.Unlock()
	log.Printf("[klinesim] client connected: %s (%d streams)", r.RemoteAddr, len(sub.symbols))

	defer func() {
		s.cmu.Lock()
		delete(s.clients, sub)
		s.cmu.Unlock()
		conn.Close()
		log.Printf("[klinesim] client disconnected: %s", r.RemoteAddr)
	}()

	// Reader detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case raw := <-sub.ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	}
}

// serveKlines answers symbol, interval and limit like the exchange does,
// with bars that end where the live stream begins.
func (s *Server) serveKlines(c *gin.Context) {
	symbol := model.NormalizeSymbol(c.Query("symbol"))
	limit := 500
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"code": -1100, "msg": "Illegal characters found in parameter 'limit'."})
			return
		}
		limit = n
	}

	rows, ok := s.history(symbol, limit)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"code": -1121, "msg": "Invalid symbol."})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// history walks backwards from the open of the current bar.
func (s *Server) history(symbol string, limit int) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var in *instrument
	for _, x := range s.inst {
		if x.symbol == symbol {
			in = x
		}
	}
	if in == nil {
		return nil, false
	}

	rows := make([][]any, limit)
	closePx := in.cur.o
	open := in.cur.openTime
	for i := limit - 1; i >= 0; i-- {
		open = open.Add(-s.cfg.BarPeriod)
		openPx := walk(s.rng, closePx)
		hi := math.Max(openPx, closePx) * (1 + s.rng.Float64()/1000)
		lo := math.Min(openPx, closePx) * (1 - s.rng.Float64()/1000)
		vol := float64(s.rng.Intn(1000)+1) / 10
		closeMs := open.Add(s.cfg.BarPeriod).UnixMilli() - 1
		rows[i] = []any{
			open.UnixMilli(), decimal(openPx), decimal(hi), decimal(lo), decimal(closePx), decimal(vol),
			closeMs, decimal(vol * closePx), s.rng.Intn(500) + 1, "0", "0", "0",
		}
		closePx = openPx
	}
	return rows, true
}
