// Package binance consumes the exchange's combined kline websocket stream and
// appends every closed bar to the candle store.
//
// Wire format of one frame on a combined stream:
//
//	{"stream":"btcusdt@kline_1m",
//	 "data":{"e":"kline","s":"BTCUSDT",
//	         "k":{"t":1714521600000,"o":"60000.1","h":"60100","l":"59900","c":"60050.5","v":"12.5","x":true}}}
//
// Bars with x=false are still forming and are discarded, so readers never see a
// partial candle.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"cryptodash/internal/model"
)

// ErrOpenKline marks a frame whose bar has not closed yet.
var ErrOpenKline = errors.New("kline not closed")

// Appender is the part of the candle store the ingestor writes to.
type Appender interface {
	Append(symbol string, c model.Candle) bool
}

// Config holds configuration for the stream ingestor.
type Config struct {
	// URL of the combined stream endpoint, e.g. "wss://stream.binance.com:9443/stream".
	URL      string
	Symbols  []string
	Interval string

	// Reconnect redials after a dropped connection. Off by default: a drop ends Run.
	Reconnect bool

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.Interval == "" {
		c.Interval = "1m"
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Ingestor is the sole writer to the candle store once streaming starts.
type Ingestor struct {
	cfg    Config
	url    string
	store  Appender
	dialer *websocket.Dialer
	wait   func(ctx context.Context, d time.Duration) bool // backoff sleep

	// Optional hooks. All run on the ingestor goroutine and must not block.
	OnCandle      func(c model.Candle) // after each append
	OnOutOfOrder  func(c model.Candle) // appended bar did not advance the timestamp
	OnDiscard     func(symbol string)  // open (x=false) bar dropped
	OnDecodeError func(err error)      // frame skipped
	OnConnect     func()
	OnDisconnect  func(err error)
}

// New creates an Ingestor. Returns an error if the URL is unparseable or no
// symbols are given.
func New(cfg Config, store Appender) (*Ingestor, error) {
	cfg.defaults()
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("binance: no symbols")
	}
	u := StreamURL(cfg.URL, cfg.Symbols, cfg.Interval)
	if _, err := url.Parse(u); err != nil {
		return nil, fmt.Errorf("binance: parse url: %w", err)
	}
	return &Ingestor{
		cfg:    cfg,
		url:    u,
		store:  store,
		dialer: websocket.DefaultDialer,
		wait:   sleepCtx,
	}, nil
}

// URL returns the full combined-stream subscription URL.
func (ing *Ingestor) URL() string { return ing.url }

// StreamURL builds base?streams=sym1@kline_i/sym2@kline_i/...
func StreamURL(base string, symbols []string, interval string) string {
	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		names = append(names, model.NormalizeSymbol(s)+"@kline_"+interval)
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "streams=" + strings.Join(names, "/")
}

// Run connects and appends closed candles until ctx is cancelled or, with
// reconnect disabled, the connection drops. Returns nil on cancellation and the
// read or dial error otherwise.
func (ing *Ingestor) Run(ctx context.Context) error {
	if !ing.cfg.Reconnect {
		_, err := ing.runOnce(ctx)
		return err
	}

	delay := ing.cfg.ReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := ing.runOnce(ctx)
		if err == nil {
			return nil
		}
		// A session that got as far as connecting starts the backoff over.
		if connected {
			delay = ing.cfg.ReconnectDelay
		}

		log.Printf("[binance] disconnected (%v), reconnecting in %s...", err, delay)
		if !ing.wait(ctx, delay) {
			return nil
		}

		delay *= 2
		if delay > ing.cfg.MaxReconnectDelay {
			delay = ing.cfg.MaxReconnectDelay
		}
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx
// cancel. connected reports whether the dial succeeded.
func (ing *Ingestor) runOnce(ctx context.Context) (connected bool, err error) {
	conn, _, err := ing.dialer.DialContext(ctx, ing.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("binance: dial: %w", err)
	}
	defer conn.Close()
	connected = true

	log.Printf("[binance] connected, %d streams @ %s", len(ing.cfg.Symbols), ing.cfg.Interval)
	if ing.OnConnect != nil {
		ing.OnConnect()
	}
	defer func() {
		if ing.OnDisconnect != nil {
			ing.OnDisconnect(err)
		}
	}()

	// Close the connection when ctx is cancelled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return true, nil
			default:
			}
			return true, fmt.Errorf("binance: read: %w", err)
		}
		ing.handle(raw)
	}
}

// handle decodes one frame and appends it if the bar is closed.
func (ing *Ingestor) handle(raw []byte) {
	c, err := DecodeKline(raw)
	switch {
	case errors.Is(err, ErrOpenKline):
		if ing.OnDiscard != nil {
			ing.OnDiscard(c.Symbol)
		}
		return
	case err != nil:
		log.Printf("[binance] skipping frame: %v", err)
		if ing.OnDecodeError != nil {
			ing.OnDecodeError(err)
		}
		return
	}

	if !ing.store.Append(c.Symbol, c) {
		log.Printf("[binance] %s: non-increasing bar time %s", strings.ToUpper(c.Symbol), c.TS.Format(time.RFC3339))
		if ing.OnOutOfOrder != nil {
			ing.OnOutOfOrder(c)
		}
	}
	if ing.OnCandle != nil {
		ing.OnCandle(c)
	}
}

type frame struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol string `json:"s"`
		Kline  *kline `json:"k"`
	} `json:"data"`
}

type kline struct {
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

// DecodeKline parses one combined-stream frame. For a still-forming bar it
// returns the candle's symbol with ErrOpenKline.
func DecodeKline(raw []byte) (model.Candle, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return model.Candle{}, fmt.Errorf("binance: decode: %w", err)
	}
	if f.Data.Kline == nil || f.Data.Symbol == "" {
		return model.Candle{}, fmt.Errorf("binance: decode: missing kline or symbol")
	}
	k := f.Data.Kline
	c := model.Candle{Symbol: model.NormalizeSymbol(f.Data.Symbol)}
	if !k.Closed {
		return c, ErrOpenKline
	}

	fields := [5]struct {
		name string
		src  string
		dst  *float64
	}{
		{"o", k.Open, &c.Open},
		{"h", k.High, &c.High},
		{"l", k.Low, &c.Low},
		{"c", k.Close, &c.Close},
		{"v", k.Volume, &c.Volume},
	}
	for _, fld := range fields {
		v, err := strconv.ParseFloat(fld.src, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return model.Candle{}, fmt.Errorf("binance: decode %s field %q", fld.name, fld.src)
		}
		*fld.dst = v
	}
	c.TS = time.UnixMilli(k.OpenTime).UTC()
	return c, nil
}
