// Package rest seeds the candle store from the exchange's public klines endpoint
// before the live stream starts.
//
// A failed fetch never panics or propagates: it comes back as a SeedResult with
// StatusFailed and the symbol is left unseeded.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cryptodash/internal/model"
)

var (
	// ErrStatus is returned for a non-2xx response.
	ErrStatus = errors.New("unexpected status")
	// ErrMalformed is returned when the body is not an array of kline rows.
	ErrMalformed = errors.New("malformed klines response")
)

// Status classifies a seed attempt.
type Status string

const (
	StatusOK     Status = "ok"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

// SeedResult is the outcome of one FetchInitial call.
type SeedResult struct {
	Symbol  string
	Status  Status
	Candles []model.Candle
	Err     error
	Elapsed time.Duration
}

// Seeder is the part of the candle store the loader writes to.
type Seeder interface {
	Seed(symbol string, candles []model.Candle)
}

// Config for the loader.
type Config struct {
	// URL of the klines endpoint, e.g. https://api.binance.com/api/v3/klines
	URL      string
	Interval string
	Limit    int
	// Timeout per request. Defaults to 10s.
	Timeout time.Duration
}

// Loader fetches historical klines over HTTP.
type Loader struct {
	cfg    Config
	client *http.Client
}

// New creates a Loader with its own http.Client.
func New(cfg Config) *Loader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	return &Loader{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// FetchInitial retrieves the most recent Limit closed bars for symbol, oldest
// first. It does not touch any store.
func (l *Loader) FetchInitial(ctx context.Context, symbol string) SeedResult {
	start := time.Now()
	res := SeedResult{Symbol: symbol}

	candles, err := l.fetch(ctx, symbol)
	res.Elapsed = time.Since(start)
	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Err = err
	case len(candles) == 0:
		res.Status = StatusEmpty
	default:
		res.Status = StatusOK
		res.Candles = candles
	}
	return res
}

// SeedAll fetches every symbol sequentially and seeds store with each
// successful result. onResult, if non-nil, sees every result.
func (l *Loader) SeedAll(ctx context.Context, symbols []string, store Seeder, onResult func(SeedResult)) []SeedResult {
	results := make([]SeedResult, 0, len(symbols))
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		res := l.FetchInitial(ctx, sym)
		switch res.Status {
		case StatusOK:
			store.Seed(sym, res.Candles)
			log.Printf("[rest] seeded %s with %d candles in %s", strings.ToUpper(sym), len(res.Candles), res.Elapsed)
		case StatusEmpty:
			log.Printf("[rest] no historical candles for %s", strings.ToUpper(sym))
		default:
			log.Printf("[rest] failed to fetch initial candles for %s: %v", strings.ToUpper(sym), res.Err)
		}
		if onResult != nil {
			onResult(res)
		}
		results = append(results, res)
	}
	return results
}

func (l *Loader) fetch(ctx context.Context, symbol string) ([]model.Candle, error) {
	u, err := url.Parse(l.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rest: parse url: %w", err)
	}
	q := u.Query()
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", l.cfg.Interval)
	q.Set("limit", strconv.Itoa(l.cfg.Limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("rest: create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest: get klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("rest: %w %d", ErrStatus, resp.StatusCode)
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("rest: %w: %v", ErrMalformed, err)
	}
	return ParseKlines(model.NormalizeSymbol(symbol), rows)
}

// ParseKlines converts raw kline rows into candles. Only the first six fields
// (open time, open, high, low, close, volume) are read.
func ParseKlines(symbol string, rows [][]json.RawMessage) ([]model.Candle, error) {
	out := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("rest: %w: row %d has %d fields", ErrMalformed, i, len(row))
		}
		var openMs int64
		if err := json.Unmarshal(row[0], &openMs); err != nil {
			return nil, fmt.Errorf("rest: %w: row %d open time: %v", ErrMalformed, i, err)
		}
		var vals [5]float64
		for j := 0; j < 5; j++ {
			v, err := decimal(row[j+1])
			if err != nil {
				return nil, fmt.Errorf("rest: %w: row %d field %d: %v", ErrMalformed, i, j+1, err)
			}
			vals[j] = v
		}
		out = append(out, model.Candle{
			Symbol: symbol,
			TS:     time.UnixMilli(openMs).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return out, nil
}

// decimal accepts the exchange's quoted decimal strings as well as bare numbers.
func decimal(raw json.RawMessage) (float64, error) {
	var f float64
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		f = v
	} else if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", string(raw))
	}
	return f, nil
}
