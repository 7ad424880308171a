package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodash/internal/candlestore"
	"cryptodash/internal/dashboard"
	"cryptodash/internal/indicator"
	"cryptodash/internal/model"
)

var base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type fakeHistory struct {
	candles []model.Candle
	err     error

	gotSince time.Time
	gotLimit int
}

func (f *fakeHistory) ReadCandles(_ context.Context, symbol, interval string, since time.Time, limit int) ([]model.Candle, error) {
	f.gotSince, f.gotLimit = since, limit
	return f.candles, f.err
}

func (f *fakeHistory) Close() error { return nil }

func setup(t *testing.T, history model.CandleReader) (*gin.Engine, *candlestore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := candlestore.New(0)
	for i := 0; i < 30; i++ {
		c := 100 + float64(i)
		store.Append("btcusdt", model.Candle{
			Symbol: "btcusdt", TS: base.Add(time.Duration(i) * time.Minute),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1,
		})
	}
	store.Append("ethusdt", model.Candle{Symbol: "ethusdt", TS: base, Close: 50})

	r := NewRouter(Deps{
		Symbols:   []string{"btcusdt", "ethusdt", "solusdt"},
		Interval:  "1m",
		Store:     store,
		Evaluator: dashboard.NewEvaluator(store, indicator.DefaultParams()),
		History:   history,
		Stats:     func() any { return gin.H{"clients": 2} },
	})
	return r, store
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	r, _ := setup(t, nil)
	rec := get(r, "/api/v1/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSymbols(t *testing.T) {
	r, _ := setup(t, nil)
	body := decode(t, get(r, "/api/v1/symbols"))

	syms := body["symbols"].([]any)
	require.Len(t, syms, 3)
	assert.Equal(t, map[string]any{"symbol": "btcusdt", "bars": float64(30)}, syms[0])
	assert.Equal(t, float64(0), syms[2].(map[string]any)["bars"])
}

func TestCandles(t *testing.T) {
	r, _ := setup(t, nil)

	body := decode(t, get(r, "/api/v1/candles/BTCUSDT?limit=5"))
	candles := body["candles"].([]any)
	require.Len(t, candles, 5)
	assert.Equal(t, float64(129), candles[4].(map[string]any)["close"])

	body = decode(t, get(r, "/api/v1/candles/solusdt"))
	assert.Empty(t, body["candles"], "tracked but empty symbol returns an empty list")

	assert.Equal(t, http.StatusNotFound, get(r, "/api/v1/candles/dogeusdt").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/candles/btcusdt?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/candles/btcusdt?limit=abc").Code)
}

func TestDashboard(t *testing.T) {
	r, _ := setup(t, nil)

	body := decode(t, get(r, "/api/v1/dashboard/btcusdt"))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(129), body["price"])
	assert.NotNil(t, body["signal"])
	assert.Nil(t, body["series"])

	body = decode(t, get(r, "/api/v1/dashboard/btcusdt?series=true"))
	series := body["series"].(map[string]any)
	assert.Len(t, series["rsi"], 30)

	body = decode(t, get(r, "/api/v1/dashboard/ethusdt"))
	assert.Equal(t, "waiting", body["status"])
	assert.Equal(t, "Waiting for enough data...", body["message"])
}

func TestSignal(t *testing.T) {
	r, _ := setup(t, nil)

	body := decode(t, get(r, "/api/v1/signal/btcusdt"))
	sig := body["signal"].(map[string]any)
	// steady climb: RSI saturates at 100, price above EMA
	assert.Equal(t, "SELL", sig["label"])
	assert.Equal(t, float64(100), body["rsi"])

	body = decode(t, get(r, "/api/v1/signal/ethusdt"))
	assert.Equal(t, "waiting", body["status"])
	assert.Nil(t, body["signal"])
}

func TestHistory(t *testing.T) {
	hist := &fakeHistory{candles: []model.Candle{{Symbol: "btcusdt", TS: base, Close: 1}}}
	r, _ := setup(t, hist)

	rec := get(r, "/api/v1/history/btcusdt?since=2024-05-01T00:00:00Z&limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["candles"], 1)
	assert.True(t, hist.gotSince.Equal(base))
	assert.Equal(t, 10, hist.gotLimit)

	get(r, "/api/v1/history/btcusdt")
	assert.Equal(t, maxLimit, hist.gotLimit, "missing limit is capped")

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/history/btcusdt?since=yesterday").Code)

	hist.err = errors.New("disk I/O error")
	assert.Equal(t, http.StatusInternalServerError, get(r, "/api/v1/history/btcusdt").Code)
}

func TestHistory_Disabled(t *testing.T) {
	r, _ := setup(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(r, "/api/v1/history/btcusdt").Code)
}

func TestStats(t *testing.T) {
	r, _ := setup(t, nil)
	assert.JSONEq(t, `{"clients":2}`, get(r, "/api/v1/stats").Body.String())
}

func TestCORS(t *testing.T) {
	r, _ := setup(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
