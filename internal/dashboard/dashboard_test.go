package dashboard

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodash/internal/indicator"
	"cryptodash/internal/model"
	"cryptodash/internal/notification"
	"cryptodash/internal/signal"
)

type mapSource map[string][]model.Candle

func (m mapSource) Get(symbol string) []model.Candle {
	c := m[symbol]
	if c == nil {
		return nil
	}
	return append([]model.Candle(nil), c...)
}

// trend builds n bars whose close moves by step per bar from start.
func trend(symbol string, n int, start, step float64) []model.Candle {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, n)
	for i := range out {
		c := start + step*float64(i)
		out[i] = model.Candle{
			Symbol: symbol, TS: base.Add(time.Duration(i) * time.Minute),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10,
		}
	}
	return out
}

// ────────────────────────────────────────────────────────────
// Evaluator
// ────────────────────────────────────────────────────────────

func TestEvaluate_WaitingBelowMinBars(t *testing.T) {
	e := NewEvaluator(mapSource{"btcusdt": trend("btcusdt", MinBars-1, 100, 1)}, indicator.DefaultParams())

	v := e.Evaluate("BTCUSDT", false)
	assert.Equal(t, "btcusdt", v.Symbol)
	assert.Equal(t, StatusWaiting, v.Status)
	assert.Equal(t, WaitingMessage, v.Message)
	assert.Equal(t, MinBars-1, v.Bars)
	assert.Nil(t, v.Signal)
	assert.Nil(t, v.Indicators)
	assert.False(t, v.Ready())
}

func TestEvaluate_UnknownSymbolWaits(t *testing.T) {
	e := NewEvaluator(mapSource{}, indicator.DefaultParams())
	v := e.Evaluate("dogeusdt", true)
	assert.Equal(t, StatusWaiting, v.Status)
	assert.Equal(t, 0, v.Bars)
	assert.True(t, v.TS.IsZero())
}

func TestEvaluate_MinBarsWithUndefinedRSI(t *testing.T) {
	e := NewEvaluator(mapSource{"btcusdt": trend("btcusdt", MinBars, 100, 1)}, indicator.DefaultParams())

	v := e.Evaluate("btcusdt", false)
	require.True(t, v.Ready())
	assert.False(t, indicator.Ready(v.RSI), "RSI(14) is undefined on 5 bars")
	assert.True(t, indicator.Ready(v.EMA))
	require.NotNil(t, v.Signal)
	assert.Equal(t, signal.WeakBuy, v.Signal.Label, "price above EMA with no RSI")

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"rsi":null`)
}

func TestEvaluate_Trends(t *testing.T) {
	tests := []struct {
		name string
		step float64
		want signal.Label
	}{
		{"rising saturates RSI at 100", 1, signal.Sell},
		{"falling drives RSI to 0", -1, signal.Buy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := mapSource{"ethusdt": trend("ethusdt", 40, 500, tc.step)}
			v := NewEvaluator(src, indicator.DefaultParams()).Evaluate("ethusdt", false)
			require.True(t, v.Ready())
			assert.Equal(t, tc.want, v.Signal.Label)
			assert.InDelta(t, 500+39*tc.step, float64(v.Price), 1e-9)
		})
	}
}

func TestEvaluate_WithSeries(t *testing.T) {
	candles := trend("solusdt", 30, 20, 0.5)
	e := NewEvaluator(mapSource{"solusdt": candles}, indicator.DefaultParams())

	v := e.Evaluate("solusdt", true)
	require.NotNil(t, v.Series)
	assert.Equal(t, 30, v.Series.Len())
	assert.Len(t, v.Candles, 30)
	assert.Equal(t, candles[29].TS, v.TS)

	plain := e.Evaluate("solusdt", false)
	assert.Nil(t, plain.Series)
	assert.Nil(t, plain.Candles)
}

// ────────────────────────────────────────────────────────────
// Poller
// ────────────────────────────────────────────────────────────

type recordingSink struct {
	mu    sync.Mutex
	views map[string][]byte
}

func (s *recordingSink) PublishView(_ context.Context, symbol string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.views == nil {
		s.views = map[string][]byte{}
	}
	s.views[symbol] = payload
	return nil
}

type recordingNotifier struct {
	alerts []notification.Alert
}

func (n *recordingNotifier) Send(_ context.Context, a notification.Alert) error {
	n.alerts = append(n.alerts, a)
	return nil
}

func TestPoller_TickPublishesEverySymbol(t *testing.T) {
	src := mapSource{
		"btcusdt": trend("btcusdt", 30, 100, 1),
		"ethusdt": trend("ethusdt", 2, 50, 1),
	}
	sink := &recordingSink{}
	var evaluated []string
	p := NewPoller(PollerConfig{Symbols: func() []string { return []string{"btcusdt", "ethusdt"} }},
		NewEvaluator(src, indicator.DefaultParams()), nil, sink)
	p.OnEvaluate = func(symbol string, _ time.Duration) { evaluated = append(evaluated, symbol) }

	p.Tick(context.Background())

	assert.Equal(t, []string{"btcusdt", "ethusdt"}, evaluated)
	require.Len(t, sink.views, 2)

	var eth View
	require.NoError(t, json.Unmarshal(sink.views["ethusdt"], &eth))
	assert.Equal(t, StatusWaiting, eth.Status)

	l, ok := p.Label("btcusdt")
	assert.True(t, ok)
	assert.Equal(t, signal.Sell, l)
	_, ok = p.Label("ethusdt")
	assert.False(t, ok, "waiting views carry no label")
}

func readyView(symbol string, l signal.Label) View {
	sig := signal.For(l)
	return View{Symbol: symbol, Status: StatusOK, Price: 100, Signal: &sig, TS: time.Unix(60, 0).UTC()}
}

func TestPoller_AlertsOnlyOnEnteringStrongTier(t *testing.T) {
	n := &recordingNotifier{}
	p := NewPoller(PollerConfig{Symbols: func() []string { return nil }}, nil, n)
	var changes [][2]signal.Label
	p.OnSignalChange = func(_ string, from, to signal.Label) { changes = append(changes, [2]signal.Label{from, to}) }
	ctx := context.Background()

	p.track(ctx, readyView("btcusdt", signal.StrongBuy)) // baseline, no alert
	assert.Empty(t, n.alerts)

	p.track(ctx, readyView("btcusdt", signal.Hold))
	p.track(ctx, readyView("btcusdt", signal.StrongSell))
	p.track(ctx, readyView("btcusdt", signal.StrongSell)) // unchanged
	p.track(ctx, readyView("btcusdt", signal.Buy))

	require.Len(t, n.alerts, 1)
	assert.Equal(t, signal.StrongSell, n.alerts[0].Label)
	assert.Equal(t, notification.AlertCritical, n.alerts[0].Level)
	assert.Equal(t, [][2]signal.Label{
		{signal.StrongBuy, signal.Hold},
		{signal.Hold, signal.StrongSell},
		{signal.StrongSell, signal.Buy},
	}, changes)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	sink := &recordingSink{}
	src := mapSource{"btcusdt": trend("btcusdt", 10, 1, 1)}
	p := NewPoller(PollerConfig{
		Symbols:  func() []string { return []string{"btcusdt"} },
		Interval: 10 * time.Millisecond,
	}, NewEvaluator(src, indicator.DefaultParams()), nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Contains(t, sink.views, "btcusdt")
}
