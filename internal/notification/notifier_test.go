package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cryptodash/internal/signal"
)

func TestNewSignalAlert(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := NewSignalAlert("btcusdt", signal.For(signal.StrongBuy), 60000.5, ts)

	if a.ID == "" {
		t.Error("expected a generated id")
	}
	if a.Level != AlertCritical || a.Label != signal.StrongBuy || a.Symbol != "btcusdt" {
		t.Errorf("unexpected alert %+v", a)
	}
	if !strings.Contains(a.Message, "60000.5") {
		t.Errorf("message should carry the price: %s", a.Message)
	}

	b := NewSignalAlert("btcusdt", signal.For(signal.Buy), 1, ts)
	if b.Level != AlertInfo {
		t.Errorf("non-strong signals are INFO, got %s", b.Level)
	}
	if a.ID == b.ID {
		t.Error("alert ids must be unique")
	}
}

func TestWebhookNotifier_PostsAlertJSON(t *testing.T) {
	got := make(chan Alert, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a Alert
		json.NewDecoder(r.Body).Decode(&a)
		got <- a
	}))
	defer srv.Close()

	alert := NewSignalAlert("ethusdt", signal.For(signal.StrongSell), 3000, time.Now())
	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), alert); err != nil {
		t.Fatalf("send: %v", err)
	}
	a := <-got
	if a.ID != alert.ID || a.Label != signal.StrongSell {
		t.Errorf("unexpected payload %+v", a)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestTelegramNotifier_EscapesMarkdown(t *testing.T) {
	body := make(chan string, 1)
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body <- string(b)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42")
	n.apiBase = srv.URL
	if err := n.Send(context.Background(), Alert{Title: "btc_usdt", Message: "1.5"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	b := <-body
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path %s", path)
	}
	var msg map[string]string
	if err := json.Unmarshal([]byte(b), &msg); err != nil {
		t.Fatal(err)
	}
	if msg["chat_id"] != "42" || !strings.Contains(msg["text"], `btc\_usdt`) || !strings.Contains(msg["text"], `1\.5`) {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestWebhookNotifier_TextAndErrorBody(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		json.NewDecoder(r.Body).Decode(&m)
		got <- m
		if m["symbol"] == "fail" {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Level: AlertCritical, Title: "btcusdt STRONG_BUY", Message: "go"}); err != nil {
		t.Fatal(err)
	}
	if m := <-got; m["text"] != "[CRITICAL] btcusdt STRONG_BUY: go" {
		t.Errorf("unexpected text %v", m["text"])
	}

	err := n.Send(context.Background(), Alert{Symbol: "fail"})
	<-got
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected status and body in error, got %v", err)
	}
}

func TestTelegramText(t *testing.T) {
	a := Alert{
		Title:   "ethusdt STRONG_SELL",
		Message: "ethusdt at 3000.5: RSI 82",
		Label:   signal.StrongSell,
		TS:      time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
	}
	got := telegramText(a)
	want := "🔴 *ethusdt STRONG\\_SELL*\n\nethusdt at 3000\\.5: RSI 82\n_2024\\-05\\-01 12:30 UTC_"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

type failing struct{ err error }

func (f failing) Send(context.Context, Alert) error { return f.err }

type counting struct{ n int }

func (c *counting) Send(context.Context, Alert) error { c.n++; return nil }

func TestMulti_ContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	c := &counting{}
	err := Multi{failing{boom}, c}.Send(context.Background(), Alert{})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if c.n != 1 {
		t.Error("later notifiers must still receive the alert")
	}
}

func TestNew_Chain(t *testing.T) {
	if m := New("", "", "").(Multi); len(m) != 1 {
		t.Errorf("expected log-only chain, got %d", len(m))
	}
	if m := New("http://hook", "tok", "chat").(Multi); len(m) != 3 {
		t.Errorf("expected 3 notifiers, got %d", len(m))
	}
	if m := New("", "tok", "").(Multi); len(m) != 1 {
		t.Error("telegram needs both token and chat id")
	}
}
