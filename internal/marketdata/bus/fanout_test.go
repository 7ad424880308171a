package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"cryptodash/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New[model.Candle](10)
	out1 := fo.Subscribe("sqlite")
	out2 := fo.Subscribe("redis")

	input := make(chan model.Candle, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- model.Candle{Symbol: "btcusdt", Open: 100, High: 110, Low: 90, Close: 105}

	for name, out := range map[string]<-chan model.Candle{"out1": out1, "out2": out2} {
		select {
		case c := <-out:
			if c.Symbol != "btcusdt" {
				t.Errorf("%s: expected btcusdt, got %s", name, c.Symbol)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: timed out waiting for candle", name)
		}
	}
}

func TestFanOut_DropsForSlowSubscriber(t *testing.T) {
	fo := New[int](1)
	slow := fo.Subscribe("slow")

	var mu sync.Mutex
	drops := map[string]int{}
	fo.OnDrop = func(name string) {
		mu.Lock()
		drops[name]++
		mu.Unlock()
	}

	input := make(chan int)
	done := make(chan struct{})
	go func() {
		fo.Run(context.Background(), input)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		input <- i
	}
	close(input)
	<-done

	// First value fills the buffer, the next two are dropped
	if v, ok := <-slow; !ok || v != 0 {
		t.Errorf("expected buffered value 0, got %d ok=%v", v, ok)
	}
	if _, ok := <-slow; ok {
		t.Error("expected output channel closed after Run returned")
	}
	mu.Lock()
	defer mu.Unlock()
	if drops["slow"] != 2 {
		t.Errorf("expected 2 drops, got %d", drops["slow"])
	}
}

func TestFanOut_ChannelStats(t *testing.T) {
	fo := New[string](4)
	fo.Subscribe("a")
	fo.Subscribe("b")

	stats := fo.ChannelStats()
	if len(stats) != 2 || stats[0].Name != "a" || stats[1].Cap != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestOffer(t *testing.T) {
	ch := make(chan int, 1)
	if !Offer(ch, 1) {
		t.Fatal("first offer should succeed")
	}
	if Offer(ch, 2) {
		t.Fatal("offer to full channel should fail")
	}
}
