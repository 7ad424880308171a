package gateway

import (
	"context"
	"log"
	"strings"

	goredis "github.com/go-redis/redis/v8"
)

// ViewPattern matches every dashboard view channel published by the Redis writer.
const ViewPattern = "pub:dash:*"

// Relay feeds views published on Redis into a Hub, so websocket edges can run
// apart from the process that owns the Binance stream.
type Relay struct {
	rdb *goredis.Client
	hub *Hub
}

// NewRelay creates a Relay from rdb into hub.
func NewRelay(rdb *goredis.Client, hub *Hub) *Relay {
	return &Relay{rdb: rdb, hub: hub}
}

// Run pattern-subscribes to ViewPattern and forwards each message.
// Blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	pubsub := r.rdb.PSubscribe(ctx, ViewPattern)
	defer pubsub.Close()
	log.Printf("[gateway] relaying %s", ViewPattern)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			symbol, ok := symbolFromChannel(msg.Channel)
			if !ok {
				continue
			}
			r.hub.PublishView(ctx, symbol, []byte(msg.Payload))
		}
	}
}

// symbolFromChannel parses "pub:dash:btcusdt".
func symbolFromChannel(channel string) (string, bool) {
	symbol, ok := strings.CutPrefix(channel, "pub:dash:")
	if !ok || symbol == "" || strings.Contains(symbol, ":") {
		return "", false
	}
	return symbol, true
}
