package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cryptodash/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client is a single websocket peer following one symbol ("" for all).
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu     sync.RWMutex
	symbol string
}

func (c *Client) follows(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.symbol == "" || c.symbol == symbol
}

func (c *Client) setSymbol(symbol string) {
	c.mu.Lock()
	c.symbol = symbol
	c.mu.Unlock()
}

// sendInitialState queues the latest view for each followed symbol, or the
// buffered envelopes after since when the client is resuming.
func (c *Client) sendInitialState(since int64) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	c.mu.RLock()
	symbol := c.symbol
	c.mu.RUnlock()

	var queue [][]byte
	for sym, env := range c.hub.latest {
		if symbol != "" && sym != symbol {
			continue
		}
		if since > 0 {
			if rb := c.hub.replay[sym]; rb != nil {
				for _, e := range rb.Since(since) {
					queue = append(queue, e.Data)
				}
				continue
			}
		}
		queue = append(queue, env)
	}
	for _, env := range queue {
		select {
		case c.send <- env:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles control messages:
//
//	{"action":"SUBSCRIBE","symbol":"ethusdt"}  switch the followed symbol ("" for all)
//	{"action":"PING","ts":1714521600000}       answered with {"type":"pong","ts":...,"server_ts":...}
func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var in struct {
			Action string `json:"action"`
			Symbol string `json:"symbol"`
			TS     int64  `json:"ts"`
		}
		if json.Unmarshal(msg, &in) != nil {
			continue
		}

		switch strings.ToUpper(in.Action) {
		case "SUBSCRIBE":
			c.setSymbol(model.NormalizeSymbol(in.Symbol))
			c.sendInitialState(0)
		case "PING":
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"ts":        in.TS,
				"server_ts": time.Now().UnixMilli(),
			})
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}
