package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
)

// Client manages a subscription to an eth_subscribe("logs", ...) feed. Unlike
// a bare request/response RPC client, it keeps the connection alive with
// periodic pings and exposes the raw params of each subscription
// notification on a buffered channel for the caller to drain; notifications
// that arrive while the channel is full are dropped.
type Client struct {
	url  string
	conn *websocket.Conn
	mu   sync.Mutex

	requestID atomic.Int64
	msgCh     chan json.RawMessage
	done      chan struct{}
	connected atomic.Bool
}

// NewClient creates a feed client for the given websocket URL.
func NewClient(url string) *Client {
	return &Client{
		url:   url,
		msgCh: make(chan json.RawMessage, 256),
		done:  make(chan struct{}),
	}
}

// Connect dials the websocket endpoint and starts the keepalive ping loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("feed: dialing websocket: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.conn = conn
	c.connected.Store(true)
	log.Info().Str("url", c.url).Msg("feed connected")

	go c.pingLoop()
	return nil
}

// pingLoop keeps the connection from idling out on the server side until
// Close is called.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Msg("feed: ping failed")
				return
			}
		}
	}
}

// IsConnected reports whether the last known connection attempt succeeded
// and has not since failed or been closed.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Close tears down the connection and stops the ping loop. Safe to call more
// than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.connected.Store(false)

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SubscribeLogs sends an eth_subscribe("logs", ...) request filtered to the
// given pool addresses and the Sync event topic.
func (c *Client) SubscribeLogs(addresses []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("feed: not connected")
	}

	id := c.requestID.Add(1)
	filter := map[string]interface{}{
		"topics": []interface{}{SyncEventTopic.Hex()},
	}
	if len(addresses) > 0 {
		filter["address"] = addresses
	}

	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "eth_subscribe",
		"params":  []interface{}{"logs", filter},
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("feed: writing subscribe request: %w", err)
	}

	log.Info().Int64("id", id).Int("addresses", len(addresses)).Msg("feed subscription sent")
	return nil
}

// ReadMessages pumps notification payloads into the client's message
// channel until ctx is cancelled or the connection closes.
func (c *Client) ReadMessages(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return fmt.Errorf("feed: connection closed")
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			c.connected.Store(false)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("feed: reading message: %w", err)
		}

		var envelope struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil {
			log.Warn().Err(err).Msg("feed: failed to parse message")
			continue
		}

		if envelope.Method == "eth_subscription" && envelope.Params != nil {
			select {
			case c.msgCh <- envelope.Params:
			default:
				log.Warn().Msg("feed: message channel full, discarding")
			}
		}
	}
}

// Messages returns the channel of raw subscription notification payloads.
func (c *Client) Messages() <-chan json.RawMessage {
	return c.msgCh
}
