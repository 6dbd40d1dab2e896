package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ClientConfig configures feed client behavior.
type ClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the length of the Events channel.
	Buffer int
}

// DefaultClientConfig returns default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            1024,
	}
}

// Client follows a claim feed and reconnects when the connection drops.
// Events published while disconnected are not replayed; use the claims
// history endpoints to backfill.
type Client struct {
	endpoint string
	config   ClientConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	events chan Event

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
	reconnects   atomic.Int64
}

// Dial connects to a feed endpoint such as ws://host/v1/ws/claims?pool=AIRDROP.
func Dial(ctx context.Context, endpoint string, config *ClientConfig, logger *log.Logger) (*Client, error) {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		events:   make(chan Event, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Events returns the stream of received claims. It is closed by Close.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Reconnects returns how many times the connection was re-established.
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// Close closes the connection and the Events channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.events)
	return nil
}

// readLoop reads messages and reconnects with exponential backoff.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn != nil {
			conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
			_, message, err := conn.ReadMessage()
			if err == nil {
				reconnectDelay = c.config.ReconnectDelay
				c.handleMessage(message)
				continue
			}
			if c.closed.Load() {
				return
			}
		}

		// No usable connection: schedule one reconnect at a time.
		if !c.reconnecting.Swap(true) {
			c.wg.Add(1)
			go c.reconnect(conn, reconnectDelay)

			reconnectDelay *= 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}
		}

		select {
		case <-c.done:
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// reconnect replaces the broken connection after delay.
func (c *Client) reconnect(broken *websocket.Conn, delay time.Duration) {
	defer c.wg.Done()
	defer c.reconnecting.Store(false)

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil && c.conn == broken {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Retried on the next read of the nil connection.
		c.logger.Printf("feed reconnect: %v", err)
		return
	}

	if c.closed.Load() {
		c.connMu.Lock()
		c.conn.Close()
		c.connMu.Unlock()
		return
	}
	c.reconnects.Add(1)
}

func (c *Client) handleMessage(message []byte) {
	var ev Event
	if err := json.Unmarshal(message, &ev); err != nil || ev.ClaimID == "" {
		c.logger.Printf("feed: ignoring malformed message: %s", message)
		return
	}

	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A dead connection surfaces in readLoop.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}
