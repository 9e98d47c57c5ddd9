// Package feed subscribes to the attendance snapshot stream. Unlike
// the map link, the feed reconnects: losing it costs freshness, not
// the session.
package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/shiftpulse/pulsemap/internal/dispatcher"
	"github.com/shiftpulse/pulsemap/internal/logging"
	"github.com/shiftpulse/pulsemap/pkg/core"
	"github.com/shiftpulse/pulsemap/pkg/streaming"
)

const (
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
)

// Applier receives each decoded snapshot. The supervisor implements it.
type Applier interface {
	Apply(snap core.Snapshot)
}

// Config holds the feed endpoint.
type Config struct {
	URL    string
	Secret string
}

// Client maintains the snapshot subscription.
type Client struct {
	cfg     Config
	applier Applier
	disp    *dispatcher.Dispatcher
	logger  *slog.Logger

	mu     sync.Mutex
	conn   *ws.Conn
	done   chan struct{}
	closed bool
}

// New creates a feed client routing snapshots into the applier.
func New(cfg Config, applier Applier, logger *slog.Logger) (*Client, error) {
	c := &Client{
		cfg:     cfg,
		applier: applier,
		logger:  logger,
		done:    make(chan struct{}),
	}

	disp, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating feed dispatcher: %w", err)
	}
	c.disp = disp

	disp.Register(streaming.TypeSnapshot, func(msg dispatcher.Message) (any, error) {
		var p streaming.SnapshotPayload
		if err := json.Unmarshal(msg.Envelope.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding snapshot payload: %w", err)
		}
		c.applier.Apply(core.Snapshot{Events: p.Events})
		return nil, nil
	}, dispatcher.Logged())

	return c, nil
}

// Subscribe connects to the feed and starts the read loop.
func (c *Client) Subscribe() error {
	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop()
	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *Client) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.cfg.Secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("feed dial failed: %w", err)
	}
	return conn, nil
}

// readLoop decodes incoming envelopes and routes them.
func (c *Client) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("Feed read error", "error", err)
			go c.reconnect()
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Undecodable feed message", "raw", string(message))
			continue
		}

		msg := dispatcher.Message{Envelope: env, ReceivedAt: time.Now()}
		if _, err := c.disp.Dispatch(msg); err != nil {
			c.logger.Debug("Feed message not handled", "type", env.Type, "error", err)
		}
	}
}

// reconnect re-establishes the feed with exponential backoff. The next
// snapshot after reconnect repaints the whole board, so no replay is
// needed.
func (c *Client) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info("Reconnecting to feed", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Feed reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("Feed reconnected", "attempt", attempt)
		go c.readLoop()
		return
	}

	c.logger.Error("Feed reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// Close shuts the subscription down.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
