package scorestream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"OddsPulse/internal/domain/models"
)

// Path is the scoring stream endpoint on the API server.
const Path = "/api/ws/score"

// Client is a websocket client for the scoring stream.
type Client struct {
	url          string
	pingInterval time.Duration

	mu        sync.Mutex // guards writes, conn and connected
	conn      *websocket.Conn
	connected bool
}

// New creates a client for a ws:// or wss:// URL.
func New(wsURL string, pingInterval time.Duration) *Client {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{url: wsURL, pingInterval: pingInterval}
}

// StreamURL turns an API base URL (http or https) into the stream URL.
func StreamURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + Path
	return u.String(), nil
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("scorestream connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	return nil
}

// Send writes one frame.
func (c *Client) Send(frame *models.ScoreFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("scorestream not connected")
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("send frame %s: %w", frame.ID, err)
	}
	return nil
}

// Read streams replies until ctx is done or the connection fails. The error channel
// receives at most one error; both channels are closed when reading stops.
// Cancelling ctx expires the read deadline, which leaves the connection unreadable,
// so callers still Close the client afterwards.
func (c *Client) Read(ctx context.Context) (<-chan models.ScoreReply, <-chan error) {
	replies := make(chan models.ScoreReply, 64)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if conn != nil {
					_ = conn.SetReadDeadline(time.Now())
				}
				return
			case <-ticker.C:
				c.mu.Lock()
				if c.conn != nil {
					_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				c.mu.Unlock()
			}
		}
	}()

	// read loop
	go func() {
		defer close(replies)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("scorestream conn nil")
			return
		}
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					errs <- fmt.Errorf("scorestream read: %w", err)
				}
				return
			}
			var r models.ScoreReply
			if err := json.Unmarshal(b, &r); err != nil {
				// ignore frames that are not replies
				continue
			}
			select {
			case replies <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	return replies, errs
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
