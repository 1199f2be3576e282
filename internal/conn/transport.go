package conn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Channel is one live duplex channel. Read blocks until a frame arrives or
// the channel dies; the terminal read error is a *CloseError when the
// shutdown was a negotiated close.
type Channel interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Close() error
}

// Dialer opens a channel to the given URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Channel, error)
}

// CloseError is the terminal read error of a channel that shut down via a
// close frame. Clean marks a graceful closure (normal or going-away); an
// unclean close drives the reconnect policy.
type CloseError struct {
	Code  int
	Clean bool
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("channel closed (code %d)", e.Code)
}

// WSDialer dials WebSocket channels.
type WSDialer struct {
	HandshakeTimeout time.Duration
}

// Dial opens a WebSocket connection.
func (d WSDialer) Dial(ctx context.Context, url string) (Channel, error) {
	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	c, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	return &wsChannel{conn: c}, nil
}

type wsChannel struct {
	conn *websocket.Conn
}

func (c *wsChannel) Read() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			clean := ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
			return nil, &CloseError{Code: ce.Code, Clean: clean}
		}
		return nil, err
	}
	return data, nil
}

func (c *wsChannel) Write(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsChannel) Close() error {
	return c.conn.Close()
}
