package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	gorilla "github.com/gorilla/websocket"

	"github.com/DoyleJ11/rps-client/internal/channel"
)

// readLimit only guards against a runaway peer. Game frames are far smaller,
// and anything below the limit reaches the session whatever its type.
const readLimit = 1 << 20

// CoderDialer dials with github.com/coder/websocket.
type CoderDialer struct {
	HTTPClient *http.Client
	Header     http.Header
}

func (d CoderDialer) Dial(ctx context.Context, endpoint string) (channel.Conn, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: d.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(readLimit)
	return &coderConn{conn: conn}, nil
}

type coderConn struct {
	conn *websocket.Conn
}

func (c *coderConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		// Treat clean close/going-away as normal:
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, fmt.Errorf("%w: %v", channel.ErrClosed, err)
		}
		return nil, err
	}
	return data, nil
}

func (c *coderConn) Write(ctx context.Context, payload []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *coderConn) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	if err != nil && errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// GorillaDialer dials with github.com/gorilla/websocket.
type GorillaDialer struct {
	Dialer *gorilla.Dialer
	Header http.Header
}

func (d GorillaDialer) Dial(ctx context.Context, endpoint string) (channel.Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = gorilla.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(readLimit)
	return &gorillaConn{conn: conn}, nil
}

type gorillaConn struct {
	conn      *gorilla.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Read has no context in gorilla; cancelling ctx closes the connection to
// unblock it.
func (c *gorillaConn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
			return nil, fmt.Errorf("%w: %v", channel.ErrClosed, err)
		}
		return nil, err
	}
	return data, nil
}

func (c *gorillaConn) Write(ctx context.Context, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	return c.conn.WriteMessage(gorilla.TextMessage, payload)
}

func (c *gorillaConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "bye")
		_ = c.conn.WriteControl(gorilla.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	if errors.Is(c.closeErr, net.ErrClosed) {
		return nil
	}
	return c.closeErr
}

// NewDialer picks the transport by config name ("coder" or "gorilla").
func NewDialer(transport string) (channel.Dialer, error) {
	switch transport {
	case "", "coder":
		return CoderDialer{}, nil
	case "gorilla":
		return GorillaDialer{}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}
