// Package ws adapts a WebSocket connection into a bus subscriber. Each
// dashboard connection gets a buffered outbound channel drained by a
// single writer goroutine, which keeps per-subscriber delivery in
// publish order and turns a slow or dead connection into a Send error
// the bus can act on.
package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"relay/internal/relay"
)

var (
	// ErrClosed reports a send to a subscriber whose connection ended.
	ErrClosed = errors.New("subscriber closed")

	// ErrBufferFull reports a subscriber that cannot keep up with the
	// broadcast rate.
	ErrBufferFull = errors.New("subscriber send buffer full")
)

// frame is the wire format pushed to dashboard clients: one JSON object
// per event, named by channel.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Config holds per-connection transport settings.
type Config struct {
	SendBuffer   int           `env:"WS_SEND_BUFFER" envDefault:"32"`
	PingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
}

// Client is one live dashboard connection implementing relay.Subscriber.
type Client struct {
	id          string
	conn        *websocket.Conn
	logger      *zap.Logger
	config      Config
	connectedAt time.Time

	send chan relay.Event
	done chan struct{}
	once sync.Once
}

// NewClient wraps an upgraded connection. The caller is expected to
// register the client with the bus and then start the pumps.
func NewClient(conn *websocket.Conn, logger *zap.Logger, config Config) *Client {
	id := uuid.NewString()
	return &Client{
		id:          id,
		conn:        conn,
		logger:      logger.Named("ws").With(zap.String("id", id)),
		config:      config,
		connectedAt: time.Now(),
		send:        make(chan relay.Event, config.SendBuffer),
		done:        make(chan struct{}),
	}
}

// ID implements relay.Subscriber.
func (c *Client) ID() string { return c.id }

// ConnectedAt returns when the connection was opened.
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// Send implements relay.Subscriber. It never blocks: a closed client or
// a full buffer is an error, and the bus evicts the client in response.
func (c *Client) Send(event relay.Event) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- event:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

// Close implements relay.Subscriber. Safe to call more than once.
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}

// WritePump drains the send channel onto the wire in FIFO order and
// keeps the connection alive with pings. It returns when the client is
// closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			msg := frame{Event: event.Kind.Channel(), Data: event.Payload}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}

// ReadPump watches the connection for liveness. Dashboard clients only
// listen, so inbound frames are discarded; a read error means the
// transport closed and onClose is invoked to unsubscribe the client.
func (c *Client) ReadPump(onClose func()) {
	defer func() {
		onClose()
		c.Close()
	}()

	c.conn.SetPongHandler(func(string) error { return nil })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read failed", zap.Error(err))
			}
			return
		}
	}
}
