package world

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// WebSocketConfig holds configuration for the websocket transport
type WebSocketConfig struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	SendBufferSize   int
	InboundBuffer    int
	ReadBufferSize   int
	WriteBufferSize  int
}

// DefaultWebSocketConfig returns default websocket configuration for url
func DefaultWebSocketConfig(url string) WebSocketConfig {
	return WebSocketConfig{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   4 << 20, // a full sync can carry many zones
		SendBufferSize:   64,
		InboundBuffer:    256,
		ReadBufferSize:   4096,
		WriteBufferSize:  1024,
	}
}

// WebSocketDialer opens event channels over a websocket
type WebSocketDialer struct {
	config WebSocketConfig
	dialer *websocket.Dialer
	clock  clockwork.Clock
}

// NewWebSocketDialer creates a dialer for config
func NewWebSocketDialer(config WebSocketConfig, clock clockwork.Clock) *WebSocketDialer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WebSocketDialer{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
		},
		clock: clock,
	}
}

// Dial connects to the server and starts the read and write pumps.
func (d *WebSocketDialer) Dial(ctx context.Context) (Channel, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.config.URL, d.config.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", d.config.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.config.URL, err)
	}

	c := &wsChannel{
		id:        uuid.New().String(),
		conn:      conn,
		config:    d.config,
		clock:     d.clock,
		inbound:   make(chan Envelope, d.config.InboundBuffer),
		send:      make(chan []byte, d.config.SendBufferSize),
		done:      make(chan struct{}),
		writeDone: make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("url", d.config.URL).
		Msg("websocket channel established")

	return c, nil
}

// wsChannel is one websocket session. readPump owns inbound; writePump owns
// every write to conn.
type wsChannel struct {
	id     string
	conn   *websocket.Conn
	config WebSocketConfig
	clock  clockwork.Clock

	inbound chan Envelope

	mu     sync.Mutex
	send   chan []byte
	closed bool

	done      chan struct{}
	writeDone chan struct{}
	closeOnce sync.Once
}

func (c *wsChannel) Inbound() <-chan Envelope {
	return c.inbound
}

func (c *wsChannel) Send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stops accepting sends, waits for queued envelopes to be written and
// then closes the socket.
func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
	<-c.writeDone
	return nil
}

// shutdown tells the write pump the peer is gone.
func (c *wsChannel) shutdown() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// writePump handles sending messages to the websocket connection
func (c *wsChannel) writePump() {
	ticker := c.clock.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.writeDone)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.Chan():
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				return
			}

		case <-c.done:
			return
		}
	}
}

// readPump handles reading messages from the websocket connection
func (c *wsChannel) readPump() {
	defer func() {
		close(c.inbound)
		c.shutdown()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected websocket close")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", c.id).
				Msg("dropping malformed envelope")
			continue
		}

		select {
		case c.inbound <- env:
		case <-c.writeDone:
			return
		}
	}
}
