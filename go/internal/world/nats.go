package world

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS transport
type NATSConfig struct {
	URL           string
	Name          string
	EventSubject  string // server envelopes arrive here
	ClientSubject string // client envelopes are published here
	FlushTimeout  time.Duration
	InboundBuffer int
}

// DefaultNATSConfig returns default NATS transport configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "turfwar-client",
		EventSubject:  "turf.events",
		ClientSubject: "turf.client",
		FlushTimeout:  5 * time.Second,
		InboundBuffer: 256,
	}
}

// NATSDialer opens event channels over a NATS connection. Reconnection is
// left to the ConnectionManager so every new session re-requests a sync.
type NATSDialer struct {
	config NATSConfig
}

// NewNATSDialer creates a dialer for config
func NewNATSDialer(config NATSConfig) *NATSDialer {
	return &NATSDialer{config: config}
}

// Dial connects to NATS and subscribes to the event subject.
func (d *NATSDialer) Dial(ctx context.Context) (Channel, error) {
	c := &natsChannel{
		config:  d.config,
		inbound: make(chan Envelope, d.config.InboundBuffer),
		done:    make(chan struct{}),
	}

	opts := []nats.Option{
		nats.Name(d.config.Name),
		nats.NoReconnect(),
		nats.ClosedHandler(func(nc *nats.Conn) {
			c.release()
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(d.config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	c.nc = nc

	if _, err := nc.Subscribe(d.config.EventSubject, c.deliver); err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", d.config.EventSubject, err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("subject", d.config.EventSubject).
		Msg("NATS channel established")

	return c, nil
}

type natsChannel struct {
	config NATSConfig
	nc     *nats.Conn

	inbound chan Envelope
	done    chan struct{}

	mu       sync.RWMutex
	released bool
	once     sync.Once
}

func (c *natsChannel) Inbound() <-chan Envelope {
	return c.inbound
}

// deliver runs on the subscription's goroutine.
func (c *natsChannel) deliver(msg *nats.Msg) {
	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed envelope")
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.released {
		return
	}
	select {
	case c.inbound <- env:
	case <-c.done:
	}
}

func (c *natsChannel) Send(env Envelope) error {
	c.mu.RLock()
	released := c.released
	c.mu.RUnlock()
	if released {
		return ErrChannelClosed
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := c.nc.Publish(c.config.ClientSubject, data); err != nil {
		return fmt.Errorf("publish %s: %w", c.config.ClientSubject, err)
	}
	return nil
}

// Close flushes published envelopes and closes the connection.
func (c *natsChannel) Close() error {
	var err error
	if !c.nc.IsClosed() {
		if ferr := c.nc.FlushTimeout(c.config.FlushTimeout); ferr != nil {
			err = fmt.Errorf("flush NATS connection: %w", ferr)
		}
		c.nc.Close()
	}
	c.release()
	return err
}

// release closes inbound once no subscription callback can write to it.
func (c *natsChannel) release() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.released = true
		close(c.inbound)
		c.mu.Unlock()
	})
}
