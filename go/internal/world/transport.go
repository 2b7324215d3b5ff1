package world

import (
	"context"
	"errors"
)

var (
	// ErrChannelClosed is returned when sending on a closed channel.
	ErrChannelClosed = errors.New("event channel closed")
	// ErrSendQueueFull is returned when the outbound buffer has no room.
	ErrSendQueueFull = errors.New("event channel send queue full")
)

// Channel is one live, bidirectional session with the world server.
type Channel interface {
	// Inbound yields server envelopes in delivery order. It is closed when
	// the session ends for any reason.
	Inbound() <-chan Envelope

	// Send queues env for delivery without waiting on the network.
	Send(env Envelope) error

	// Close flushes queued envelopes and releases the session.
	Close() error
}

// Dialer opens Channels to the world server.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}
