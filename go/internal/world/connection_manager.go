package world

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotConnected is returned when sending while no channel is subscribed.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyStarted is returned by a second call to Run.
	ErrAlreadyStarted = errors.New("connection manager already started")
)

// ConnectionState is where the ConnectionManager is in its lifecycle
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateSubscribed
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// EventSink receives everything the ConnectionManager learns. Calls are
// made from the manager's Run goroutine, in order.
type EventSink interface {
	Deliver(ctx context.Context, env Envelope) error
	ConnectionChanged(ctx context.Context, state ConnectionState) error
}

// ConnectionConfig holds the reconnection policy
type ConnectionConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	TeardownWait   time.Duration
}

// DefaultConnectionConfig returns the default reconnection policy
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     60 * time.Second,
		TeardownWait:   5 * time.Second,
	}
}

// ConnectionManager owns the event channel lifecycle: it dials, requests a
// full sync on every subscribe, routes inbound envelopes to an EventSink and
// redials with exponential backoff when the channel drops.
type ConnectionManager struct {
	dialer Dialer
	config ConnectionConfig
	clock  clockwork.Clock

	state   atomic.Int32
	started atomic.Bool

	mu      sync.RWMutex
	channel Channel

	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewConnectionManager creates a manager that dials through dialer
func NewConnectionManager(dialer Dialer, config ConnectionConfig, clock clockwork.Clock) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ConnectionManager{
		dialer:  dialer,
		config:  config,
		clock:   clock,
		stopped: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (cm *ConnectionManager) State() ConnectionState {
	return ConnectionState(cm.state.Load())
}

// Send queues env on the subscribed channel without waiting for the
// network.
func (cm *ConnectionManager) Send(env Envelope) error {
	cm.mu.RLock()
	ch := cm.channel
	cm.mu.RUnlock()

	if ch == nil || cm.State() != StateSubscribed {
		return ErrNotConnected
	}
	return ch.Send(env)
}

// Run keeps a channel subscribed until ctx is cancelled or Stop is called.
// Returning means the disconnect notice was sent (if a channel was up), the
// channel is released and sink will not be called again.
//
// A manager runs once; later calls return ErrAlreadyStarted.
func (cm *ConnectionManager) Run(ctx context.Context, sink EventSink) error {
	if !cm.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	cm.mu.Lock()
	cm.cancel = cancel
	cm.mu.Unlock()
	defer cancel()
	defer close(cm.stopped)

	backoff := cm.config.InitialBackoff
	for {
		cm.setState(ctx, sink, StateConnecting)

		ch, err := cm.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				cm.setState(context.Background(), sink, StateDisconnected)
				return nil
			}
			log.Warn().Err(err).Dur("backoff", backoff).Msg("event channel dial failed")
			if !cm.wait(ctx, sink, backoff) {
				cm.setState(context.Background(), sink, StateDisconnected)
				return nil
			}
			backoff = nextBackoff(backoff, cm.config.MaxBackoff)
			continue
		}

		backoff = cm.config.InitialBackoff
		cm.attach(ch)
		cm.setState(ctx, sink, StateSubscribed)
		cm.requestSync(ch)

		lost := cm.pump(ctx, ch, sink)
		if !lost {
			cm.teardown(ch)
			cm.setState(context.Background(), sink, StateDisconnected)
			log.Info().Msg("event channel torn down")
			return nil
		}

		cm.detach()
		ch.Close()
		log.Warn().Dur("backoff", backoff).Msg("event channel lost, reconnecting")
		if !cm.wait(ctx, sink, backoff) {
			cm.setState(context.Background(), sink, StateDisconnected)
			return nil
		}
		backoff = nextBackoff(backoff, cm.config.MaxBackoff)
	}
}

// Stop tears the channel down and waits for Run to return.
func (cm *ConnectionManager) Stop() {
	cm.mu.RLock()
	cancel := cm.cancel
	cm.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-cm.stopped:
	case <-time.After(cm.config.TeardownWait):
		log.Warn().Msg("timed out waiting for connection manager to stop")
	}
}

// pump forwards inbound envelopes until the channel closes (lost=true) or
// ctx is cancelled (lost=false).
func (cm *ConnectionManager) pump(ctx context.Context, ch Channel, sink EventSink) (lost bool) {
	for {
		select {
		case <-ctx.Done():
			return false
		case env, ok := <-ch.Inbound():
			if !ok {
				return true
			}
			if ctx.Err() != nil {
				return false
			}
			if err := sink.Deliver(ctx, env); err != nil {
				if ctx.Err() != nil {
					return false
				}
				log.Warn().Err(err).Str("event_type", string(env.Type)).Msg("dropping undeliverable event")
			}
		}
	}
}

func (cm *ConnectionManager) requestSync(ch Channel) {
	env, err := NewEnvelope(EventTypeSyncRequest, cm.clock.Now(), nil)
	if err == nil {
		err = ch.Send(env)
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to request full sync")
	}
}

// teardown emits the disconnect notice before releasing the channel.
func (cm *ConnectionManager) teardown(ch Channel) {
	cm.detach()

	env, err := NewEnvelope(EventTypeDisconnect, cm.clock.Now(), nil)
	if err == nil {
		err = ch.Send(env)
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to send disconnect notice")
	}
	if err := ch.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close event channel")
	}
}

func (cm *ConnectionManager) attach(ch Channel) {
	cm.mu.Lock()
	cm.channel = ch
	cm.mu.Unlock()
}

func (cm *ConnectionManager) detach() {
	cm.mu.Lock()
	cm.channel = nil
	cm.mu.Unlock()
}

// wait sleeps for d in the reconnecting state. It reports false when ctx
// ended first.
func (cm *ConnectionManager) wait(ctx context.Context, sink EventSink, d time.Duration) bool {
	cm.setState(ctx, sink, StateReconnecting)

	timer := cm.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}

func (cm *ConnectionManager) setState(ctx context.Context, sink EventSink, state ConnectionState) {
	prev := ConnectionState(cm.state.Swap(int32(state)))
	if prev == state {
		return
	}

	log.Info().
		Str("from", prev.String()).
		Str("to", state.String()).
		Msg("connection state changed")

	if err := sink.ConnectionChanged(ctx, state); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Str("state", state.String()).Msg("failed to report connection state")
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
