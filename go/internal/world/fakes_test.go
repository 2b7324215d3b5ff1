package world

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeEmitter struct {
	mu   sync.Mutex
	sent []Envelope
	err  error
}

func (f *fakeEmitter) Send(env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeEmitter) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeEmitter) ofType(eventType EventType) []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Envelope
	for _, env := range f.sent {
		if env.Type == eventType {
			out = append(out, env)
		}
	}
	return out
}

// fakeLookup hands out profiles in order, repeating the last one.
type fakeLookup struct {
	profiles []*models.PlayerProfile
	err      error
	calls    atomic.Int32
}

func (f *fakeLookup) Lookup(ctx context.Context) (*models.PlayerProfile, error) {
	n := int(f.calls.Add(1)) - 1
	if f.err != nil {
		return nil, f.err
	}
	if len(f.profiles) == 0 {
		return nil, nil
	}
	if n >= len(f.profiles) {
		n = len(f.profiles) - 1
	}
	p := *f.profiles[n]
	return &p, nil
}

type fakeChannel struct {
	inbound chan Envelope

	mu       sync.Mutex
	sent     []Envelope
	closed   bool
	sendErr  error
	dropOnce sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{inbound: make(chan Envelope, 16)}
}

func (c *fakeChannel) Inbound() <-chan Envelope { return c.inbound }

func (c *fakeChannel) Send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.drop()
	return nil
}

// drop ends the session as if the peer went away.
func (c *fakeChannel) drop() {
	c.dropOnce.Do(func() { close(c.inbound) })
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) sentTypes() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventType, 0, len(c.sent))
	for _, env := range c.sent {
		out = append(out, env.Type)
	}
	return out
}

type dialResult struct {
	ch  Channel
	err error
}

// fakeDialer blocks each Dial until the test feeds it a result.
type fakeDialer struct {
	results chan dialResult
	calls   atomic.Int32
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{results: make(chan dialResult, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context) (Channel, error) {
	d.calls.Add(1)
	select {
	case r := <-d.results:
		return r.ch, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type recordingSink struct {
	states chan ConnectionState
	events chan Envelope
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		states: make(chan ConnectionState, 64),
		events: make(chan Envelope, 64),
	}
}

func (s *recordingSink) Deliver(ctx context.Context, env Envelope) error {
	s.events <- env
	return nil
}

func (s *recordingSink) ConnectionChanged(ctx context.Context, state ConnectionState) error {
	s.states <- state
	return nil
}

func (s *recordingSink) expectState(t *testing.T, want ConnectionState) {
	t.Helper()
	select {
	case got := <-s.states:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for state %s", want)
	}
}

func startEngine(t *testing.T, lookup SessionLookup, emitter Emitter) *Engine {
	t.Helper()
	return startEngineWithConfig(t, DefaultEngineConfig(), lookup, emitter)
}

func startEngineWithConfig(t *testing.T, config EngineConfig, lookup SessionLookup, emitter Emitter) *Engine {
	t.Helper()
	e := NewEngine(config, lookup, emitter, clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

// waitFor blocks until cond holds for a published snapshot.
func waitFor(t *testing.T, e *Engine, cond func(*Snapshot) bool) *Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snap := e.Snapshot()
	for !cond(snap) {
		var err error
		snap, err = e.Wait(ctx, snap.Seq)
		require.NoError(t, err, "condition never held")
	}
	return snap
}

// barrier returns once everything queued before it has been applied.
func barrier(t *testing.T, e *Engine) {
	t.Helper()
	require.NoError(t, e.ChangeViewport(context.Background(), e.Snapshot().Viewport))
}

func event(eventType EventType, data string) Envelope {
	env := Envelope{ID: "test", Type: eventType, Timestamp: time.Unix(0, 0)}
	if data != "" {
		env.Data = []byte(data)
	}
	return env
}
