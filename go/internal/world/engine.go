package world

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/turfwar/go/internal/location"
	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/mcdev12/turfwar/go/internal/viewport"
	"github.com/mcdev12/turfwar/go/internal/zones"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by engine calls made after Run has returned.
var ErrClosed = errors.New("world engine closed")

// EngineConfig configures an Engine
type EngineConfig struct {
	InboxSize             int
	Limits                viewport.Limits
	InitialLatitudeDelta  float64
	InitialLongitudeDelta float64
	LookupTimeout         time.Duration
}

// DefaultEngineConfig returns the default engine settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		InboxSize:             256,
		Limits:                viewport.DefaultLimits(),
		InitialLatitudeDelta:  location.DefaultLatitudeDelta,
		InitialLongitudeDelta: location.DefaultLongitudeDelta,
		LookupTimeout:         10 * time.Second,
	}
}

type engineMsg interface{ isEngineMsg() }

type inboundEvent struct {
	eventType EventType
	payload   interface{}
}

func (inboundEvent) isEngineMsg() {}

type connectionChanged struct{ state ConnectionState }

func (connectionChanged) isEngineMsg() {}

type positionUpdate struct {
	coord   models.Coordinate
	initial bool
	reply   chan error
}

func (positionUpdate) isEngineMsg() {}

type regionChange struct {
	viewport models.Viewport
	reply    chan error
}

func (regionChange) isEngineMsg() {}

type captureCmd struct {
	reply chan error
}

func (captureCmd) isEngineMsg() {}

type profileResolved struct {
	generation uint64
	profile    *models.PlayerProfile
	err        error
}

func (profileResolved) isEngineMsg() {}

// Engine is the single writer of the client's world state. Every input is
// queued on a bounded inbox and applied in order by Run; readers only ever
// see published Snapshots.
type Engine struct {
	config  EngineConfig
	clock   clockwork.Clock
	lookup  SessionLookup
	emitter Emitter

	inbox chan engineMsg
	done  chan struct{}

	// owned by the loop
	runCtx     context.Context
	store      *zones.Store
	tracker    *location.Tracker
	session    *SessionController
	capture    *CaptureCoordinator
	radius     float64
	connection ConnectionState
	seq        uint64
	applied    uint64
	lastEvent  time.Time

	snapshot  atomic.Pointer[Snapshot]
	changedMu sync.Mutex
	changed   chan struct{}
}

// NewEngine creates an engine. lookup resolves the player profile; it may
// be nil, in which case the player stays anonymous. emitter carries capture
// and sync requests to the server.
func NewEngine(config EngineConfig, lookup SessionLookup, emitter Emitter, clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.InboxSize <= 0 {
		config.InboxSize = DefaultEngineConfig().InboxSize
	}
	if config.LookupTimeout <= 0 {
		config.LookupTimeout = DefaultEngineConfig().LookupTimeout
	}

	e := &Engine{
		config:  config,
		clock:   clock,
		lookup:  lookup,
		emitter: emitter,
		inbox:   make(chan engineMsg, config.InboxSize),
		done:    make(chan struct{}),
		store:   zones.NewStore(),
		tracker: location.NewTracker(config.InitialLatitudeDelta, config.InitialLongitudeDelta),
		session: NewSessionController(),
		capture: NewCaptureCoordinator(emitter, clock),
		changed: make(chan struct{}),
	}
	e.publish()
	return e
}

// Run bootstraps the session and applies queued inputs until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	e.runCtx = ctx
	e.bootstrap()

	for {
		select {
		case <-ctx.Done():
			log.Info().Uint64("seq", e.seq).Msg("world engine stopped")
			return nil

		case m := <-e.inbox:
			switch msg := m.(type) {
			case inboundEvent:
				e.applyEvent(msg.eventType, msg.payload)

			case connectionChanged:
				e.applyConnection(msg.state)

			case positionUpdate:
				msg.reply <- e.applyPosition(msg.coord, msg.initial)

			case regionChange:
				msg.reply <- e.applyRegion(msg.viewport)

			case captureCmd:
				msg.reply <- e.applyCapture()

			case profileResolved:
				if e.session.Resolve(msg.generation, msg.profile, msg.err) {
					e.publish()
				}
			}
		}
	}
}

// Deliver decodes a server event and queues it. Decoding errors are
// returned without touching state.
func (e *Engine) Deliver(ctx context.Context, env Envelope) error {
	payload, err := ParseEventPayload(&env)
	if err != nil {
		return err
	}
	return e.post(ctx, inboundEvent{eventType: env.Type, payload: payload})
}

// ConnectionChanged queues a connection state change.
func (e *Engine) ConnectionChanged(ctx context.Context, state ConnectionState) error {
	return e.post(ctx, connectionChanged{state: state})
}

// UpdatePosition records a device position. initial marks a one-shot fix,
// which also recentres the viewport.
func (e *Engine) UpdatePosition(ctx context.Context, c models.Coordinate, initial bool) error {
	reply := make(chan error, 1)
	if err := e.post(ctx, positionUpdate{coord: c, initial: initial, reply: reply}); err != nil {
		return err
	}
	return e.await(ctx, reply)
}

// ChangeViewport records the region the map settled on.
func (e *Engine) ChangeViewport(ctx context.Context, vp models.Viewport) error {
	reply := make(chan error, 1)
	if err := e.post(ctx, regionChange{viewport: vp, reply: reply}); err != nil {
		return err
	}
	return e.await(ctx, reply)
}

// Capture requests a capture around the player's current position and
// takes one capture off the local allowance. It returns once the request
// is queued, not when the server has acted on it.
func (e *Engine) Capture(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := e.post(ctx, captureCmd{reply: reply}); err != nil {
		return err
	}
	return e.await(ctx, reply)
}

// Closed reports whether Run has returned.
func (e *Engine) Closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Snapshot returns the latest published state.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Wait blocks until a snapshot newer than afterSeq is published.
func (e *Engine) Wait(ctx context.Context, afterSeq uint64) (*Snapshot, error) {
	for {
		e.changedMu.Lock()
		changed := e.changed
		e.changedMu.Unlock()

		if snap := e.snapshot.Load(); snap.Seq > afterSeq {
			return snap, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.done:
			return nil, ErrClosed
		}
	}
}

func (e *Engine) post(ctx context.Context, m engineMsg) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}

	select {
	case e.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrClosed
	}
}

func (e *Engine) await(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrClosed
	}
}

func (e *Engine) applyEvent(eventType EventType, payload interface{}) {
	logger := log.With().Str("event_type", string(eventType)).Logger()
	e.applied++
	e.lastEvent = e.clock.Now()

	switch p := payload.(type) {
	case FullSyncPayload:
		e.store.ReplaceAll(p.Zones())
		e.radius = p.Radius
		logger.Info().Int("zones", e.store.Len()).Float64("radius", p.Radius).Msg("applied full sync")

	case ZonePayload:
		if !e.store.Upsert(p.Zone()) {
			logger.Debug().Str("zone_id", p.ID.String()).Msg("zone unchanged")
			return
		}

	case ZoneRemovedPayload:
		if !e.store.Remove(p.Cap.ID) {
			logger.Debug().Str("zone_id", p.Cap.ID.String()).Msg("ignoring removal of unknown zone")
			return
		}

	case AllowanceExhaustedPayload:
		e.session.Exhaust()
		logger.Info().Msg("capture allowance exhausted")

	case DailyResetPayload:
		e.session.ClearExhausted()
		logger.Info().Msg("daily reset")
		e.requestSync()
		e.bootstrap()

	default:
		logger.Warn().Msg("unhandled event payload")
		return
	}
	e.publish()
}

func (e *Engine) applyConnection(state ConnectionState) {
	if state == e.connection {
		return
	}
	e.connection = state

	// Stale zones stay up while reconnecting; a torn down channel takes
	// them with it.
	if state == StateDisconnected {
		e.store.Reset()
		e.radius = 0
	}
	e.publish()
}

func (e *Engine) applyPosition(c models.Coordinate, initial bool) error {
	var err error
	if initial {
		err = e.tracker.SetInitialFix(c)
	} else {
		err = e.tracker.UpdatePosition(c)
	}
	if err != nil {
		return err
	}
	e.publish()
	return nil
}

func (e *Engine) applyRegion(vp models.Viewport) error {
	if err := e.tracker.ApplyRegion(vp); err != nil {
		return err
	}
	e.publish()
	return nil
}

func (e *Engine) applyCapture() error {
	// The published snapshot always mirrors the loop's current state.
	if err := e.snapshot.Load().CanCapture(); err != nil {
		return err
	}

	pos, err := e.tracker.Position()
	if err != nil {
		return err
	}
	if err := e.capture.CaptureAt(pos, e.session.profile); err != nil {
		return err
	}
	e.publish()
	return nil
}

func (e *Engine) requestSync() {
	if e.emitter == nil {
		return
	}
	env, err := NewEnvelope(EventTypeSyncRequest, e.clock.Now(), nil)
	if err == nil {
		err = e.emitter.Send(env)
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to request full sync")
	}
}

// bootstrap resolves the profile off the loop and posts the result back.
func (e *Engine) bootstrap() {
	gen := e.session.Begin()
	e.publish()

	if e.lookup == nil {
		e.session.Resolve(gen, nil, nil)
		e.publish()
		return
	}

	ctx := e.runCtx
	go func() {
		lookupCtx, cancel := context.WithTimeout(ctx, e.config.LookupTimeout)
		defer cancel()

		profile, err := e.lookup.Lookup(lookupCtx)
		if err := e.post(ctx, profileResolved{generation: gen, profile: profile, err: err}); err != nil {
			log.Debug().Err(err).Msg("dropping session result after shutdown")
		}
	}()
}

func (e *Engine) publish() {
	e.seq++

	snap := &Snapshot{
		Seq:           e.seq,
		Zones:         e.store.Freeze(),
		Profile:       e.session.Profile(),
		Session:       e.session.State(),
		Exhausted:     e.session.Exhausted(),
		PlayerRadius:  e.radius,
		Viewport:      e.tracker.Viewport(),
		Located:       e.tracker.Located(),
		Connection:    e.connection,
		EventsApplied: e.applied,
		LastEventAt:   e.lastEvent,
		limits:        e.config.Limits,
	}
	if pos, err := e.tracker.Position(); err == nil {
		snap.Position = pos
	}
	e.snapshot.Store(snap)

	e.changedMu.Lock()
	close(e.changed)
	e.changed = make(chan struct{})
	e.changedMu.Unlock()
}

var (
	_ EventSink = (*Engine)(nil)
	_ Emitter   = (*ConnectionManager)(nil)
)
