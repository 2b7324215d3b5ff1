package world

import (
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAnonymous is returned when capturing without a resolved profile.
	ErrAnonymous = errors.New("no signed-in player")
	// ErrNoAllowance is returned when the profile has no captures left.
	ErrNoAllowance = errors.New("no captures remaining")
	// ErrAllowanceExhausted is returned after the server reported that the
	// player is out of captures for the period.
	ErrAllowanceExhausted = errors.New("capture allowance exhausted for today")
)

// Emitter queues an envelope on the event channel.
type Emitter interface {
	Send(env Envelope) error
}

// CaptureCoordinator turns a capture tap into a capture request. It does not
// wait for the server; the server answers through the zone events.
type CaptureCoordinator struct {
	emitter Emitter
	clock   clockwork.Clock
}

// NewCaptureCoordinator creates a coordinator that emits through emitter.
func NewCaptureCoordinator(emitter Emitter, clock clockwork.Clock) *CaptureCoordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CaptureCoordinator{emitter: emitter, clock: clock}
}

// CaptureAt emits a capture request for c on behalf of profile and takes one
// capture off profile's allowance. The allowance is only touched once the
// request has been queued.
func (cc *CaptureCoordinator) CaptureAt(c models.Coordinate, profile *models.PlayerProfile) error {
	if profile == nil {
		return ErrAnonymous
	}
	if !profile.CanCapture() {
		return ErrNoAllowance
	}
	if cc.emitter == nil {
		return ErrNotConnected
	}

	env, err := NewEnvelope(EventTypeCaptureRequest, cc.clock.Now(), CaptureRequestPayload{
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		UserID:    profile.ID,
	})
	if err != nil {
		return err
	}
	if err := cc.emitter.Send(env); err != nil {
		return fmt.Errorf("send capture request: %w", err)
	}

	profile.RemainingCaptures--

	log.Info().
		Str("player_id", profile.ID.String()).
		Float64("latitude", c.Latitude).
		Float64("longitude", c.Longitude).
		Int("remaining", profile.RemainingCaptures).
		Msg("capture requested")
	return nil
}
