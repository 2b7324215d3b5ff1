package world

import (
	"context"

	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionLookup resolves the signed-in player. A nil profile with a nil
// error means nobody is signed in.
type SessionLookup interface {
	Lookup(ctx context.Context) (*models.PlayerProfile, error)
}

// SessionState tracks the profile bootstrap
type SessionState int

const (
	SessionLoading SessionState = iota
	SessionReady
	SessionAnonymous
)

func (s SessionState) String() string {
	switch s {
	case SessionLoading:
		return "loading"
	case SessionReady:
		return "ready"
	case SessionAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// SessionController holds the player profile and the exhausted flag. It is
// owned by the engine loop and is not safe for concurrent use.
//
// Each bootstrap gets a generation number; a result carrying an older
// generation than the latest Begin is discarded.
type SessionController struct {
	state      SessionState
	profile    *models.PlayerProfile
	exhausted  bool
	generation uint64
}

// NewSessionController creates a controller that has not bootstrapped yet.
func NewSessionController() *SessionController {
	return &SessionController{state: SessionLoading}
}

// Begin starts a bootstrap and returns its generation. The current profile
// stays in place until the result arrives.
func (s *SessionController) Begin() uint64 {
	s.generation++
	s.state = SessionLoading
	return s.generation
}

// Resolve applies the outcome of bootstrap gen. It reports false when a
// newer bootstrap has started since.
func (s *SessionController) Resolve(gen uint64, profile *models.PlayerProfile, err error) bool {
	if gen != s.generation {
		log.Debug().Uint64("generation", gen).Uint64("current", s.generation).Msg("dropping stale session result")
		return false
	}

	switch {
	case err != nil:
		log.Warn().Err(err).Msg("session bootstrap failed, continuing anonymously")
		s.profile = nil
		s.state = SessionAnonymous
	case profile == nil:
		s.profile = nil
		s.state = SessionAnonymous
	default:
		p := *profile
		if p.RemainingCaptures < 0 {
			p.RemainingCaptures = 0
		}
		s.profile = &p
		s.state = SessionReady
	}
	return true
}

// Exhaust records that the server has no captures left for this period.
func (s *SessionController) Exhaust() {
	s.exhausted = true
	if s.profile != nil {
		s.profile.RemainingCaptures = 0
	}
}

// ClearExhausted lifts the exhausted flag after a daily reset.
func (s *SessionController) ClearExhausted() {
	s.exhausted = false
}

// Profile returns a copy of the current profile, or nil when anonymous.
func (s *SessionController) Profile() *models.PlayerProfile {
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

func (s *SessionController) State() SessionState { return s.state }

func (s *SessionController) Exhausted() bool { return s.exhausted }
