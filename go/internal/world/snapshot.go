package world

import (
	"time"

	"github.com/mcdev12/turfwar/go/internal/location"
	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/mcdev12/turfwar/go/internal/viewport"
	"github.com/mcdev12/turfwar/go/internal/zones"
)

// Snapshot is an immutable view of the world at one point of the engine
// loop. Seq increases by one for every published change.
type Snapshot struct {
	Seq          uint64
	Zones        *zones.Set
	Profile      *models.PlayerProfile
	Session      SessionState
	Exhausted    bool
	PlayerRadius float64
	Position     models.Coordinate
	Located      bool
	Viewport     models.Viewport
	Connection   ConnectionState

	EventsApplied uint64
	LastEventAt   time.Time

	limits viewport.Limits
}

// PlayerCircle is the circle drawn around the player. It is rendered
// regardless of zoom.
type PlayerCircle struct {
	Center    models.Coordinate `json:"center"`
	Radius    float64           `json:"radius"`
	TeamColor string            `json:"team_color,omitempty"`
}

// Visible returns the zones to render for the snapshot's viewport. Nothing
// is rendered until the first position fix centres the map.
func (s *Snapshot) Visible() []models.CaptureZone {
	if !s.Located {
		return nil
	}
	return viewport.Filter(s.Zones, s.Viewport, s.limits)
}

// Usable reports whether the map is located and zoomed in enough to show
// zones.
func (s *Snapshot) Usable() bool {
	return s.Located && s.limits.Usable(s.Viewport)
}

// ZonesCovering returns every zone whose circle contains c.
func (s *Snapshot) ZonesCovering(c models.Coordinate) []models.CaptureZone {
	return s.Zones.Covering(c)
}

// PlayerCircle returns the player's own circle, or false before the first
// position fix.
func (s *Snapshot) PlayerCircle() (PlayerCircle, bool) {
	if !s.Located {
		return PlayerCircle{}, false
	}
	circle := PlayerCircle{Center: s.Position, Radius: s.PlayerRadius}
	if s.Profile != nil {
		circle.TeamColor = s.Profile.Team.Color
	}
	return circle, true
}

// CanCapture returns nil when a capture would be accepted right now, or the
// reason it would be refused.
func (s *Snapshot) CanCapture() error {
	switch {
	case s.Profile == nil:
		return ErrAnonymous
	case s.Exhausted:
		return ErrAllowanceExhausted
	case !s.Profile.CanCapture():
		return ErrNoAllowance
	case !s.Located:
		return location.ErrLocationUnavailable
	case s.Connection != StateSubscribed:
		return ErrNotConnected
	}
	return nil
}
