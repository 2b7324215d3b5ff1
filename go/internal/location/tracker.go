package location

import (
	"errors"
	"fmt"

	"github.com/mcdev12/turfwar/go/internal/models"
)

const (
	// DefaultLatitudeDelta is the latitude span of the first region shown.
	DefaultLatitudeDelta = 0.0922
	// DefaultLongitudeDelta is the longitude span of the first region shown.
	DefaultLongitudeDelta = 0.0421
)

var (
	// ErrLocationUnavailable is returned while no position has been supplied.
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrInvalidCoordinate is returned for positions outside degree ranges.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Tracker holds the device position and the region the map is showing.
// It is owned by the world engine and is not safe for concurrent use.
type Tracker struct {
	position models.Coordinate
	located  bool
	viewport models.Viewport
}

// NewTracker creates a tracker with no position yet. The first fix centres
// a viewport of the given spans on the player.
func NewTracker(latitudeDelta, longitudeDelta float64) *Tracker {
	return &Tracker{
		viewport: models.Viewport{
			LatitudeDelta:  latitudeDelta,
			LongitudeDelta: longitudeDelta,
		},
	}
}

// SetInitialFix records a one-shot position and recentres the viewport on
// it, keeping the current spans.
func (t *Tracker) SetInitialFix(c models.Coordinate) error {
	if !c.Valid() {
		return fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinate, c.Latitude, c.Longitude)
	}
	t.position = c
	t.located = true
	t.viewport.Center = c
	return nil
}

// UpdatePosition records a position from the ongoing update stream. The
// viewport only follows when this is the first position seen.
func (t *Tracker) UpdatePosition(c models.Coordinate) error {
	if !t.located {
		return t.SetInitialFix(c)
	}
	if !c.Valid() {
		return fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinate, c.Latitude, c.Longitude)
	}
	t.position = c
	return nil
}

// ApplyRegion replaces the viewed region after a map region change.
func (t *Tracker) ApplyRegion(vp models.Viewport) error {
	if err := vp.Validate(); err != nil {
		return err
	}
	t.viewport = vp
	return nil
}

// Position returns the last known position, or ErrLocationUnavailable.
func (t *Tracker) Position() (models.Coordinate, error) {
	if !t.located {
		return models.Coordinate{}, ErrLocationUnavailable
	}
	return t.position, nil
}

// Located reports whether any position has been supplied.
func (t *Tracker) Located() bool {
	return t.located
}

// Viewport returns the region currently viewed.
func (t *Tracker) Viewport() models.Viewport {
	return t.viewport
}
