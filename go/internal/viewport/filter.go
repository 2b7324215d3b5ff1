// Package viewport decides which capture zones are worth rendering for the
// region currently shown on the map.
package viewport

import (
	"math"

	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/paulmach/orb"
)

const (
	// DefaultMaxLatitudeDelta is the latitude span at or above which the map
	// counts as zoomed out too far to render zones.
	DefaultMaxLatitudeDelta = 0.7
	// DefaultMaxLongitudeDelta is the longitude counterpart.
	DefaultMaxLongitudeDelta = 0.7

	// boundPadding absorbs float rounding so the candidate box never misses
	// a zone the exact test accepts.
	boundPadding = 1e-9
)

// Limits holds the usable-zoom thresholds for both axes.
type Limits struct {
	MaxLatitudeDelta  float64 `json:"max_latitude_delta" yaml:"max_latitude_delta"`
	MaxLongitudeDelta float64 `json:"max_longitude_delta" yaml:"max_longitude_delta"`
}

// DefaultLimits returns the fixed rendering thresholds.
func DefaultLimits() Limits {
	return Limits{
		MaxLatitudeDelta:  DefaultMaxLatitudeDelta,
		MaxLongitudeDelta: DefaultMaxLongitudeDelta,
	}
}

// Usable reports whether vp is zoomed in far enough to render zones.
func (l Limits) Usable(vp models.Viewport) bool {
	return vp.LatitudeDelta < l.MaxLatitudeDelta && vp.LongitudeDelta < l.MaxLongitudeDelta
}

// Source yields candidate zones whose centre lies inside a box.
type Source interface {
	Within(b orb.Bound) []models.CaptureZone
}

// Filter returns the zones of src to render for vp. This is a bounding box
// test on degrees, not a geodesic one; it only gates render cost and may
// over-include slightly near the edges.
//
// Nothing is returned when vp is not Usable under limits.
func Filter(src Source, vp models.Viewport, limits Limits) []models.CaptureZone {
	if src == nil || !limits.Usable(vp) {
		return nil
	}

	candidates := src.Within(vp.Bound().Pad(boundPadding))
	visible := make([]models.CaptureZone, 0, len(candidates))
	for _, z := range candidates {
		if Includes(vp, z) {
			visible = append(visible, z)
		}
	}
	return visible
}

// Includes reports whether z's centre is strictly within one delta of the
// viewport centre on both axes. Zoom limits are not considered.
func Includes(vp models.Viewport, z models.CaptureZone) bool {
	return math.Abs(z.Latitude-vp.Center.Latitude) < vp.LatitudeDelta &&
		math.Abs(z.Longitude-vp.Center.Longitude) < vp.LongitudeDelta
}
