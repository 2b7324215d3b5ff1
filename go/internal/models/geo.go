package models

import (
	"errors"
	"fmt"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

const earthRadiusMeters = 6371000.0

// ErrInvalidViewport is returned for regions with negative spans or an
// out-of-range centre.
var ErrInvalidViewport = errors.New("invalid viewport")

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate lies within the degree ranges.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Point returns the coordinate as an orb point (X is longitude).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// DistanceTo returns the great-circle distance in metres.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	p1 := s2.PointFromLatLng(s2.LatLngFromDegrees(c.Latitude, c.Longitude))
	p2 := s2.PointFromLatLng(s2.LatLngFromDegrees(other.Latitude, other.Longitude))

	angle := s1.Angle(s2.ChordAngleBetweenPoints(p1, p2).Angle())
	return angle.Radians() * earthRadiusMeters
}

// Viewport is the visible map region: a centre plus angular spans in
// degrees on each axis.
type Viewport struct {
	Center         Coordinate `json:"center"`
	LatitudeDelta  float64    `json:"latitude_delta"`
	LongitudeDelta float64    `json:"longitude_delta"`
}

// Validate checks the spans are non-negative and the centre is in range.
func (v Viewport) Validate() error {
	if !v.Center.Valid() {
		return fmt.Errorf("%w: centre (%f, %f) out of range", ErrInvalidViewport, v.Center.Latitude, v.Center.Longitude)
	}
	if v.LatitudeDelta < 0 || v.LongitudeDelta < 0 {
		return fmt.Errorf("%w: negative span (%f, %f)", ErrInvalidViewport, v.LatitudeDelta, v.LongitudeDelta)
	}
	return nil
}

// Bound returns the box reaching one delta from the centre on each axis.
func (v Viewport) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{v.Center.Longitude - v.LongitudeDelta, v.Center.Latitude - v.LatitudeDelta},
		Max: orb.Point{v.Center.Longitude + v.LongitudeDelta, v.Center.Latitude + v.LatitudeDelta},
	}
}
