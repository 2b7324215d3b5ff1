package models

// CaptureZone is a server-declared circular territory owned by a team.
// Zones are replaced whole; nothing mutates one in place.
type CaptureZone struct {
	ID        ID      `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    float64 `json:"radius"` // metres
	TeamColor string  `json:"team_color"`
}

// Center returns the zone's centre coordinate.
func (z CaptureZone) Center() Coordinate {
	return Coordinate{Latitude: z.Latitude, Longitude: z.Longitude}
}

// Contains reports whether c lies inside the zone's circle.
func (z CaptureZone) Contains(c Coordinate) bool {
	return z.Center().DistanceTo(c) <= z.Radius
}
