package zones

import (
	"github.com/mcdev12/turfwar/go/internal/models"
)

// Store is the local cache of capture zones keyed by id. It only applies
// what the server declares and never originates a zone.
//
// Store is not safe for concurrent use. The world engine is its single
// writer; readers get an immutable Set from Freeze.
type Store struct {
	zones  map[models.ID]models.CaptureZone
	frozen *Set
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		zones: make(map[models.ID]models.CaptureZone),
	}
}

// ReplaceAll discards every entry and installs zones keyed by id. A later
// entry in zones wins over an earlier one with the same id.
func (s *Store) ReplaceAll(zones []models.CaptureZone) {
	next := make(map[models.ID]models.CaptureZone, len(zones))
	for _, z := range zones {
		next[z.ID] = z
	}
	s.zones = next
	s.frozen = nil
}

// Upsert inserts or overwrites the entry for z.ID. It reports whether the
// stored state changed; delivering the same zone twice changes nothing.
func (s *Store) Upsert(z models.CaptureZone) bool {
	if existing, ok := s.zones[z.ID]; ok && existing == z {
		return false
	}
	s.zones[z.ID] = z
	s.frozen = nil
	return true
}

// Remove deletes the entry for id. Removing an unknown id is a no-op; it
// reports whether anything was deleted.
func (s *Store) Remove(id models.ID) bool {
	if _, ok := s.zones[id]; !ok {
		return false
	}
	delete(s.zones, id)
	s.frozen = nil
	return true
}

// Reset drops every zone
func (s *Store) Reset() {
	if len(s.zones) == 0 {
		return
	}
	s.zones = make(map[models.ID]models.CaptureZone)
	s.frozen = nil
}

// Get returns the zone stored under id.
func (s *Store) Get(id models.ID) (models.CaptureZone, bool) {
	z, ok := s.zones[id]
	return z, ok
}

// Len returns the number of zones held.
func (s *Store) Len() int {
	return len(s.zones)
}

// Freeze returns an immutable copy of the current contents. The copy is
// cached until the next change, so repeated calls between mutations are
// free.
func (s *Store) Freeze() *Set {
	if s.frozen == nil {
		s.frozen = newSet(s.zones)
	}
	return s.frozen
}
