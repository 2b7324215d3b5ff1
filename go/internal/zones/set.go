package zones

import (
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/paulmach/orb"
)

const (
	// Sets smaller than this are scanned linearly; building a tree does not
	// pay off for a handful of zones.
	indexThreshold = 128

	// Zones are indexed as tiny boxes around their centre.
	pointTolerance = 1e-9

	treeMinChildren = 25
	treeMaxChildren = 50
)

// Set is an immutable view of the store at one point in time. It is safe
// for concurrent use.
type Set struct {
	zones map[models.ID]models.CaptureZone

	indexOnce sync.Once
	index     *rtreego.Rtree
}

func newSet(src map[models.ID]models.CaptureZone) *Set {
	zones := make(map[models.ID]models.CaptureZone, len(src))
	for id, z := range src {
		zones[id] = z
	}
	return &Set{zones: zones}
}

// Len returns the number of zones in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.zones)
}

// Get returns the zone with the given id.
func (s *Set) Get(id models.ID) (models.CaptureZone, bool) {
	if s == nil {
		return models.CaptureZone{}, false
	}
	z, ok := s.zones[id]
	return z, ok
}

// IDs returns the ids in the set in ascending order.
func (s *Set) IDs() []models.ID {
	if s == nil {
		return nil
	}
	ids := make([]models.ID, 0, len(s.zones))
	for id := range s.zones {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// All returns every zone ordered by id.
func (s *Set) All() []models.CaptureZone {
	if s == nil {
		return nil
	}
	out := make([]models.CaptureZone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, z)
	}
	sortByID(out)
	return out
}

// Within returns the zones whose centre lies inside b, edges included,
// ordered by id.
func (s *Set) Within(b orb.Bound) []models.CaptureZone {
	if s.Len() == 0 {
		return nil
	}

	var out []models.CaptureZone
	if len(s.zones) < indexThreshold {
		for _, z := range s.zones {
			if b.Contains(z.Center().Point()) {
				out = append(out, z)
			}
		}
		sortByID(out)
		return out
	}

	rect, err := rtreego.NewRect(
		rtreego.Point{b.Min.Lon() - pointTolerance, b.Min.Lat() - pointTolerance},
		[]float64{b.Max.Lon() - b.Min.Lon() + 2*pointTolerance, b.Max.Lat() - b.Min.Lat() + 2*pointTolerance},
	)
	if err != nil {
		// inverted bound
		return nil
	}

	for _, hit := range s.tree().SearchIntersect(rect) {
		z := hit.(*indexedZone).zone
		if b.Contains(z.Center().Point()) {
			out = append(out, z)
		}
	}
	sortByID(out)
	return out
}

// Covering returns the zones whose circle contains c.
func (s *Set) Covering(c models.Coordinate) []models.CaptureZone {
	if s == nil {
		return nil
	}
	var out []models.CaptureZone
	for _, z := range s.zones {
		if z.Contains(c) {
			out = append(out, z)
		}
	}
	sortByID(out)
	return out
}

func (s *Set) tree() *rtreego.Rtree {
	s.indexOnce.Do(func() {
		objs := make([]rtreego.Spatial, 0, len(s.zones))
		for _, z := range s.zones {
			objs = append(objs, &indexedZone{zone: z})
		}
		s.index = rtreego.NewTree(2, treeMinChildren, treeMaxChildren, objs...)
	})
	return s.index
}

// indexedZone implements rtreego.Spatial for a zone centre.
type indexedZone struct {
	zone models.CaptureZone
}

func (z *indexedZone) Bounds() rtreego.Rect {
	return rtreego.Point{z.zone.Longitude, z.zone.Latitude}.ToRect(pointTolerance)
}

func sortByID(zones []models.CaptureZone) {
	sort.Slice(zones, func(i, j int) bool { return zones[i].ID < zones[j].ID })
}
