package feature

import (
	"fmt"
	"math"
	"sync"

	"contour-tracer/pkg/geometry"
)

// Store is an in-memory feature collection with insertion-ordered listing.
type Store struct {
	mu       sync.RWMutex
	features map[string]*Feature
	order    []string
	nextID   int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		features: make(map[string]*Feature),
		order:    make([]string, 0),
		nextID:   1,
	}
}

// CreateFeature stores a new feature and returns its assigned ID.
func (s *Store) CreateFeature(kind Kind, points []geometry.Point2D, attrs Attributes) (string, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("feature: refusing to create %s with no points", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := fmt.Sprintf("contour-%d", s.nextID)
	s.nextID++
	s.add(&Feature{
		ID:     id,
		Kind:   kind,
		Points: clonePoints(points),
		Attrs:  attrs,
	})
	return id, nil
}

// UpdateGeometry replaces the point list of an existing feature.
func (s *Store) UpdateGeometry(id string, points []geometry.Point2D) error {
	if len(points) == 0 {
		return fmt.Errorf("feature: refusing to update %s with no points", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.features[id]
	if !ok {
		return fmt.Errorf("feature: unknown feature %s", id)
	}
	f.Points = clonePoints(points)
	return nil
}

// Get returns a copy of the feature with the given ID.
func (s *Store) Get(id string) (Feature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.features[id]
	if !ok {
		return Feature{}, false
	}
	return copyFeature(f), true
}

// All returns copies of every feature in insertion order.
func (s *Store) All() []Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Feature, 0, len(s.order))
	for _, id := range s.order {
		if f, ok := s.features[id]; ok {
			result = append(result, copyFeature(f))
		}
	}
	return result
}

// Len returns the number of stored features.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Clear removes every feature and resets ID numbering.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.features = make(map[string]*Feature)
	s.order = s.order[:0]
	s.nextID = 1
}

// NearestEndpoint finds the closest line-feature endpoint within tolerance
// of the given world point. Polygons and spots have no resumable ends and
// are skipped.
func (s *Store) NearestEndpoint(p geometry.Point2D, tolerance float64) (Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best Endpoint
	bestDist := tolerance
	found := false

	for _, id := range s.order {
		f, ok := s.features[id]
		if !ok || f.Kind != KindLine || len(f.Points) == 0 {
			continue
		}

		ends := [2]Endpoint{
			{Point: f.Points[0], FeatureID: f.ID, AtStart: true},
			{Point: f.Points[len(f.Points)-1], FeatureID: f.ID, AtStart: false},
		}
		for _, e := range ends {
			if d := p.Distance(e.Point); d <= bestDist {
				best = e
				bestDist = d
				found = true
			}
		}
	}
	return best, found
}

// HitTest returns the feature whose geometry passes within tolerance of the
// given world point, checking newest features first so recent work wins on
// overlap. Spots match by point distance, lines by segment distance, and
// polygons by their boundary or interior.
func (s *Store) HitTest(p geometry.Point2D, tolerance float64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.order) - 1; i >= 0; i-- {
		f, ok := s.features[s.order[i]]
		if !ok || len(f.Points) == 0 {
			continue
		}
		if hitFeature(f, p, tolerance) {
			return f.ID, true
		}
	}
	return "", false
}

func hitFeature(f *Feature, p geometry.Point2D, tolerance float64) bool {
	switch f.Kind {
	case KindSpot:
		return p.Distance(f.Points[0]) <= tolerance
	case KindPolygon:
		if geometry.PointInRing(p, f.Points) {
			return true
		}
		return distanceToPath(p, f.Points, true) <= tolerance
	default:
		return distanceToPath(p, f.Points, false) <= tolerance
	}
}

// distanceToPath returns the shortest distance from p to any segment of the
// path, including the closing segment when the path is a ring.
func distanceToPath(p geometry.Point2D, points []geometry.Point2D, closed bool) float64 {
	if len(points) == 1 {
		return p.Distance(points[0])
	}
	best := math.Inf(1)
	for i := 1; i < len(points); i++ {
		if d := geometry.PointToSegmentDistance(p, points[i-1], points[i]); d < best {
			best = d
		}
	}
	if closed {
		if d := geometry.PointToSegmentDistance(p, points[len(points)-1], points[0]); d < best {
			best = d
		}
	}
	return best
}

// add inserts a feature, keeping ID numbering ahead of any numbered ID it
// sees. Callers hold the write lock.
func (s *Store) add(f *Feature) {
	var n int
	if _, err := fmt.Sscanf(f.ID, "contour-%d", &n); err == nil && n >= s.nextID {
		s.nextID = n + 1
	}
	if _, exists := s.features[f.ID]; !exists {
		s.order = append(s.order, f.ID)
	}
	s.features[f.ID] = f
}

func copyFeature(f *Feature) Feature {
	out := *f
	out.Points = clonePoints(f.Points)
	return out
}

func clonePoints(points []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(points))
	copy(out, points)
	return out
}
