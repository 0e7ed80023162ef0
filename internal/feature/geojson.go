package feature

import (
	"encoding/json"
	"fmt"

	"contour-tracer/pkg/geometry"
)

type geojsonGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type geojsonFeature struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id,omitempty"`
	Geometry   geojsonGeometry        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geojsonCollection struct {
	Type     string           `json:"type"`
	Features []geojsonFeature `json:"features"`
}

// MarshalGeoJSON renders the store as a GeoJSON FeatureCollection. Lines
// become LineStrings, polygons become closed single-ring Polygons, spots
// become Points. Elevation rides along as a property.
func (s *Store) MarshalGeoJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := geojsonCollection{
		Type:     "FeatureCollection",
		Features: make([]geojsonFeature, 0, len(s.order)),
	}
	for _, id := range s.order {
		f, ok := s.features[id]
		if !ok {
			continue
		}
		geom, err := encodeGeometry(f)
		if err != nil {
			return nil, err
		}
		props := map[string]interface{}{}
		if f.Attrs.HasElevation {
			props["elevation"] = f.Attrs.Elevation
		}
		col.Features = append(col.Features, geojsonFeature{
			Type:       "Feature",
			ID:         f.ID,
			Geometry:   geom,
			Properties: props,
		})
	}
	return json.MarshalIndent(col, "", "  ")
}

// LoadGeoJSON replaces the store contents with features parsed from a
// FeatureCollection document. ID numbering continues past the highest
// numbered ID in the document.
func (s *Store) LoadGeoJSON(data []byte) error {
	var col geojsonCollection
	if err := json.Unmarshal(data, &col); err != nil {
		return fmt.Errorf("feature: parsing geojson: %w", err)
	}
	if col.Type != "FeatureCollection" {
		return fmt.Errorf("feature: unexpected document type %q", col.Type)
	}

	parsed := make([]*Feature, 0, len(col.Features))
	for i, gf := range col.Features {
		f, err := decodeFeature(gf)
		if err != nil {
			return fmt.Errorf("feature: feature %d: %w", i, err)
		}
		parsed = append(parsed, f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.features = make(map[string]*Feature)
	s.order = s.order[:0]
	s.nextID = 1
	for _, f := range parsed {
		if f.ID == "" {
			f.ID = fmt.Sprintf("contour-%d", s.nextID)
		}
		s.add(f)
	}
	return nil
}

func encodeGeometry(f *Feature) (geojsonGeometry, error) {
	if len(f.Points) == 0 {
		return geojsonGeometry{}, fmt.Errorf("feature: %s has no points", f.ID)
	}

	switch f.Kind {
	case KindSpot:
		coords, err := json.Marshal(pair(f.Points[0]))
		if err != nil {
			return geojsonGeometry{}, err
		}
		return geojsonGeometry{Type: "Point", Coordinates: coords}, nil

	case KindPolygon:
		pts := f.Points
		// GeoJSON exterior rings wind counterclockwise.
		if geometry.IsClockwise(pts) {
			pts = geometry.ReverseRing(pts)
		}
		ring := make([][2]float64, 0, len(pts)+1)
		for _, p := range pts {
			ring = append(ring, pair(p))
		}
		ring = append(ring, pair(pts[0]))
		coords, err := json.Marshal([][][2]float64{ring})
		if err != nil {
			return geojsonGeometry{}, err
		}
		return geojsonGeometry{Type: "Polygon", Coordinates: coords}, nil

	default:
		line := make([][2]float64, 0, len(f.Points))
		for _, p := range f.Points {
			line = append(line, pair(p))
		}
		coords, err := json.Marshal(line)
		if err != nil {
			return geojsonGeometry{}, err
		}
		return geojsonGeometry{Type: "LineString", Coordinates: coords}, nil
	}
}

func decodeFeature(gf geojsonFeature) (*Feature, error) {
	f := &Feature{ID: gf.ID}
	if v, ok := gf.Properties["elevation"]; ok {
		if ev, ok := v.(float64); ok {
			f.Attrs.Elevation = ev
			f.Attrs.HasElevation = true
		}
	}

	switch gf.Geometry.Type {
	case "Point":
		var c [2]float64
		if err := json.Unmarshal(gf.Geometry.Coordinates, &c); err != nil {
			return nil, err
		}
		f.Kind = KindSpot
		f.Points = []geometry.Point2D{{X: c[0], Y: c[1]}}

	case "LineString":
		var cs [][2]float64
		if err := json.Unmarshal(gf.Geometry.Coordinates, &cs); err != nil {
			return nil, err
		}
		f.Kind = KindLine
		f.Points = toPoints(cs)

	case "Polygon":
		var rings [][][2]float64
		if err := json.Unmarshal(gf.Geometry.Coordinates, &rings); err != nil {
			return nil, err
		}
		if len(rings) == 0 || len(rings[0]) == 0 {
			return nil, fmt.Errorf("empty polygon")
		}
		pts := toPoints(rings[0])
		if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
			pts = pts[:len(pts)-1]
		}
		f.Kind = KindPolygon
		f.Points = pts

	default:
		return nil, fmt.Errorf("unsupported geometry type %q", gf.Geometry.Type)
	}

	if len(f.Points) == 0 {
		return nil, fmt.Errorf("geometry has no points")
	}
	return f, nil
}

func pair(p geometry.Point2D) [2]float64 {
	return [2]float64{p.X, p.Y}
}

func toPoints(cs [][2]float64) []geometry.Point2D {
	out := make([]geometry.Point2D, len(cs))
	for i, c := range cs {
		out[i] = geometry.Point2D{X: c[0], Y: c[1]}
	}
	return out
}
