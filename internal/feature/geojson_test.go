package feature

import (
	"encoding/json"
	"testing"

	"contour-tracer/pkg/geometry"
)

func TestGeoJSONRoundTrip(t *testing.T) {
	s := NewStore()
	s.CreateFeature(KindLine,
		line(geometry.Point2D{X: 100, Y: 200}, geometry.Point2D{X: 110, Y: 210}, geometry.Point2D{X: 120, Y: 205}),
		Attributes{Elevation: 540, HasElevation: true})
	s.CreateFeature(KindPolygon,
		line(geometry.Point2D{X: 0, Y: 0}, geometry.Point2D{X: 10, Y: 0}, geometry.Point2D{X: 10, Y: 10}, geometry.Point2D{X: 0, Y: 10}),
		Attributes{})
	s.CreateFeature(KindSpot,
		line(geometry.Point2D{X: 55.5, Y: 66.25}),
		Attributes{Elevation: 1200.5, HasElevation: true})

	data, err := s.MarshalGeoJSON()
	if err != nil {
		t.Fatalf("MarshalGeoJSON: %v", err)
	}

	loaded := NewStore()
	if err := loaded.LoadGeoJSON(data); err != nil {
		t.Fatalf("LoadGeoJSON: %v", err)
	}

	want := s.All()
	got := loaded.All()
	if len(got) != len(want) {
		t.Fatalf("loaded %d features, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Kind != want[i].Kind {
			t.Errorf("feature %d = %s/%v, want %s/%v", i, got[i].ID, got[i].Kind, want[i].ID, want[i].Kind)
		}
		if got[i].Attrs != want[i].Attrs {
			t.Errorf("feature %d attrs = %+v, want %+v", i, got[i].Attrs, want[i].Attrs)
		}
		if len(got[i].Points) != len(want[i].Points) {
			t.Fatalf("feature %d has %d points, want %d", i, len(got[i].Points), len(want[i].Points))
		}
		for j := range want[i].Points {
			if got[i].Points[j] != want[i].Points[j] {
				t.Errorf("feature %d point %d = %v, want %v", i, j, got[i].Points[j], want[i].Points[j])
			}
		}
	}
}

func TestMarshalClosesPolygonRing(t *testing.T) {
	s := NewStore()
	s.CreateFeature(KindPolygon,
		line(geometry.Point2D{X: 0, Y: 0}, geometry.Point2D{X: 4, Y: 0}, geometry.Point2D{X: 4, Y: 4}),
		Attributes{})

	data, err := s.MarshalGeoJSON()
	if err != nil {
		t.Fatalf("MarshalGeoJSON: %v", err)
	}

	var col geojsonCollection
	if err := json.Unmarshal(data, &col); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	var rings [][][2]float64
	if err := json.Unmarshal(col.Features[0].Geometry.Coordinates, &rings); err != nil {
		t.Fatalf("Unmarshal coordinates: %v", err)
	}
	ring := rings[0]
	if len(ring) != 4 {
		t.Fatalf("ring has %d positions, want 4 (3 vertices plus closure)", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		t.Error("ring is not closed")
	}
}

func TestMarshalNormalizesRingWinding(t *testing.T) {
	s := NewStore()
	// Stored clockwise; GeoJSON exterior rings wind counterclockwise.
	s.CreateFeature(KindPolygon,
		line(geometry.Point2D{X: 0, Y: 0}, geometry.Point2D{X: 0, Y: 4}, geometry.Point2D{X: 4, Y: 4}, geometry.Point2D{X: 4, Y: 0}),
		Attributes{})

	data, err := s.MarshalGeoJSON()
	if err != nil {
		t.Fatalf("MarshalGeoJSON: %v", err)
	}

	var col geojsonCollection
	if err := json.Unmarshal(data, &col); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	var rings [][][2]float64
	if err := json.Unmarshal(col.Features[0].Geometry.Coordinates, &rings); err != nil {
		t.Fatalf("Unmarshal coordinates: %v", err)
	}

	ring := make([]geometry.Point2D, 0, len(rings[0])-1)
	for _, c := range rings[0][:len(rings[0])-1] {
		ring = append(ring, geometry.Point2D{X: c[0], Y: c[1]})
	}
	if geometry.IsClockwise(ring) {
		t.Errorf("marshalled ring winds clockwise: %v", ring)
	}

	// The store itself keeps the operator's point order.
	f := s.All()[0]
	if f.Points[1] != (geometry.Point2D{X: 0, Y: 4}) {
		t.Errorf("stored points reordered: %v", f.Points)
	}
}

func TestLoadContinuesNumbering(t *testing.T) {
	doc := `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"id": "contour-7",
				"geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]},
				"properties": {}
			}
		]
	}`

	s := NewStore()
	if err := s.LoadGeoJSON([]byte(doc)); err != nil {
		t.Fatalf("LoadGeoJSON: %v", err)
	}

	id, err := s.CreateFeature(KindLine, line(geometry.Point2D{}, geometry.Point2D{X: 1}), Attributes{})
	if err != nil {
		t.Fatalf("CreateFeature: %v", err)
	}
	if id != "contour-8" {
		t.Errorf("id = %q after loading contour-7, want contour-8", id)
	}
}

func TestLoadRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{{{`},
		{"wrong document type", `{"type": "Feature", "features": []}`},
		{"unsupported geometry", `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "geometry": {"type": "MultiPolygon", "coordinates": []}, "properties": {}}
		]}`},
		{"empty polygon", `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": []}, "properties": {}}
		]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore()
			if err := s.LoadGeoJSON([]byte(tc.doc)); err == nil {
				t.Error("LoadGeoJSON accepted the document")
			}
		})
	}
}

func TestLoadFailureLeavesStoreIntact(t *testing.T) {
	s := NewStore()
	s.CreateFeature(KindLine, line(geometry.Point2D{}, geometry.Point2D{X: 1}), Attributes{})

	bad := `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "geometry": {"type": "Nope", "coordinates": []}, "properties": {}}
	]}`
	if err := s.LoadGeoJSON([]byte(bad)); err == nil {
		t.Fatal("LoadGeoJSON accepted a bad document")
	}
	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d after failed load, want the original 1", got)
	}
}
