package session

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"contour-tracer/internal/edge"
	"contour-tracer/internal/feature"
	"contour-tracer/internal/raster"
	"contour-tracer/internal/segment"
	"contour-tracer/pkg/geometry"
)

// flatSource serves a featureless 50x50 raster in pixel coordinates.
func flatSource(t *testing.T) raster.Source {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 50, 50))
	src, err := raster.NewImageSource(img, geometry.Identity())
	if err != nil {
		t.Fatalf("NewImageSource: %v", err)
	}
	return src
}

// lineSource serves a 60x60 north-up raster with a dark vertical line on
// image columns 29..31, i.e. along world x = 30.5.
func lineSource(t *testing.T) raster.Source {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 60, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			v := uint8(255)
			if x >= 29 && x <= 31 {
				v = 10
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	src, err := raster.NewImageSource(img, geometry.AffineTransform{A: 1, D: -1, TY: 60})
	if err != nil {
		t.Fatalf("NewImageSource: %v", err)
	}
	return src
}

func freehandSession(sink Sink) *Session {
	return New(nil, sink, DefaultOptions().WithFreehand(true))
}

func mustStart(t *testing.T, s *Session, p geometry.Point2D) {
	t.Helper()
	if err := s.Start(p); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func mustClick(t *testing.T, s *Session, p geometry.Point2D) *Result {
	t.Helper()
	res, err := s.Click(p)
	if err != nil {
		t.Fatalf("Click(%v): %v", p, err)
	}
	return res
}

func TestStartRequiresIdle(t *testing.T) {
	s := freehandSession(nil)
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	if err := s.Start(geometry.Point2D{X: 1, Y: 1}); err == nil {
		t.Error("second Start should fail while tracing")
	}
}

func TestUndoReturnsToStart(t *testing.T) {
	s := freehandSession(nil)
	start := geometry.Point2D{X: 0, Y: 0}
	mustStart(t, s, start)

	clicks := []geometry.Point2D{{X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}
	for _, p := range clicks {
		mustClick(t, s, p)
	}
	for range clicks {
		s.UndoCheckpoint()
	}

	path := s.Path()
	if len(path) != 1 || path[0] != start {
		t.Fatalf("path after N undos = %v, want [%v]", path, start)
	}

	// The start checkpoint survives any number of further undos.
	s.UndoCheckpoint()
	if path := s.Path(); len(path) != 1 || path[0] != start {
		t.Errorf("path after extra undo = %v, want [%v]", path, start)
	}
	if s.State() != StateTracing {
		t.Errorf("state = %v, want tracing", s.State())
	}
}

func TestUndoWithOnlyStartCheckpoint(t *testing.T) {
	s := freehandSession(nil)
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	mustClick(t, s, geometry.Point2D{X: 100, Y: 0})

	s.UndoCheckpoint()
	want := []geometry.Point2D{{X: 0, Y: 0}}
	if path := s.Path(); len(path) != 1 || path[0] != want[0] {
		t.Fatalf("path = %v, want %v", path, want)
	}

	s.UndoCheckpoint()
	if path := s.Path(); len(path) != 1 || path[0] != want[0] {
		t.Errorf("path after second undo = %v, want %v", path, want)
	}
}

func TestUndoPartialProgressKeepsCheckpoint(t *testing.T) {
	s := freehandSession(nil)
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	mustClick(t, s, geometry.Point2D{X: 100, Y: 0})
	// Drag samples past the checkpoint, not yet checkpointed themselves.
	s.DragTo(geometry.Point2D{X: 120, Y: 0})
	s.DragTo(geometry.Point2D{X: 140, Y: 0})

	s.UndoCheckpoint()
	path := s.Path()
	if len(path) != 2 || path[1] != (geometry.Point2D{X: 100, Y: 0}) {
		t.Fatalf("path = %v, want [(0,0) (100,0)]", path)
	}

	s.UndoCheckpoint()
	if path := s.Path(); len(path) != 1 {
		t.Errorf("path = %v, want start only", path)
	}
}

func TestClickNearStartClosesRing(t *testing.T) {
	store := feature.NewStore()
	s := freehandSession(store)

	prompts := 0
	s.SetPrompt(func(min, max, def float64) (float64, bool) {
		prompts++
		return 1500, true
	})
	var states []State
	s.On(EventStateChanged, func(data interface{}) {
		states = append(states, data.(State))
	})
	committed := 0
	s.On(EventCommitted, func(data interface{}) {
		committed++
	})

	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	for _, p := range []geometry.Point2D{{X: 100, Y: 0}, {X: 150, Y: 50}, {X: 100, Y: 100}, {X: 0, Y: 100}} {
		mustClick(t, s, p)
	}

	res := mustClick(t, s, geometry.Point2D{X: 1, Y: 1})
	if res == nil {
		t.Fatal("closing click returned no result")
	}
	if res.Kind != feature.KindPolygon {
		t.Errorf("kind = %v, want polygon", res.Kind)
	}
	if n := len(res.Points); n < 4 || res.Points[0] != res.Points[n-1] {
		t.Errorf("ring not closed: first %v, last %v", res.Points[0], res.Points[len(res.Points)-1])
	}
	if prompts != 1 {
		t.Errorf("prompt called %d times, want 1", prompts)
	}
	if !res.Attrs.HasElevation || res.Attrs.Elevation != 1500 {
		t.Errorf("attrs = %+v, want elevation 1500", res.Attrs)
	}
	if committed != 1 {
		t.Errorf("committed events = %d, want 1", committed)
	}
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}

	wantStates := []State{StateTracing, StateClosed, StateIdle}
	if len(states) != len(wantStates) {
		t.Fatalf("state sequence = %v, want %v", states, wantStates)
	}
	for i := range wantStates {
		if states[i] != wantStates[i] {
			t.Fatalf("state sequence = %v, want %v", states, wantStates)
		}
	}

	// The stored ring is unclosed.
	f, ok := store.Get(res.FeatureID)
	if !ok {
		t.Fatalf("feature %s not stored", res.FeatureID)
	}
	if f.Kind != feature.KindPolygon {
		t.Errorf("stored kind = %v, want polygon", f.Kind)
	}
	if f.Points[0] == f.Points[len(f.Points)-1] {
		t.Error("stored ring should be unclosed")
	}
}

func TestCloseDegenerateFallsBackToLine(t *testing.T) {
	store := feature.NewStore()
	opts := DefaultOptions().WithFreehand(true)
	opts.MinClosePoints = 2
	s := New(nil, store, opts)

	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	mustClick(t, s, geometry.Point2D{X: 100, Y: 0})

	res := mustClick(t, s, geometry.Point2D{X: 1, Y: 0})
	if res == nil {
		t.Fatal("closing click returned no result")
	}
	if res.Kind != feature.KindLine {
		t.Errorf("kind = %v, want line fallback", res.Kind)
	}
	f, _ := store.Get(res.FeatureID)
	if f.Kind != feature.KindLine {
		t.Errorf("stored kind = %v, want line", f.Kind)
	}
}

func TestCloseCollinearRingFallsBackToLine(t *testing.T) {
	store := feature.NewStore()
	s := freehandSession(store)

	// Three points on one line close into a ring that encloses nothing.
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	mustClick(t, s, geometry.Point2D{X: 100, Y: 0})
	mustClick(t, s, geometry.Point2D{X: 50, Y: 0})

	res := mustClick(t, s, geometry.Point2D{X: 1, Y: 0})
	if res == nil {
		t.Fatal("closing click returned no result")
	}
	if res.Kind != feature.KindLine {
		t.Errorf("kind = %v, want line fallback for a zero-area ring", res.Kind)
	}
	f, _ := store.Get(res.FeatureID)
	if f.Kind != feature.KindLine {
		t.Errorf("stored kind = %v, want line", f.Kind)
	}
}

func TestSpotFeature(t *testing.T) {
	store := feature.NewStore()
	s := freehandSession(store)
	mustStart(t, s, geometry.Point2D{X: 5, Y: 5})

	res := mustClick(t, s, geometry.Point2D{X: 6, Y: 6})
	if res == nil {
		t.Fatal("spot click returned no result")
	}
	if res.Kind != feature.KindSpot {
		t.Errorf("kind = %v, want spot", res.Kind)
	}
	if len(res.Points) != 1 || res.Points[0] != (geometry.Point2D{X: 5, Y: 5}) {
		t.Errorf("points = %v, want the start point", res.Points)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d features, want 1", store.Len())
	}
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
}

func TestSpotFeatureDisabled(t *testing.T) {
	store := feature.NewStore()
	s := New(nil, store, DefaultOptions().WithFreehand(true).WithSpotFeatures(false))
	mustStart(t, s, geometry.Point2D{X: 5, Y: 5})

	res := mustClick(t, s, geometry.Point2D{X: 6, Y: 6})
	if res != nil {
		t.Fatalf("degenerate loop click committed %+v, want nothing", res)
	}
	if s.State() != StateTracing {
		t.Errorf("state = %v, want tracing", s.State())
	}
	if store.Len() != 0 {
		t.Errorf("store has %d features, want 0", store.Len())
	}
}

func TestFinishCommitsLine(t *testing.T) {
	store := feature.NewStore()
	s := freehandSession(store)
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	mustClick(t, s, geometry.Point2D{X: 100, Y: 0})
	mustClick(t, s, geometry.Point2D{X: 100, Y: 100})

	res, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if res == nil {
		t.Fatal("Finish returned no result")
	}
	if res.Kind != feature.KindLine || res.Updated {
		t.Errorf("result = %+v, want new line", res)
	}
	if res.Points[0] != (geometry.Point2D{X: 0, Y: 0}) {
		t.Errorf("first point = %v, want (0,0)", res.Points[0])
	}
	if last := res.Points[len(res.Points)-1]; last != (geometry.Point2D{X: 100, Y: 100}) {
		t.Errorf("last point = %v, want (100,100)", last)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d features, want 1", store.Len())
	}
}

func TestFinishTooShortIsNoOp(t *testing.T) {
	store := feature.NewStore()
	s := freehandSession(store)
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})

	res, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if res != nil {
		t.Fatalf("result = %+v, want nil", res)
	}
	if s.State() != StateTracing {
		t.Errorf("state = %v, want tracing", s.State())
	}
	if store.Len() != 0 {
		t.Errorf("store has %d features, want 0", store.Len())
	}
}

func TestCancelDiscards(t *testing.T) {
	store := feature.NewStore()
	s := freehandSession(store)
	var states []State
	s.On(EventStateChanged, func(data interface{}) {
		states = append(states, data.(State))
	})

	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	mustClick(t, s, geometry.Point2D{X: 100, Y: 0})
	s.Cancel()

	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
	if len(s.Path()) != 0 {
		t.Errorf("path = %v, want empty", s.Path())
	}
	if store.Len() != 0 {
		t.Errorf("store has %d features, want 0", store.Len())
	}
	want := []State{StateTracing, StateCancelled, StateIdle}
	if len(states) != len(want) {
		t.Fatalf("state sequence = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("state sequence = %v, want %v", states, want)
		}
	}
}

func TestResumeMergeAtEnd(t *testing.T) {
	store := feature.NewStore()
	id, err := store.CreateFeature(feature.KindLine, []geometry.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}}, feature.Attributes{})
	if err != nil {
		t.Fatal(err)
	}

	s := freehandSession(store)
	s.SetIndex(store)
	prompts := 0
	s.SetPrompt(func(min, max, def float64) (float64, bool) {
		prompts++
		return 0, true
	})

	mustStart(t, s, geometry.Point2D{X: 101, Y: 1})
	if got := s.Path()[0]; got != (geometry.Point2D{X: 100, Y: 0}) {
		t.Fatalf("start snapped to %v, want the stored endpoint (100,0)", got)
	}
	mustClick(t, s, geometry.Point2D{X: 200, Y: 0})

	res, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if res == nil || !res.Updated || res.FeatureID != id {
		t.Fatalf("result = %+v, want update of %s", res, id)
	}
	if prompts != 0 {
		t.Errorf("prompt called %d times on merge, want 0", prompts)
	}

	want := []geometry.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 200, Y: 0}}
	f, _ := store.Get(id)
	if len(f.Points) != len(want) {
		t.Fatalf("merged points = %v, want %v", f.Points, want)
	}
	for i := range want {
		if f.Points[i] != want[i] {
			t.Fatalf("merged points = %v, want %v", f.Points, want)
		}
	}
	if store.Len() != 1 {
		t.Errorf("store has %d features, want 1", store.Len())
	}
}

func TestResumeMergeAtStartReverses(t *testing.T) {
	store := feature.NewStore()
	id, err := store.CreateFeature(feature.KindLine, []geometry.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}}, feature.Attributes{})
	if err != nil {
		t.Fatal(err)
	}

	s := freehandSession(store)
	s.SetIndex(store)

	mustStart(t, s, geometry.Point2D{X: -1, Y: 1})
	if got := s.Path()[0]; got != (geometry.Point2D{X: 0, Y: 0}) {
		t.Fatalf("start snapped to %v, want the stored start (0,0)", got)
	}
	mustClick(t, s, geometry.Point2D{X: -100, Y: 0})

	res, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if res == nil || !res.Updated {
		t.Fatalf("result = %+v, want update", res)
	}

	want := []geometry.Point2D{{X: -100, Y: 0}, {X: 0, Y: 0}, {X: 100, Y: 0}}
	f, _ := store.Get(id)
	if len(f.Points) != len(want) {
		t.Fatalf("merged points = %v, want %v", f.Points, want)
	}
	for i := range want {
		if f.Points[i] != want[i] {
			t.Fatalf("merged points = %v, want %v", f.Points, want)
		}
	}
}

func TestDragSampling(t *testing.T) {
	s := freehandSession(nil)
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})

	s.DragTo(geometry.Point2D{X: 1, Y: 0}) // below min distance, dropped
	s.DragTo(geometry.Point2D{X: 5, Y: 0})
	s.DragTo(geometry.Point2D{X: 6, Y: 0}) // below min distance from (5,0)
	s.DragTo(geometry.Point2D{X: 10, Y: 0})
	s.EndDrag()

	want := []geometry.Point2D{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}}
	path := s.Path()
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path = %v, want %v", path, want)
		}
	}

	// One undo removes the whole stroke.
	s.UndoCheckpoint()
	if path := s.Path(); len(path) != 1 {
		t.Errorf("path after undo = %v, want start only", path)
	}
}

func TestSnapKeepsHeading(t *testing.T) {
	s := freehandSession(nil)
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	s.DragTo(geometry.Point2D{X: 10, Y: 0}) // heading due east

	cases := []struct {
		name    string
		snapped geometry.Point2D
		want    bool
	}{
		{"thirty degrees off", geometry.Point2D{X: 18.66, Y: 5}, true},
		{"straight ahead", geometry.Point2D{X: 20, Y: 0}, true},
		{"perpendicular", geometry.Point2D{X: 10, Y: 5}, false},
		{"behind", geometry.Point2D{X: 5, Y: 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.snapKeepsHeading(tc.snapped); got != tc.want {
				t.Errorf("snapKeepsHeading(%v) = %v, want %v", tc.snapped, got, tc.want)
			}
		})
	}
}

func TestDragSnapsOntoEdge(t *testing.T) {
	s := New(lineSource(t), feature.NewStore(), DefaultOptions())
	s.SetView(geometry.NewRect(0, 0, 60, 60))

	mustStart(t, s, geometry.Point2D{X: 30.2, Y: 30})
	if got := s.Path()[0]; got != (geometry.Point2D{X: 30.5, Y: 29.5}) {
		t.Fatalf("start = %v, want snapped onto the line at (30.5,29.5)", got)
	}

	s.DragTo(geometry.Point2D{X: 30.4, Y: 40}) // on-line cell, snapped
	s.DragTo(geometry.Point2D{X: 31.2, Y: 46}) // slight bend, snap accepted
	s.DragTo(geometry.Point2D{X: 50, Y: 46.5}) // beyond snap radius, raw
	s.EndDrag()

	want := []geometry.Point2D{{X: 30.5, Y: 29.5}, {X: 30.5, Y: 39.5}, {X: 31.5, Y: 45.5}, {X: 50, Y: 46.5}}
	path := s.Path()
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i].Distance(want[i]) > 1e-9 {
			t.Fatalf("path[%d] = %v, want %v", i, path[i], want[i])
		}
	}

	s.UndoCheckpoint()
	if path := s.Path(); len(path) != 1 {
		t.Errorf("path after undo = %v, want start only", path)
	}
}

func TestPreviewStraightInFreehand(t *testing.T) {
	s := freehandSession(nil)
	var previews int
	s.On(EventPreviewUpdated, func(data interface{}) {
		previews++
	})
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})

	s.PointerMove(geometry.Point2D{X: 10, Y: 0})
	got := s.Preview()
	want := []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("preview = %v, want %v", got, want)
	}

	// The cursor filter smooths the second hover halfway toward the new
	// position.
	s.PointerMove(geometry.Point2D{X: 20, Y: 0})
	got = s.Preview()
	if len(got) != 2 || got[1] != (geometry.Point2D{X: 15, Y: 0}) {
		t.Fatalf("smoothed preview = %v, want [(0,0) (15,0)]", got)
	}
	if previews != 2 {
		t.Errorf("preview events = %d, want 2", previews)
	}
}

func TestMagneticTraceOverFlatRaster(t *testing.T) {
	store := feature.NewStore()
	s := New(flatSource(t), store, DefaultOptions())
	s.SetView(geometry.NewRect(0, 0, 50, 50))

	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})

	// A featureless tile means an empty mask and a uniform field.
	if s.cache.Mask() == nil || s.cache.Mask().Count() != 0 {
		t.Fatalf("mask count = %v, want empty mask", s.cache.Mask())
	}
	field := s.cache.Field()
	if field == nil {
		t.Fatal("field not built")
	}
	for _, c := range []struct{ x, y int }{{0, 0}, {25, 25}, {49, 49}} {
		if got := field.At(c.x, c.y); got != 1 {
			t.Fatalf("field.At(%d,%d) = %v, want uniform 1.0", c.x, c.y, got)
		}
	}

	if res := mustClick(t, s, geometry.Point2D{X: 10, Y: 10}); res != nil {
		t.Fatalf("confirm click committed %+v", res)
	}

	path := s.Path()
	if len(path) < 3 {
		t.Fatalf("path has %d points, want a traced diagonal", len(path))
	}
	if path[0] != (geometry.Point2D{X: 0, Y: 0}) {
		t.Errorf("first point = %v, want (0,0)", path[0])
	}
	if last := path[len(path)-1]; last != (geometry.Point2D{X: 10, Y: 10}) {
		t.Errorf("last point = %v, want (10,10)", last)
	}
	for _, p := range path {
		if math.Abs(p.X-p.Y) > 2.5 {
			t.Errorf("point %v strays from the diagonal", p)
		}
		if p.X < -1 || p.X > 51 || p.Y < -1 || p.Y > 51 {
			t.Errorf("point %v outside the view", p)
		}
	}

	res, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if res == nil || res.Kind != feature.KindLine {
		t.Fatalf("result = %+v, want a line", res)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d features, want 1", store.Len())
	}
}

func TestSetViewInvalidatesCache(t *testing.T) {
	s := New(flatSource(t), nil, DefaultOptions())
	s.SetView(geometry.NewRect(0, 0, 50, 50))
	mustStart(t, s, geometry.Point2D{X: 5, Y: 5})

	if !s.cache.Valid() {
		t.Fatal("cache not built on start")
	}
	s.SetView(geometry.NewRect(10, 10, 30, 30))
	if s.cache.Valid() {
		t.Fatal("cache still valid after view change")
	}

	// The next routed click rebuilds it for the new extent.
	mustClick(t, s, geometry.Point2D{X: 20, Y: 20})
	if !s.cache.Valid() {
		t.Fatal("cache not rebuilt on demand")
	}
	if got := s.cache.Extent(); got != geometry.NewRect(10, 10, 30, 30) {
		t.Errorf("cache extent = %+v, want the new view", got)
	}
}

type failingSink struct{}

func (failingSink) CreateFeature(feature.Kind, []geometry.Point2D, feature.Attributes) (string, error) {
	return "", errors.New("layer is read-only")
}

func (failingSink) UpdateGeometry(string, []geometry.Point2D) error {
	return errors.New("layer is read-only")
}

func TestSinkErrorKeepsTracing(t *testing.T) {
	s := New(nil, failingSink{}, DefaultOptions().WithFreehand(true))
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	mustClick(t, s, geometry.Point2D{X: 100, Y: 0})

	if _, err := s.Finish(); err == nil {
		t.Fatal("Finish should surface the sink error")
	}
	if s.State() != StateTracing {
		t.Errorf("state = %v, want tracing preserved for retry", s.State())
	}
	if len(s.Path()) != 2 {
		t.Errorf("path = %v, want both points kept", s.Path())
	}

	s.Cancel()
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle after cancel", s.State())
	}
}

// fakeMaskSource hands back a fixed mask, standing in for the external
// segmentation backend.
type fakeMaskSource struct {
	tile *raster.Tile
	mask *edge.Mask
	err  error
}

func (f *fakeMaskSource) SetContext(tile *raster.Tile) { f.tile = tile }

func (f *fakeMaskSource) Predict(fg, bg []geometry.PointInt) (*edge.Mask, error) {
	return f.mask, f.err
}

func TestTraceMaskCommitsRegionBoundary(t *testing.T) {
	mask := edge.NewMask(50, 50)
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			mask.Set(x, y, true)
		}
	}
	src := &fakeMaskSource{mask: mask}

	store := feature.NewStore()
	s := New(flatSource(t), store, DefaultOptions())
	s.SetView(geometry.NewRect(0, 0, 50, 50))
	s.SetMaskSource(src, segment.Options{})

	prompts := 0
	s.SetPrompt(func(min, max, def float64) (float64, bool) {
		prompts++
		return 200, true
	})

	res, err := s.TraceMask([]geometry.Point2D{{X: 15, Y: 35}}, nil)
	if err != nil {
		t.Fatalf("TraceMask: %v", err)
	}
	if res == nil {
		t.Fatal("TraceMask returned no result")
	}
	if res.Kind != feature.KindPolygon {
		t.Errorf("kind = %v, want polygon", res.Kind)
	}
	if n := len(res.Points); n < 4 || res.Points[0] != res.Points[n-1] {
		t.Errorf("ring not closed: %v", res.Points)
	}
	// The whole boundary stays inside the masked square's world footprint.
	for _, p := range res.Points {
		if p.X < 10 || p.X > 20 || p.Y < 30 || p.Y > 40 {
			t.Errorf("boundary point %v outside the masked region", p)
		}
	}
	if src.tile == nil {
		t.Error("mask source never received the context tile")
	}
	if prompts != 1 {
		t.Errorf("prompt called %d times, want 1", prompts)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d features, want 1", store.Len())
	}
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
}

func TestTraceMaskRejectsRegionAwayFromSeeds(t *testing.T) {
	// The largest region sits nowhere near the operator's seed point.
	mask := edge.NewMask(50, 50)
	for y := 30; y < 40; y++ {
		for x := 30; x < 40; x++ {
			mask.Set(x, y, true)
		}
	}

	store := feature.NewStore()
	s := New(flatSource(t), store, DefaultOptions())
	s.SetView(geometry.NewRect(0, 0, 50, 50))
	s.SetMaskSource(&fakeMaskSource{mask: mask}, segment.Options{})

	notices := 0
	s.On(EventNotice, func(data interface{}) {
		notices++
	})

	res, err := s.TraceMask([]geometry.Point2D{{X: 5, Y: 45}}, nil)
	if err != nil {
		t.Fatalf("TraceMask: %v", err)
	}
	if res != nil {
		t.Fatalf("result = %+v, want nil for a region away from the seeds", res)
	}
	if notices != 1 {
		t.Errorf("notices = %d, want 1", notices)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d features, want 0", store.Len())
	}
}

func TestTraceMaskFailureIsANotice(t *testing.T) {
	store := feature.NewStore()
	s := New(flatSource(t), store, DefaultOptions())
	s.SetView(geometry.NewRect(0, 0, 50, 50))
	s.SetMaskSource(&fakeMaskSource{err: errors.New("backend offline")}, segment.Options{})

	notices := 0
	s.On(EventNotice, func(data interface{}) {
		notices++
	})

	res, err := s.TraceMask([]geometry.Point2D{{X: 15, Y: 35}}, nil)
	if err != nil {
		t.Fatalf("TraceMask: %v", err)
	}
	if res != nil {
		t.Fatalf("result = %+v, want nil on backend failure", res)
	}
	if notices != 1 {
		t.Errorf("notices = %d, want 1", notices)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d features, want 0", store.Len())
	}
}

func TestTraceMaskRequiresIdleAndSource(t *testing.T) {
	s := New(flatSource(t), nil, DefaultOptions())
	s.SetView(geometry.NewRect(0, 0, 50, 50))

	if _, err := s.TraceMask(nil, nil); !errors.Is(err, segment.ErrUnavailable) {
		t.Errorf("err without a source = %v, want ErrUnavailable", err)
	}

	s.SetMaskSource(&fakeMaskSource{mask: edge.NewMask(50, 50)}, segment.Options{})
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	if _, err := s.TraceMask(nil, nil); err == nil {
		t.Error("TraceMask should fail while tracing")
	}
}

func TestFreehandRoutesStraight(t *testing.T) {
	s := freehandSession(nil)
	mustStart(t, s, geometry.Point2D{X: 0, Y: 0})
	mustClick(t, s, geometry.Point2D{X: 30, Y: 40})

	path := s.Path()
	want := []geometry.Point2D{{X: 0, Y: 0}, {X: 30, Y: 40}}
	if len(path) != 2 || path[0] != want[0] || path[1] != want[1] {
		t.Fatalf("path = %v, want straight segment %v", path, want)
	}
}
