// Package session implements the interactive tracing state machine. A
// session owns one view cache (tile, edge mask, cost field) and accumulates
// operator-confirmed points into a trace path with checkpoints for undo.
// Pointer movement produces live preview routes over the cached field;
// clicking near the start closes a polygon; finishing or closing smooths the
// path and hands it to the feature sink, either creating a feature or
// splicing onto the end of an existing one.
//
// Everything here is single-threaded: the session is driven by one event
// loop and is not safe for concurrent use.
package session

import (
	"fmt"
	"math"

	"contour-tracer/internal/costfield"
	"contour-tracer/internal/edge"
	"contour-tracer/internal/feature"
	"contour-tracer/internal/pathfind"
	"contour-tracer/internal/raster"
	"contour-tracer/internal/segment"
	"contour-tracer/pkg/geometry"
)

// State is the lifecycle phase of a session. Closed, Finished and Cancelled
// are transient: they are reported to listeners and the session immediately
// returns to Idle.
type State int

const (
	StateIdle State = iota
	StateTracing
	StateClosed
	StateFinished
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracing:
		return "tracing"
	case StateClosed:
		return "closed"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sink receives committed trace geometry. *feature.Store satisfies it.
type Sink interface {
	CreateFeature(kind feature.Kind, points []geometry.Point2D, attrs feature.Attributes) (string, error)
	UpdateGeometry(id string, points []geometry.Point2D) error
}

// Index looks up stored line features so a trace can resume from one of
// their endpoints. *feature.Store satisfies it.
type Index interface {
	NearestEndpoint(p geometry.Point2D, tolerance float64) (feature.Endpoint, bool)
	Get(id string) (feature.Feature, bool)
}

// ScalarPrompt asks the operator for the elevation of a finished feature.
// The boolean is false when the operator cancelled; the feature then
// commits without the attribute.
type ScalarPrompt func(min, max, def float64) (float64, bool)

// Options configures a session's tracing behavior. Pixel-denominated
// tolerances are converted through the view transform at use time so they
// stay stable across zoom levels.
type Options struct {
	// Adherence weights the cost field: 0 barely prefers edges, 1 makes
	// leaving an edge expensive. Clamped to [0, 1].
	Adherence float64
	// Freehand disables the cost-field search; previews and confirmed
	// legs become straight segments.
	Freehand bool
	// SpotFeatures makes a click on the start point, with nothing else
	// confirmed, commit a single-point feature instead of being ignored.
	SpotFeatures bool

	// PreviewIterations and FinalIterations are Chaikin passes for the
	// live preview and the committed geometry.
	PreviewIterations int
	FinalIterations   int
	// MaxPreviewPoints caps preview vertices by uniform downsampling.
	MaxPreviewPoints int

	// SnapRadiusPx pulls clicked and dragged points onto a detected edge
	// within this many field cells. Zero disables snapping.
	SnapRadiusPx int
	// SnapMaxAngleDeg rejects a drag snap that bends more than this away
	// from the current direction of travel.
	SnapMaxAngleDeg float64
	// CloseTolerancePx is how near the start a click must land to close
	// the polygon.
	CloseTolerancePx float64
	// MinClosePoints is the least number of confirmed points before a
	// near-start click closes instead of confirming.
	MinClosePoints int
	// DragMinDistancePx is the minimum pointer travel between sampled
	// drag points.
	DragMinDistancePx float64
	// ResumeTolerancePx is the endpoint search radius for resuming an
	// existing feature at trace start.
	ResumeTolerancePx float64

	// CursorAlpha is the exponential smoothing factor applied to hover
	// positions before routing; 1 disables smoothing.
	CursorAlpha float64

	// ElevationMin, ElevationMax and ElevationDefault parameterize the
	// scalar prompt.
	ElevationMin     float64
	ElevationMax     float64
	ElevationDefault float64

	// Detect, Field and Search configure the pipeline stages.
	Detect edge.Options
	Field  costfield.Options
	Search pathfind.Options
}

// DefaultOptions returns tracing parameters tuned for contour maps around
// 1:10000 scale.
func DefaultOptions() Options {
	return Options{
		Adherence:         0.3,
		Freehand:          false,
		SpotFeatures:      true,
		PreviewIterations: 2,
		FinalIterations:   3,
		MaxPreviewPoints:  30,
		SnapRadiusPx:      10,
		SnapMaxAngleDeg:   60,
		CloseTolerancePx:  10,
		MinClosePoints:    3,
		DragMinDistancePx: 3,
		ResumeTolerancePx: 10,
		CursorAlpha:       0.5,
		ElevationMin:      -12000,
		ElevationMax:      9000,
		ElevationDefault:  0,
		Detect:            edge.DefaultOptions(),
		Field:             costfield.DefaultOptions(),
		Search:            pathfind.DefaultOptions(),
	}
}

// WithAdherence returns a copy of the options with the given edge adherence.
func (o Options) WithAdherence(a float64) Options {
	o.Adherence = clamp01(a)
	return o
}

// WithFreehand returns a copy of the options with freehand mode set.
func (o Options) WithFreehand(on bool) Options {
	o.Freehand = on
	return o
}

// WithSpotFeatures returns a copy of the options with spot features set.
func (o Options) WithSpotFeatures(on bool) Options {
	o.SpotFeatures = on
	return o
}

// WithDetection returns a copy of the options with the detection options.
func (o Options) WithDetection(d edge.Options) Options {
	o.Detect = d
	return o
}

// Result is the outcome of a committed trace.
type Result struct {
	Kind feature.Kind
	// Points is the final world geometry. Polygon rings come back closed,
	// first == last; the sink stores the ring unclosed.
	Points []geometry.Point2D
	Attrs  feature.Attributes
	// FeatureID identifies the created or updated feature; empty when the
	// session has no sink.
	FeatureID string
	// Updated reports the commit merged into an existing feature instead
	// of creating one.
	Updated bool
}

// Session drives one interactive trace at a time over a raster source.
type Session struct {
	opts Options

	src    raster.Source
	det    *edge.Detector
	fields *costfield.Builder
	sink   Sink
	index  Index
	prompt ScalarPrompt

	masks    segment.Source
	maskOpts segment.Options

	cache        *ViewCache
	viewExtent   geometry.Rect
	viewSet      bool
	cacheNoticed bool

	state   State
	path    []geometry.Point2D
	marks   []int // checkpoint stack of path lengths; marks[0] is the start
	preview []geometry.Point2D

	resume   feature.Endpoint
	resuming bool

	cursor geometry.EMA

	listeners map[EventType][]Listener
}

// New creates an idle session over the given raster source and feature
// sink. A nil source means freehand geometry only; a nil sink commits
// results to listeners without persisting them.
func New(src raster.Source, sink Sink, opts Options) *Session {
	opts.Adherence = clamp01(opts.Adherence)
	return &Session{
		opts:      opts,
		src:       src,
		det:       edge.NewDetector(opts.Detect),
		fields:    costfield.NewBuilder(opts.Field),
		sink:      sink,
		cache:     &ViewCache{},
		cursor:    geometry.EMA{Alpha: opts.CursorAlpha},
		listeners: make(map[EventType][]Listener),
	}
}

// SetIndex attaches the endpoint lookup used for resuming stored features.
func (s *Session) SetIndex(index Index) {
	s.index = index
}

// SetPrompt attaches the elevation prompt invoked when a feature is created.
func (s *Session) SetPrompt(prompt ScalarPrompt) {
	s.prompt = prompt
}

// SetMaskSource attaches an external segmentation backend used by TraceMask.
// A zero Options value selects the vectorization defaults.
func (s *Session) SetMaskSource(src segment.Source, opts segment.Options) {
	if opts == (segment.Options{}) {
		opts = segment.DefaultOptions()
	}
	s.masks = src
	s.maskOpts = opts
}

// Close releases detector resources.
func (s *Session) Close() {
	s.det.Close()
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return s.state
}

// Path returns a copy of the confirmed trace path.
func (s *Session) Path() []geometry.Point2D {
	return clonePath(s.path)
}

// Preview returns a copy of the last computed preview path.
func (s *Session) Preview() []geometry.Point2D {
	return clonePath(s.preview)
}

// SetView announces a new visible extent. The cache is invalidated; the
// next search rebuilds it for this extent.
func (s *Session) SetView(extent geometry.Rect) {
	s.viewExtent = extent
	s.viewSet = true
	s.cacheNoticed = false
	s.cache.Invalidate()
}

// SetAdherence changes the edge adherence weight, rebuilding the cost field
// on next use. Values are clamped to [0, 1].
func (s *Session) SetAdherence(a float64) {
	a = clamp01(a)
	if a == s.opts.Adherence {
		return
	}
	s.opts.Adherence = a
	s.cache.Invalidate()
}

// Start begins tracing at a world point. If the point lands within the
// resume tolerance of a stored line's endpoint the session enters resume
// mode and the trace starts exactly on that endpoint; otherwise the point
// is snapped onto a nearby detected edge when one exists.
func (s *Session) Start(world geometry.Point2D) error {
	if s.state != StateIdle {
		return fmt.Errorf("session: start while %s", s.state)
	}

	cache := s.ensureCache()

	start := world
	if s.index != nil {
		if ep, ok := s.index.NearestEndpoint(world, s.pixelsToWorld(s.opts.ResumeTolerancePx)); ok {
			s.resume = ep
			s.resuming = true
			start = ep.Point
		}
	}
	if !s.resuming && cache != nil {
		if snapped, ok := cache.SnapToEdge(world, s.opts.SnapRadiusPx); ok {
			start = snapped
		}
	}

	s.path = []geometry.Point2D{start}
	s.marks = []int{1}
	s.preview = nil
	s.cursor.Reset()
	s.setState(StateTracing)
	s.emit(EventPathChanged, clonePath(s.path))
	return nil
}

// PointerMove recomputes the live preview from the last confirmed point to
// the hover position. The position is smoothed against hand jitter before
// routing. Outside of tracing this is a no-op.
func (s *Session) PointerMove(world geometry.Point2D) {
	if s.state != StateTracing {
		return
	}
	target := s.cursor.Update(world)
	leg := s.route(s.path[len(s.path)-1], target)
	leg = geometry.Chaikin(leg, s.opts.PreviewIterations, false)
	leg = geometry.Downsample(leg, s.opts.MaxPreviewPoints)
	s.preview = leg
	s.emit(EventPreviewUpdated, clonePath(leg))
}

// DragTo samples a point from a pointer drag. Samples closer than the
// minimum drag distance to the last confirmed point are dropped; accepted
// samples are pulled onto a nearby edge unless that would bend the stroke
// more than the snap angle limit.
func (s *Session) DragTo(world geometry.Point2D) {
	if s.state != StateTracing {
		return
	}
	last := s.path[len(s.path)-1]
	if world.Distance(last) < s.pixelsToWorld(s.opts.DragMinDistancePx) {
		return
	}

	sample := world
	if cache := s.ensureCache(); cache != nil {
		if snapped, ok := cache.SnapToEdge(world, s.opts.SnapRadiusPx); ok && s.snapKeepsHeading(snapped) {
			sample = snapped
		}
	}
	if sample == last {
		return
	}

	s.path = append(s.path, sample)
	s.preview = nil
	s.emit(EventPathChanged, clonePath(s.path))
}

// EndDrag closes a drag gesture, checkpointing the stroke so a single undo
// removes it whole.
func (s *Session) EndDrag() {
	if s.state != StateTracing {
		return
	}
	if top := s.marks[len(s.marks)-1]; len(s.path) > top {
		s.marks = append(s.marks, len(s.path))
	}
}

// Click confirms the route to a world point, appending it to the trace path
// under a new checkpoint. A click near the start point instead closes the
// polygon once enough points are confirmed, or commits a spot feature when
// nothing but the start exists. The returned Result is nil unless the click
// committed a feature.
func (s *Session) Click(world geometry.Point2D) (*Result, error) {
	if s.state != StateTracing {
		return nil, fmt.Errorf("session: click while %s", s.state)
	}

	nearStart := world.Distance(s.path[0]) <= s.pixelsToWorld(s.opts.CloseTolerancePx)
	if nearStart && !s.resuming {
		if len(s.path) == 1 {
			if !s.opts.SpotFeatures {
				return nil, nil
			}
			return s.finalize(feature.KindSpot, s.path, false)
		}
		if len(s.path) >= s.opts.MinClosePoints {
			return s.closeRing()
		}
	}

	target := world
	if cache := s.ensureCache(); cache != nil {
		if snapped, ok := cache.SnapToEdge(world, s.opts.SnapRadiusPx); ok {
			target = snapped
		}
	}

	leg := s.route(s.path[len(s.path)-1], target)
	if len(leg) > 1 {
		s.path = append(s.path, leg[1:]...)
	}
	if top := s.marks[len(s.marks)-1]; len(s.path) > top {
		s.marks = append(s.marks, len(s.path))
	}
	s.preview = nil
	s.emit(EventPathChanged, clonePath(s.path))
	return nil, nil
}

// UndoCheckpoint truncates the trace path to the most recent checkpoint, or
// to the one before it when the path already sits exactly on a checkpoint.
// The start point always survives.
func (s *Session) UndoCheckpoint() {
	if s.state != StateTracing {
		return
	}
	top := s.marks[len(s.marks)-1]
	if len(s.path) == top && len(s.marks) > 1 {
		s.marks = s.marks[:len(s.marks)-1]
		top = s.marks[len(s.marks)-1]
	}
	if len(s.path) > top {
		s.path = s.path[:top]
	}
	s.preview = nil
	s.emit(EventPathChanged, clonePath(s.path))
	s.emit(EventPreviewUpdated, nil)
}

// Finish commits the trace path as an open line. Fewer than two confirmed
// points is a silent no-op: the session keeps tracing and the Result is
// nil.
func (s *Session) Finish() (*Result, error) {
	if s.state != StateTracing {
		return nil, fmt.Errorf("session: finish while %s", s.state)
	}
	if len(s.path) < 2 {
		return nil, nil
	}
	return s.finalize(feature.KindLine, s.path, false)
}

// TraceMask asks the segmentation backend for the region around the given
// seed points and commits its vectorized boundary, bypassing interactive
// tracing. Foreground seeds mark the region, background seeds mark its
// surroundings; both are world coordinates inside the current view. The
// Result is nil when no usable region comes back, which is a notice rather
// than an error. Only valid while idle.
func (s *Session) TraceMask(foreground, background []geometry.Point2D) (*Result, error) {
	if s.state != StateIdle {
		return nil, fmt.Errorf("session: trace mask while %s", s.state)
	}
	if s.masks == nil {
		return nil, segment.ErrUnavailable
	}
	cache := s.ensureCache()
	if cache == nil {
		return nil, fmt.Errorf("session: trace mask: no view image available")
	}

	s.masks.SetContext(cache.Tile())
	mask, err := s.masks.Predict(toPixels(cache, foreground), toPixels(cache, background))
	if err != nil {
		s.emit(EventNotice, "segmentation unavailable, trace the region manually")
		return nil, nil
	}

	ring := cache.WorldPath(segment.Vectorize(mask, s.maskOpts))
	switch {
	case len(ring) >= 3:
		if !seedsInRing(foreground, ring) {
			s.emit(EventNotice, "segmented region does not cover the seed points")
			return nil, nil
		}
		return s.finalize(feature.KindPolygon, ring, true)
	case len(ring) == 2:
		return s.finalize(feature.KindLine, ring, false)
	default:
		s.emit(EventNotice, "segmentation found no region at the seed points")
		return nil, nil
	}
}

// Cancel discards the trace in progress.
func (s *Session) Cancel() {
	if s.state != StateTracing {
		return
	}
	s.setState(StateCancelled)
	s.reset()
}

// closeRing routes from the last confirmed point back to the start and
// commits the result as a polygon. A degenerate ring falls back to an open
// line.
func (s *Session) closeRing() (*Result, error) {
	last := s.path[len(s.path)-1]
	leg := s.route(last, s.path[0])

	ring := append(clonePath(s.path), leg[1:]...)
	if ring[len(ring)-1] == s.path[0] {
		// Drop the duplicated seam vertex; closed smoothing and the
		// sink both work on the unclosed ring.
		ring = ring[:len(ring)-1]
	}
	// A ring thinner than one pixel encloses nothing; collinear points are
	// the common case.
	minArea := s.pixelsToWorld(1)
	if len(ring) < 3 || geometry.RingArea(ring) < minArea*minArea {
		return s.finalize(feature.KindLine, s.path, false)
	}
	return s.finalize(feature.KindPolygon, ring, true)
}

// finalize smooths the geometry, resolves resume merging, prompts for the
// elevation and commits through the sink. On sink errors the session stays
// in Tracing with the path intact so the operator can retry or cancel.
func (s *Session) finalize(kind feature.Kind, points []geometry.Point2D, closed bool) (*Result, error) {
	smoothed := geometry.Chaikin(clonePath(points), s.opts.FinalIterations, closed)

	if s.resuming && kind == feature.KindLine {
		res, ok, err := s.mergeResume(smoothed)
		if err != nil {
			return nil, err
		}
		if ok {
			return s.conclude(res, StateFinished), nil
		}
		s.emit(EventNotice, "resume target no longer exists, creating a new feature")
	}

	res := Result{Kind: kind, Points: smoothed}
	if s.prompt != nil {
		if v, ok := s.prompt(s.opts.ElevationMin, s.opts.ElevationMax, s.opts.ElevationDefault); ok {
			res.Attrs = feature.Attributes{Elevation: v, HasElevation: true}
		}
	}
	if s.sink != nil {
		id, err := s.sink.CreateFeature(kind, smoothed, res.Attrs)
		if err != nil {
			return nil, fmt.Errorf("session: committing %s: %w", kind, err)
		}
		res.FeatureID = id
	}
	if closed && len(res.Points) > 0 {
		res.Points = append(clonePath(res.Points), res.Points[0])
	}

	final := StateFinished
	if closed || kind == feature.KindSpot {
		final = StateClosed
	}
	return s.conclude(res, final), nil
}

// mergeResume splices the new points onto the anchored end of the resumed
// feature and updates it in place. ok is false when the feature has
// disappeared since the trace started.
func (s *Session) mergeResume(added []geometry.Point2D) (Result, bool, error) {
	existing, ok := s.index.Get(s.resume.FeatureID)
	if !ok {
		return Result{}, false, nil
	}
	merged := splice(existing.Points, added, s.resume.AtStart)
	if s.sink != nil {
		if err := s.sink.UpdateGeometry(s.resume.FeatureID, merged); err != nil {
			return Result{}, false, fmt.Errorf("session: updating feature %s: %w", s.resume.FeatureID, err)
		}
	}
	return Result{
		Kind:      feature.KindLine,
		Points:    merged,
		FeatureID: s.resume.FeatureID,
		Updated:   true,
	}, true, nil
}

func (s *Session) conclude(res Result, final State) *Result {
	s.setState(final)
	s.emit(EventCommitted, res)
	s.reset()
	return &res
}

// route computes the magnetic leg between two world points. Without a
// usable cache (freehand mode, no view, unreadable raster) it degrades to
// the straight segment. Leg endpoints are pinned to the requested points so
// consecutive legs join exactly.
func (s *Session) route(from, to geometry.Point2D) []geometry.Point2D {
	cache := s.ensureCache()
	if cache == nil {
		if from == to {
			return []geometry.Point2D{from}
		}
		return []geometry.Point2D{from, to}
	}

	res := pathfind.Find(cache.Field(), cache.ToPixel(from), cache.ToPixel(to), s.opts.Search)
	if !res.Complete {
		s.emit(EventNotice, "search budget exhausted, using closest approach")
	}

	pts := cache.WorldPath(res.Points)
	if len(pts) == 1 {
		if from == to {
			return []geometry.Point2D{from}
		}
		return []geometry.Point2D{from, to}
	}
	pts[0] = from
	if res.Complete {
		pts[len(pts)-1] = to
	}
	return pts
}

// ensureCache returns a valid view cache, rebuilding it when stale. It
// returns nil when the session must route straight segments instead:
// freehand mode, no view announced, no raster, or an unreadable window.
func (s *Session) ensureCache() *ViewCache {
	if s.opts.Freehand || s.src == nil || !s.viewSet {
		return nil
	}
	if s.cache.Valid() {
		return s.cache
	}
	if err := s.cache.Refresh(s.src, s.det, s.fields, s.viewExtent, s.opts.Adherence); err != nil {
		if !s.cacheNoticed {
			s.emit(EventNotice, "raster window unavailable, tracing straight segments")
			s.cacheNoticed = true
		}
		return nil
	}
	return s.cache
}

// snapKeepsHeading reports whether snapping a drag sample to the given
// point keeps the stroke within the configured angle of its current
// direction of travel. With fewer than two points there is no heading yet
// and any snap is fine.
func (s *Session) snapKeepsHeading(snapped geometry.Point2D) bool {
	if len(s.path) < 2 {
		return true
	}
	n := len(s.path)
	travel := s.path[n-1].Sub(s.path[n-2])
	turn := geometry.AngleBetween(travel, snapped.Sub(s.path[n-1]))
	return turn <= s.opts.SnapMaxAngleDeg*math.Pi/180
}

// pixelsToWorld converts a pixel-denominated tolerance to world units using
// the cached cell size, the raster's pixel size, or as a last resort the
// raw value.
func (s *Session) pixelsToWorld(px float64) float64 {
	if s.cache.Valid() {
		w, h := s.cache.CellSize()
		return px * math.Max(w, h)
	}
	if s.src != nil {
		w, h := s.src.PixelSize()
		return px * math.Max(w, h)
	}
	return px
}

func (s *Session) setState(st State) {
	if st == s.state {
		return
	}
	s.state = st
	s.emit(EventStateChanged, st)
}

// reset clears per-trace state and returns to Idle. The view cache is kept;
// it only depends on the extent and adherence.
func (s *Session) reset() {
	s.path = nil
	s.marks = nil
	s.preview = nil
	s.resume = feature.Endpoint{}
	s.resuming = false
	s.cursor.Reset()
	s.setState(StateIdle)
}

// splice joins newly traced points onto an existing line. The first added
// point duplicates the anchor endpoint and is dropped; anchoring at the
// line's start reverses the addition so the merged line keeps one
// direction.
func splice(existing, added []geometry.Point2D, atStart bool) []geometry.Point2D {
	if len(added) < 2 {
		return clonePath(existing)
	}
	tail := added[1:]
	if !atStart {
		return append(clonePath(existing), tail...)
	}
	merged := make([]geometry.Point2D, 0, len(existing)+len(tail))
	for i := len(tail) - 1; i >= 0; i-- {
		merged = append(merged, tail[i])
	}
	return append(merged, existing...)
}

// seedsInRing reports whether any foreground seed falls inside the
// vectorized boundary. The largest region in a mask may be unrelated to
// the operator's seeds; committing it would be surprising. No seeds means
// nothing to check.
func seedsInRing(seeds []geometry.Point2D, ring []geometry.Point2D) bool {
	if len(seeds) == 0 {
		return true
	}
	for _, p := range seeds {
		if geometry.PointInRing(p, ring) {
			return true
		}
	}
	return false
}

func toPixels(cache *ViewCache, points []geometry.Point2D) []geometry.PointInt {
	out := make([]geometry.PointInt, len(points))
	for i, p := range points {
		out[i] = cache.ToPixel(p)
	}
	return out
}

func clonePath(points []geometry.Point2D) []geometry.Point2D {
	if points == nil {
		return nil
	}
	out := make([]geometry.Point2D, len(points))
	copy(out, points)
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
