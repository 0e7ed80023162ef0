// Command contour-tracer traces a contour line between two world points on
// a scanned map and appends the result to a GeoJSON feature file. It drives
// the same tracing session the interactive tools use, so the route follows
// the dark line work instead of cutting straight across.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"contour-tracer/internal/feature"
	"contour-tracer/internal/raster"
	"contour-tracer/internal/session"
	"contour-tracer/internal/settings"
	"contour-tracer/internal/version"
	"contour-tracer/pkg/geometry"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	rasterPath := flag.String("raster", "", "Scanned map image; world file sidecars are honored")
	featurePath := flag.String("features", "features.geojson", "GeoJSON feature file to read and update")
	fromArg := flag.String("from", "", "Trace start in world coordinates, as x,y")
	toArg := flag.String("to", "", "Trace end in world coordinates, as x,y")
	strategy := flag.String("strategy", "", "Override the detection strategy: adaptive, line-segment or dense-edge")
	adherence := flag.Float64("adherence", -1, "Override edge adherence (0-1)")
	thin := flag.Bool("thin", false, "Thin detected edges before routing")
	freehand := flag.Bool("freehand", false, "Skip edge detection; legs become straight segments")
	elevation := flag.Float64("elevation", math.NaN(), "Elevation attribute for the traced feature")
	flag.Parse()

	if *rasterPath == "" || *fromArg == "" || *toArg == "" {
		flag.Usage()
		os.Exit(2)
	}

	log.Printf("contour-tracer %s", version.String())

	from, err := parsePoint(*fromArg)
	if err != nil {
		log.Fatalf("Bad -from: %v", err)
	}
	to, err := parsePoint(*toArg)
	if err != nil {
		log.Fatalf("Bad -to: %v", err)
	}

	src, err := raster.LoadFile(*rasterPath)
	if err != nil {
		log.Fatalf("Failed to load raster %s: %v", *rasterPath, err)
	}

	store := feature.NewStore()
	if data, err := os.ReadFile(*featurePath); err == nil {
		if err := store.LoadGeoJSON(data); err != nil {
			log.Fatalf("Failed to parse %s: %v", *featurePath, err)
		}
		log.Printf("Loaded %d features from %s", store.Len(), *featurePath)
	} else if !os.IsNotExist(err) {
		log.Fatalf("Failed to read %s: %v", *featurePath, err)
	}

	cfg := settings.Load()
	if *strategy != "" {
		cfg.Strategy = *strategy
	}
	if *adherence >= 0 {
		cfg.EdgeAdherence = *adherence
	}
	if *thin {
		cfg.Thinning = true
	}
	if *freehand {
		cfg.Freehand = true
	}

	sess := session.New(src, store, cfg.SessionOptions())
	defer sess.Close()
	sess.SetIndex(store)
	sess.SetPrompt(func(min, max, def float64) (float64, bool) {
		if math.IsNaN(*elevation) {
			return 0, false
		}
		return math.Min(math.Max(*elevation, min), max), true
	})
	sess.On(session.EventNotice, func(data interface{}) {
		log.Printf("Notice: %v", data)
	})

	sess.SetView(viewAround(src, from, to))

	if err := sess.Start(from); err != nil {
		log.Fatalf("Failed to start trace: %v", err)
	}
	res, err := sess.Click(to)
	if err != nil {
		log.Fatalf("Failed to confirm end point: %v", err)
	}
	if res == nil {
		// The click only confirmed a point; commit the open line.
		res, err = sess.Finish()
		if err != nil {
			log.Fatalf("Failed to commit trace: %v", err)
		}
		if res == nil {
			log.Fatal("Trace too short to commit")
		}
	}

	verb := "Created"
	if res.Updated {
		verb = "Extended"
	}
	log.Printf("%s %s feature %s with %d points over %.1f map units",
		verb, res.Kind, res.FeatureID, len(res.Points), geometry.PathLength(res.Points))

	out, err := store.MarshalGeoJSON()
	if err != nil {
		log.Fatalf("Failed to encode features: %v", err)
	}
	if err := os.WriteFile(*featurePath, out, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *featurePath, err)
	}
	log.Printf("Wrote %d features to %s", store.Len(), *featurePath)
}

// parsePoint parses an "x,y" argument into world coordinates.
func parsePoint(arg string) (geometry.Point2D, error) {
	var p geometry.Point2D
	if _, err := fmt.Sscanf(arg, "%f,%f", &p.X, &p.Y); err != nil {
		return geometry.Point2D{}, fmt.Errorf("want x,y: %v", err)
	}
	return p, nil
}

// viewAround returns a view extent covering both trace endpoints with margin
// around them for the router to work in.
func viewAround(src raster.Source, from, to geometry.Point2D) geometry.Rect {
	minX, maxX := math.Min(from.X, to.X), math.Max(from.X, to.X)
	minY, maxY := math.Min(from.Y, to.Y), math.Max(from.Y, to.Y)

	pw, ph := src.PixelSize()
	pad := 64 * math.Max(pw, ph)
	pad = math.Max(pad, 0.25*math.Max(maxX-minX, maxY-minY))

	return geometry.Rect{
		X:      minX - pad,
		Y:      minY - pad,
		Width:  maxX - minX + 2*pad,
		Height: maxY - minY + 2*pad,
	}
}
