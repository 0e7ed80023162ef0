package costfield

import (
	"math"
	"testing"

	"contour-tracer/internal/edge"
)

func scatterMask(w, h int, points [][2]int) *edge.Mask {
	m := edge.NewMask(w, h)
	for _, p := range points {
		m.Set(p[0], p[1], true)
	}
	return m
}

// bruteForceDistance computes the exact nearest-edge distance by scanning
// every edge cell.
func bruteForceDistance(m *edge.Mask, x, y int) float64 {
	best := math.Inf(1)
	for ey := 0; ey < m.H; ey++ {
		for ex := 0; ex < m.W; ex++ {
			if !m.At(ex, ey) {
				continue
			}
			dx, dy := float64(x-ex), float64(y-ey)
			if d := math.Sqrt(dx*dx + dy*dy); d < best {
				best = d
			}
		}
	}
	return best
}

func TestBuildEmptyMaskIsUniform(t *testing.T) {
	b := NewBuilder(DefaultOptions())
	field := b.Build(edge.NewMask(8, 6), 0.5)

	if field.W != 8 || field.H != 6 {
		t.Fatalf("field is %dx%d, want 8x6", field.W, field.H)
	}
	for y := 0; y < field.H; y++ {
		for x := 0; x < field.W; x++ {
			if got := field.At(x, y); got != 1.0 {
				t.Fatalf("At(%d, %d) = %v on an empty mask, want 1.0", x, y, got)
			}
		}
	}
}

func TestBuildCostOnEdgesIsOne(t *testing.T) {
	points := [][2]int{{3, 2}, {17, 4}, {9, 11}, {0, 0}, {19, 14}}
	m := scatterMask(20, 15, points)

	field := NewBuilder(DefaultOptions()).Build(m, 0.8)
	for _, p := range points {
		if got := field.At(p[0], p[1]); got != 1.0 {
			t.Errorf("At(%d, %d) = %v on an edge cell, want exactly 1.0", p[0], p[1], got)
		}
	}
}

func TestBuildNeverBelowOne(t *testing.T) {
	m := scatterMask(20, 15, [][2]int{{5, 5}})
	field := NewBuilder(DefaultOptions()).Build(m, 0)

	for i, c := range field.Cost {
		if c < 1.0 {
			t.Fatalf("Cost[%d] = %v, want >= 1.0", i, c)
		}
	}
}

func TestBuildMatchesBruteForce(t *testing.T) {
	points := [][2]int{{3, 2}, {17, 4}, {9, 11}, {0, 0}, {19, 14}, {12, 7}, {4, 13}}
	m := scatterMask(20, 15, points)

	adherence := 0.6
	rate := 0.1 + adherence*0.9
	field := NewBuilder(DefaultOptions()).Build(m, adherence)

	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			want := 1 + bruteForceDistance(m, x, y)*rate
			if got := field.At(x, y); math.Abs(got-want) > 1e-9 {
				t.Fatalf("At(%d, %d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestBuildAdherenceScaling(t *testing.T) {
	m := scatterMask(30, 30, [][2]int{{5, 5}})
	b := NewBuilder(DefaultOptions())

	loose := b.Build(m, 0)
	tight := b.Build(m, 1)

	// Growth away from the edge is ten times steeper at full adherence.
	x, y := 20, 20
	ratio := (tight.At(x, y) - 1) / (loose.At(x, y) - 1)
	if math.Abs(ratio-10) > 1e-9 {
		t.Errorf("adherence growth ratio = %v, want 10", ratio)
	}
}

func TestBuildClampsAdherence(t *testing.T) {
	m := scatterMask(16, 16, [][2]int{{2, 3}, {11, 9}})
	b := NewBuilder(DefaultOptions())

	tests := []struct {
		name    string
		in, ref float64
	}{
		{"above one", 5, 1},
		{"below zero", -3, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := b.Build(m, tc.in)
			want := b.Build(m, tc.ref)
			for i := range want.Cost {
				if got.Cost[i] != want.Cost[i] {
					t.Fatalf("Cost[%d] = %v with adherence %v, want %v", i, got.Cost[i], tc.in, want.Cost[i])
				}
			}
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	points := [][2]int{{1, 1}, {14, 3}, {7, 12}, {10, 10}}
	m := scatterMask(16, 16, points)
	b := NewBuilder(DefaultOptions())

	first := b.Build(m, 0.5)
	second := b.Build(m, 0.5)
	for i := range first.Cost {
		if first.Cost[i] != second.Cost[i] {
			t.Fatalf("Cost[%d] differs between identical builds: %v vs %v", i, first.Cost[i], second.Cost[i])
		}
	}
}

func TestFieldAtOutOfBounds(t *testing.T) {
	f := NewUniform(4, 4)
	for _, p := range [][2]int{{-1, 0}, {0, -1}, {4, 0}, {0, 4}} {
		if got := f.At(p[0], p[1]); !math.IsInf(got, 1) {
			t.Errorf("At(%d, %d) = %v, want +Inf", p[0], p[1], got)
		}
	}
}

func TestBuildNilMask(t *testing.T) {
	field := NewBuilder(DefaultOptions()).Build(nil, 0.5)
	if field == nil || field.W != 0 || field.H != 0 {
		t.Errorf("Build(nil) = %+v, want an empty field", field)
	}
}
