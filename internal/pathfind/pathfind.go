// Package pathfind implements a budgeted A* search over a traversal cost
// field. The expansion budget is derived from the endpoint distance so a
// preview query has predictable worst-case latency; when the budget runs
// out the search returns its closest approach to the goal instead of
// failing, which keeps interactive tracing responsive on hard terrain.
package pathfind

import (
	"container/heap"
	"math"

	"contour-tracer/internal/costfield"
	"contour-tracer/pkg/geometry"
)

// node is a grid cell in search space.
type node struct {
	x, y int
}

// Options bounds the search and shapes the returned path.
type Options struct {
	// BudgetFloor is the base number of node expansions allowed per
	// search. Leaving both budget fields zero selects the defaults.
	BudgetFloor int
	// BudgetPerCell grants additional expansions per cell of Manhattan
	// distance between the endpoints.
	BudgetPerCell int
	// SmoothWindow is the width of the arithmetic mean applied to the raw
	// grid path, turning integer cells into sub-pixel coordinates. Zero
	// selects the default; negative disables smoothing.
	SmoothWindow int
}

// DefaultOptions returns search bounds tuned for interactive previews.
func DefaultOptions() Options {
	return Options{
		BudgetFloor:   2000,
		BudgetPerCell: 30,
		SmoothWindow:  5,
	}
}

// Result is the outcome of a search. Complete is false when the budget ran
// out first; Points then holds the path to the node nearest the goal seen
// so far, never an empty path.
type Result struct {
	Points   []geometry.Point2D
	Complete bool
}

// Find searches for a least-cost 8-connected path between two pixel
// coordinates. Endpoints outside the field are clamped to its bounds. A
// move costs the field value at the destination cell, scaled by sqrt(2)
// for diagonal steps; the Euclidean heuristic is admissible because every
// cell costs at least 1.
//
// With no field available the straight two-point segment comes back
// unmodified, which is the freehand behavior.
func Find(field *costfield.Field, start, end geometry.PointInt, opts Options) Result {
	def := DefaultOptions()
	if opts.BudgetFloor == 0 && opts.BudgetPerCell == 0 {
		opts.BudgetFloor = def.BudgetFloor
		opts.BudgetPerCell = def.BudgetPerCell
	}
	if opts.SmoothWindow == 0 {
		opts.SmoothWindow = def.SmoothWindow
	}

	if field == nil || field.W == 0 || field.H == 0 {
		if start == end {
			return Result{Points: []geometry.Point2D{start.ToFloat()}, Complete: true}
		}
		return Result{Points: []geometry.Point2D{start.ToFloat(), end.ToFloat()}, Complete: true}
	}

	startNode := node{clampInt(start.X, 0, field.W-1), clampInt(start.Y, 0, field.H-1)}
	endNode := node{clampInt(end.X, 0, field.W-1), clampInt(end.Y, 0, field.H-1)}

	if startNode == endNode {
		return Result{
			Points:   []geometry.Point2D{{X: float64(startNode.x), Y: float64(startNode.y)}},
			Complete: true,
		}
	}

	budget := opts.BudgetFloor + opts.BudgetPerCell*(absInt(startNode.x-endNode.x)+absInt(startNode.y-endNode.y))
	if budget < 1 {
		budget = 1
	}

	gScore := make(map[node]float64)
	gScore[startNode] = 0
	cameFrom := make(map[node]node)
	visited := make(map[node]bool)

	pq := &pathQueue{}
	heap.Init(pq)
	heap.Push(pq, &pathItem{
		x: startNode.x, y: startNode.y,
		f: euclidean(startNode.x, startNode.y, endNode.x, endNode.y),
	})

	// 8-connected neighbors
	dx := [8]int{-1, 0, 1, -1, 1, -1, 0, 1}
	dy := [8]int{-1, -1, -1, 0, 0, 1, 1, 1}
	step := [8]float64{math.Sqrt2, 1, math.Sqrt2, 1, 1, math.Sqrt2, 1, math.Sqrt2}

	bestNode := startNode
	bestH := euclidean(startNode.x, startNode.y, endNode.x, endNode.y)
	expansions := 0

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pathItem)
		cur := node{item.x, item.y}

		if cur == endNode {
			return Result{
				Points:   smoothPath(reconstruct(cameFrom, cur), opts.SmoothWindow),
				Complete: true,
			}
		}

		if visited[cur] {
			continue
		}
		visited[cur] = true

		expansions++
		if expansions > budget {
			break
		}

		if h := euclidean(cur.x, cur.y, endNode.x, endNode.y); h < bestH {
			bestH = h
			bestNode = cur
		}

		curG := gScore[cur]
		for d := 0; d < 8; d++ {
			nx, ny := cur.x+dx[d], cur.y+dy[d]
			cellCost := field.At(nx, ny)
			if math.IsInf(cellCost, 1) {
				continue
			}

			neighbor := node{nx, ny}
			if visited[neighbor] {
				continue
			}

			tentativeG := curG + step[d]*cellCost
			prevG, exists := gScore[neighbor]
			if !exists || tentativeG < prevG {
				gScore[neighbor] = tentativeG
				cameFrom[neighbor] = cur
				f := tentativeG + euclidean(nx, ny, endNode.x, endNode.y)
				heap.Push(pq, &pathItem{x: nx, y: ny, f: f})
			}
		}
	}

	// Budget exhausted or queue drained short of the goal. Hand back the
	// closest approach so the caller still has a path to draw.
	return Result{
		Points:   smoothPath(reconstruct(cameFrom, bestNode), opts.SmoothWindow),
		Complete: false,
	}
}

// reconstruct walks the came-from links back from n and returns the path in
// start-to-n order.
func reconstruct(cameFrom map[node]node, n node) []geometry.Point2D {
	var path []geometry.Point2D
	for {
		path = append(path, geometry.Point2D{X: float64(n.x), Y: float64(n.y)})
		prev, ok := cameFrom[n]
		if !ok {
			break
		}
		n = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func smoothPath(points []geometry.Point2D, window int) []geometry.Point2D {
	if window < 2 || len(points) < 3 {
		return points
	}
	return geometry.MovingAverage(points, window)
}

func euclidean(x1, y1, x2, y2 int) float64 {
	dx := float64(x2 - x1)
	dy := float64(y2 - y1)
	return math.Sqrt(dx*dx + dy*dy)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// pathItem is a node in the A* priority queue.
type pathItem struct {
	x, y  int
	f     float64
	index int
}

// pathQueue implements heap.Interface for A* search.
type pathQueue []*pathItem

func (pq pathQueue) Len() int           { return len(pq) }
func (pq pathQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }
func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*pathItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}
