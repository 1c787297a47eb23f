// Package gridsearch is the tile-level search primitive: an 8-way A* over the
// continuous tile plane, fed one cost grid per region.
package gridsearch

import (
	"colonynav.ai/internal/nav/costgrid"
	"colonynav.ai/internal/nav/geo"
)

// Goal is reached by any tile within Range of Pos.
type Goal struct {
	Pos   geo.Tile
	Range int
}

// GridFunc returns the cost grid of a region; false makes the whole region
// impassable. It is called at most once per region per search.
type GridFunc func(region geo.RegionID) (*costgrid.Grid, bool)

// TerrainFunc resolves cells whose grid value is costgrid.Default.
type TerrainFunc func(t geo.Tile) geo.Terrain

type Options struct {
	MaxOps     int
	MaxRegions int
	PlainCost  int
	SwampCost  int
	// HeuristicWeight scales the distance estimate, counted in the cheaper
	// of the two terrain costs per tile. Values above 1 trade optimality for
	// fewer expansions.
	HeuristicWeight float64
}

type Result struct {
	// Path excludes the origin and ends at the goal, or at the closest tile
	// found when Incomplete.
	Path       []geo.Tile
	Ops        int
	Cost       int
	Incomplete bool
}

type Searcher interface {
	Search(origin geo.Tile, goal Goal, grids GridFunc, opts Options) Result
}

const (
	defaultMaxOps     = 2000
	defaultMaxRegions = 16
	defaultWeight     = 1.2
)

// AStar is the default Searcher.
type AStar struct {
	Terrain TerrainFunc
}

func NewAStar(terrain TerrainFunc) *AStar { return &AStar{Terrain: terrain} }

var _ Searcher = (*AStar)(nil)

type point struct{ x, y int }

type node struct {
	p      point
	g      int
	h      int
	parent int32
	closed bool
}

type regionGrid struct {
	grid *costgrid.Grid
	ok   bool
}

func (a *AStar) Search(origin geo.Tile, goal Goal, grids GridFunc, opts Options) Result {
	opts = withDefaults(opts)
	gx, gy := goal.Pos.Global()
	target := point{gx, gy}
	ox, oy := origin.Global()
	start := point{ox, oy}

	if chebyshev(start, target) <= goal.Range {
		return Result{}
	}

	regions := map[geo.RegionID]regionGrid{}
	gridOf := func(id geo.RegionID) regionGrid {
		if rg, ok := regions[id]; ok {
			return rg
		}
		if len(regions) >= opts.MaxRegions {
			return regionGrid{}
		}
		g, ok := grids(id)
		rg := regionGrid{grid: g, ok: ok && g != nil}
		regions[id] = rg
		return rg
	}
	// The origin region is always loaded so the first step has a grid.
	gridOf(origin.Region)

	nodes := []node{{p: start, g: 0, h: chebyshev(start, target), parent: -1}}
	index := map[point]int32{start: 0}
	open := openHeap{}
	open.push(openEntry{idx: 0, f: a.f(0, nodes[0].h, opts)})

	best := int32(0)
	ops := 0
	for len(open) > 0 {
		e := open.pop()
		n := &nodes[e.idx]
		if n.closed {
			continue
		}
		n.closed = true
		cur := *n
		if cur.h < nodes[best].h || (cur.h == nodes[best].h && cur.g < nodes[best].g) {
			best = e.idx
		}
		if cur.h <= goal.Range {
			return a.result(nodes, e.idx, ops, false)
		}
		ops++
		if ops >= opts.MaxOps {
			break
		}
		for _, d := range geo.AllDirections {
			delta := d.Delta()
			np := point{cur.p.x + delta[0], cur.p.y + delta[1]}
			step, ok := a.stepCost(np, gridOf, opts)
			if !ok {
				continue
			}
			ng := cur.g + step
			if idx, seen := index[np]; seen {
				if nodes[idx].closed || nodes[idx].g <= ng {
					continue
				}
				nodes[idx].g = ng
				nodes[idx].parent = e.idx
				open.push(openEntry{idx: idx, f: a.f(ng, nodes[idx].h, opts)})
				continue
			}
			idx := int32(len(nodes))
			h := chebyshev(np, target)
			nodes = append(nodes, node{p: np, g: ng, h: h, parent: e.idx})
			index[np] = idx
			open.push(openEntry{idx: idx, f: a.f(ng, h, opts)})
		}
	}
	return a.result(nodes, best, ops, true)
}

func (a *AStar) f(g, h int, opts Options) float64 {
	unit := min(opts.PlainCost, opts.SwampCost)
	return float64(g) + float64(h*unit)*opts.HeuristicWeight
}

func (a *AStar) stepCost(p point, gridOf func(geo.RegionID) regionGrid, opts Options) (int, bool) {
	t := geo.FromGlobal(p.x, p.y)
	rg := gridOf(t.Region)
	if !rg.ok {
		return 0, false
	}
	switch c := rg.grid.Get(t.X, t.Y); c {
	case costgrid.Impassable:
		return 0, false
	case costgrid.Default:
	default:
		return int(c), true
	}
	if a.Terrain == nil {
		return opts.PlainCost, true
	}
	switch a.Terrain(t) {
	case geo.TerrainWall:
		return 0, false
	case geo.TerrainSwamp:
		return opts.SwampCost, true
	}
	return opts.PlainCost, true
}

func (a *AStar) result(nodes []node, end int32, ops int, incomplete bool) Result {
	var rev []geo.Tile
	for i := end; nodes[i].parent >= 0; i = nodes[i].parent {
		rev = append(rev, geo.FromGlobal(nodes[i].p.x, nodes[i].p.y))
	}
	path := make([]geo.Tile, len(rev))
	for i, t := range rev {
		path[len(rev)-1-i] = t
	}
	return Result{Path: path, Ops: ops, Cost: nodes[end].g, Incomplete: incomplete}
}

func withDefaults(o Options) Options {
	if o.MaxOps <= 0 {
		o.MaxOps = defaultMaxOps
	}
	if o.MaxRegions <= 0 {
		o.MaxRegions = defaultMaxRegions
	}
	if o.PlainCost <= 0 {
		o.PlainCost = 1
	}
	if o.SwampCost <= 0 {
		o.SwampCost = 5
	}
	if o.HeuristicWeight <= 0 {
		o.HeuristicWeight = defaultWeight
	}
	return o
}

func chebyshev(a, b point) int {
	return max(abs(a.x-b.x), abs(a.y-b.y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type openEntry struct {
	idx int32
	f   float64
}

type openHeap []openEntry

func (h *openHeap) push(e openEntry) {
	*h = append(*h, e)
	i := len(*h) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if (*h)[parent].f <= (*h)[i].f {
			break
		}
		(*h)[parent], (*h)[i] = (*h)[i], (*h)[parent]
		i = parent
	}
}

func (h *openHeap) pop() openEntry {
	old := *h
	n := len(old)
	e := old[0]
	old[0] = old[n-1]
	*h = old[:n-1]

	i := 0
	for {
		left := 2*i + 1
		if left >= len(*h) {
			break
		}
		smallest := left
		if right := left + 1; right < len(*h) && (*h)[right].f < (*h)[left].f {
			smallest = right
		}
		if (*h)[i].f <= (*h)[smallest].f {
			break
		}
		(*h)[i], (*h)[smallest] = (*h)[smallest], (*h)[i]
		i = smallest
	}
	return e
}
