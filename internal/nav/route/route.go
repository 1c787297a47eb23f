// Package route finds the sequence of regions a long trip should cross.
package route

import (
	"errors"

	"colonynav.ai/internal/nav/geo"
)

var ErrNoRoute = errors.New("no route")

// Map is the region-level part of the world query API.
type Map interface {
	RegionLinearDistance(a, b geo.RegionID) int
	RegionNeighbors(r geo.RegionID) []geo.RegionID
	IsRegionReachable(r geo.RegionID) bool
	IsRegionHazardous(r geo.RegionID) bool
}

type Options struct {
	AllowHazardous  bool
	PreferHighways  bool
	HighwayInterval int
	// RestrictDistance drops regions farther than this from the origin.
	// Zero disables the limit.
	RestrictDistance int
	// MaxExpand caps how many regions one query may settle.
	MaxExpand int
}

type Result struct {
	// Regions runs from origin to destination inclusive.
	Regions []geo.RegionID
	Cost    int
	Ops     int
}

// Allowed returns the route as a set, the shape costgrid.Restrict expects.
func (r Result) Allowed() map[geo.RegionID]bool {
	out := make(map[geo.RegionID]bool, len(r.Regions))
	for _, id := range r.Regions {
		out[id] = true
	}
	return out
}

type Router interface {
	Route(from, to geo.RegionID, opts Options) (Result, error)
}

const (
	highwayCost   = 2
	baseCost      = 5
	defaultExpand = 2500
)

// Dijkstra is the default router over the region graph.
type Dijkstra struct {
	Map Map
}

func NewDijkstra(m Map) *Dijkstra { return &Dijkstra{Map: m} }

var _ Router = (*Dijkstra)(nil)

func (d *Dijkstra) Route(from, to geo.RegionID, opts Options) (Result, error) {
	if from == to {
		return Result{Regions: []geo.RegionID{from}}, nil
	}
	if !d.Map.IsRegionReachable(to) {
		return Result{}, ErrNoRoute
	}
	limit := opts.MaxExpand
	if limit <= 0 {
		limit = defaultExpand
	}

	dist := map[geo.RegionID]int{from: 0}
	prev := map[geo.RegionID]geo.RegionID{}
	done := map[geo.RegionID]bool{}
	var h regionHeap
	h.push(regionEntry{id: from, dist: 0})

	ops := 0
	for len(h) > 0 {
		e := h.pop()
		if done[e.id] || e.dist > dist[e.id] {
			continue
		}
		done[e.id] = true
		ops++
		if e.id == to {
			return Result{Regions: unwind(prev, from, to), Cost: e.dist, Ops: ops}, nil
		}
		if ops >= limit {
			break
		}
		for _, n := range d.Map.RegionNeighbors(e.id) {
			if done[n] {
				continue
			}
			c, ok := d.cost(n, from, to, opts)
			if !ok {
				continue
			}
			nd := e.dist + c
			if old, seen := dist[n]; seen && old <= nd {
				continue
			}
			dist[n] = nd
			prev[n] = e.id
			h.push(regionEntry{id: n, dist: nd})
		}
	}
	return Result{Ops: ops}, ErrNoRoute
}

// cost of entering region r; false excludes it.
func (d *Dijkstra) cost(r, from, to geo.RegionID, opts Options) (int, bool) {
	if !d.Map.IsRegionReachable(r) {
		return 0, false
	}
	if opts.RestrictDistance > 0 && d.Map.RegionLinearDistance(from, r) > opts.RestrictDistance {
		return 0, false
	}
	if r != to && r != from && !opts.AllowHazardous && d.Map.IsRegionHazardous(r) {
		return 0, false
	}
	if opts.PreferHighways && r.IsHighway(opts.HighwayInterval) {
		return highwayCost, true
	}
	return baseCost, true
}

func unwind(prev map[geo.RegionID]geo.RegionID, from, to geo.RegionID) []geo.RegionID {
	var rev []geo.RegionID
	for cur := to; ; cur = prev[cur] {
		rev = append(rev, cur)
		if cur == from {
			break
		}
	}
	out := make([]geo.RegionID, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}

type regionEntry struct {
	id   geo.RegionID
	dist int
}

type regionHeap []regionEntry

func (h *regionHeap) push(e regionEntry) {
	*h = append(*h, e)
	i := len(*h) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if (*h)[parent].dist <= (*h)[i].dist {
			break
		}
		(*h)[parent], (*h)[i] = (*h)[i], (*h)[parent]
		i = parent
	}
}

func (h *regionHeap) pop() regionEntry {
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
		if right := left + 1; right < len(*h) && (*h)[right].dist < (*h)[left].dist {
			smallest = right
		}
		if (*h)[i].dist <= (*h)[smallest].dist {
			break
		}
		(*h)[i], (*h)[smallest] = (*h)[smallest], (*h)[i]
		i = smallest
	}
	return e
}
