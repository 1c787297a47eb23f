// Package world is an in-memory tile world: regions of terrain, structures,
// and agents whose move intents are resolved once per cycle. It implements
// the query API the navigation engine consumes.
package world

import (
	"fmt"
	"sort"

	"colonynav.ai/internal/nav"
	"colonynav.ai/internal/nav/geo"
)

type region struct {
	terrain   [geo.RegionSize * geo.RegionSize]geo.Terrain
	hazardous bool
	closed    bool
}

type World struct {
	cycle uint64

	regions    map[geo.RegionID]*region
	structures map[geo.Tile][]geo.Structure

	agents    []*Agent
	byName    map[string]*Agent
	occupancy map[geo.Tile]*Agent
}

var _ nav.World = (*World)(nil)

func New() *World {
	return &World{
		regions:    map[geo.RegionID]*region{},
		structures: map[geo.Tile][]geo.Structure{},
		byName:     map[string]*Agent{},
		occupancy:  map[geo.Tile]*Agent{},
	}
}

// Cycle is the number of completed Step calls.
func (w *World) Cycle() uint64 { return w.cycle }

// AddRegion creates an all-plain region. Adding an existing region is a no-op.
func (w *World) AddRegion(id geo.RegionID) {
	if w.regions[id] == nil {
		w.regions[id] = &region{}
	}
}

// AddRegions creates every region in the rectangle spanned by a and b.
func (w *World) AddRegions(a, b geo.RegionID) {
	for y := min(a.Y, b.Y); y <= max(a.Y, b.Y); y++ {
		for x := min(a.X, b.X); x <= max(a.X, b.X); x++ {
			w.AddRegion(geo.RegionID{X: x, Y: y})
		}
	}
}

func (w *World) Regions() []geo.RegionID {
	out := make([]geo.RegionID, 0, len(w.regions))
	for id := range w.regions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

func (w *World) SetTerrain(t geo.Tile, terrain geo.Terrain) {
	if r := w.regions[t.Region]; r != nil && t.InBounds() {
		r.terrain[t.Y*geo.RegionSize+t.X] = terrain
	}
}

// FillTerrain sets a rectangle of local coordinates inside one region.
func (w *World) FillTerrain(id geo.RegionID, x0, y0, x1, y1 int, terrain geo.Terrain) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			w.SetTerrain(geo.Tile{Region: id, X: x, Y: y}, terrain)
		}
	}
}

func (w *World) AddStructure(t geo.Tile, s geo.Structure) {
	w.structures[t] = append(w.structures[t], s)
}

func (w *World) ClearStructures(t geo.Tile) { delete(w.structures, t) }

func (w *World) SetHazardous(id geo.RegionID, v bool) {
	if r := w.regions[id]; r != nil {
		r.hazardous = v
	}
}

// SetClosed marks a region as unreachable for routing.
func (w *World) SetClosed(id geo.RegionID, v bool) {
	if r := w.regions[id]; r != nil {
		r.closed = v
	}
}

func (w *World) TerrainAt(t geo.Tile) geo.Terrain {
	r := w.regions[t.Region]
	if r == nil || !t.InBounds() {
		return geo.TerrainWall
	}
	return r.terrain[t.Y*geo.RegionSize+t.X]
}

func (w *World) StructuresAt(t geo.Tile) []geo.Structure { return w.structures[t] }

func (w *World) RegionLinearDistance(a, b geo.RegionID) int { return geo.LinearDistance(a, b) }

func (w *World) RegionNeighbors(id geo.RegionID) []geo.RegionID {
	var out []geo.RegionID
	for _, n := range id.Neighbors() {
		if w.regions[n] != nil {
			out = append(out, n)
		}
	}
	return out
}

func (w *World) IsRegionReachable(id geo.RegionID) bool {
	r := w.regions[id]
	return r != nil && !r.closed
}

func (w *World) IsRegionHazardous(id geo.RegionID) bool {
	r := w.regions[id]
	return r != nil && r.hazardous
}

// Passable reports whether an agent could stand on t.
func (w *World) Passable(t geo.Tile) bool {
	if w.TerrainAt(t) == geo.TerrainWall && !w.hasTraffic(t) {
		return false
	}
	for _, s := range w.structures[t] {
		if s.Impassable {
			return false
		}
	}
	return true
}

func (w *World) hasTraffic(t geo.Tile) bool {
	for _, s := range w.structures[t] {
		if s.TrafficCost > 0 && !s.Impassable {
			return true
		}
	}
	return false
}

func (w *World) AgentAt(t geo.Tile) (nav.Agent, bool) {
	a := w.occupancy[t]
	if a == nil {
		return nil, false
	}
	return a, true
}

func (w *World) AgentsIn(id geo.RegionID) []nav.Agent {
	var out []nav.Agent
	for _, a := range w.agents {
		if a.pos.Region == id {
			out = append(out, a)
		}
	}
	return out
}

// Spawn places a new agent on a free passable tile.
func (w *World) Spawn(name, role string, pos geo.Tile) (*Agent, error) {
	if _, dup := w.byName[name]; dup {
		return nil, fmt.Errorf("agent %q already exists", name)
	}
	if !w.Passable(pos) {
		return nil, fmt.Errorf("agent %q: tile %s is not passable", name, pos)
	}
	if other := w.occupancy[pos]; other != nil {
		return nil, fmt.Errorf("agent %q: tile %s held by %q", name, pos, other.name)
	}
	a := &Agent{name: name, role: role, pos: pos}
	w.agents = append(w.agents, a)
	w.byName[name] = a
	w.occupancy[pos] = a
	return a, nil
}

func (w *World) Agent(name string) (*Agent, bool) {
	a, ok := w.byName[name]
	return a, ok
}

// Agents returns every agent in spawn order.
func (w *World) Agents() []*Agent { return append([]*Agent(nil), w.agents...) }
