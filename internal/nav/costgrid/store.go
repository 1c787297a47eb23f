package costgrid

import "colonynav.ai/internal/nav/geo"

// Source is the slice of the world query API needed to build grids.
type Source interface {
	TerrainAt(t geo.Tile) geo.Terrain
	StructuresAt(t geo.Tile) []geo.Structure
}

// Occupant is an agent standing on a tile when the dynamic layer is built.
// Active occupants have already been driven by the engine this cycle.
type Occupant struct {
	Pos    geo.Tile
	Role   string
	Active bool
}

type StoreStats struct {
	StructureBuilds uint64 `json:"structure_builds"`
	DynamicBuilds   uint64 `json:"dynamic_builds"`
	Hits            uint64 `json:"hits"`
}

type structureEntry struct {
	grid    *Grid
	builtAt uint64
}

type dynamicKey struct {
	region geo.RegionID
	role   string
}

type dynamicEntry struct {
	grid    *Grid
	builtAt uint64
}

// Store caches two layers per region. Structure grids live until a forced
// refresh (at most one per region per cycle); dynamic grids live for the cycle
// they were built in.
type Store struct {
	src   Source
	cycle uint64

	structure map[geo.RegionID]*structureEntry
	dynamic   map[dynamicKey]*dynamicEntry

	stats StoreStats
}

func NewStore(src Source) *Store {
	return &Store{
		src:       src,
		structure: map[geo.RegionID]*structureEntry{},
		dynamic:   map[dynamicKey]*dynamicEntry{},
	}
}

// SetCycle moves the store to a new cycle and drops stale dynamic layers.
func (s *Store) SetCycle(c uint64) {
	if c == s.cycle {
		return
	}
	s.cycle = c
	for k, e := range s.dynamic {
		if e.builtAt != c {
			delete(s.dynamic, k)
		}
	}
}

// Structure returns the terrain + structure layer. fresh forces a rebuild
// unless the grid was already rebuilt this cycle.
func (s *Store) Structure(region geo.RegionID, fresh bool) *Grid {
	e := s.structure[region]
	if e != nil && (!fresh || e.builtAt == s.cycle) {
		s.stats.Hits++
		return e.grid
	}
	g := s.buildStructure(region)
	s.structure[region] = &structureEntry{grid: g, builtAt: s.cycle}
	s.stats.StructureBuilds++
	return g
}

func (s *Store) buildStructure(region geo.RegionID) *Grid {
	g := New()
	for y := 0; y < geo.RegionSize; y++ {
		for x := 0; x < geo.RegionSize; x++ {
			t := geo.Tile{Region: region, X: x, Y: y}
			if s.src.TerrainAt(t) == geo.TerrainWall {
				g.Set(x, y, Impassable)
			}
			blocked := false
			for _, st := range s.src.StructuresAt(t) {
				if st.Impassable {
					blocked = true
					continue
				}
				if st.TrafficCost == 0 || blocked {
					continue
				}
				// Roads discount plain and swamp; a tunnel opens a wall.
				if cur := g.Get(x, y); cur == Default || cur == Impassable || st.TrafficCost < cur {
					g.Set(x, y, st.TrafficCost)
				}
			}
			if blocked {
				g.Set(x, y, Impassable)
			}
		}
	}
	return g
}

// Dynamic returns the structure layer plus agents, built once per region and
// role per cycle; the first caller builds it and later callers share it.
// Active occupants of the same role are left passable so the engine can swap
// with them. fresh only applies to the structure layer underneath.
func (s *Store) Dynamic(region geo.RegionID, role string, fresh bool, occupants func(geo.RegionID) []Occupant) *Grid {
	k := dynamicKey{region: region, role: role}
	if e := s.dynamic[k]; e != nil && e.builtAt == s.cycle {
		s.stats.Hits++
		return e.grid
	}
	g := s.Structure(region, fresh).Clone()
	if occupants != nil {
		for _, o := range occupants(region) {
			if o.Pos.Region != region {
				continue
			}
			if o.Active && o.Role == role {
				continue
			}
			g.Set(o.Pos.X, o.Pos.Y, Impassable)
		}
	}
	s.dynamic[k] = &dynamicEntry{grid: g, builtAt: s.cycle}
	s.stats.DynamicBuilds++
	return g
}

// Invalidate forgets every cached layer of region.
func (s *Store) Invalidate(region geo.RegionID) {
	delete(s.structure, region)
	for k := range s.dynamic {
		if k.region == region {
			delete(s.dynamic, k)
		}
	}
}

func (s *Store) Stats() StoreStats { return s.stats }
