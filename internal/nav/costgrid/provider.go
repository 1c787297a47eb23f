package costgrid

import "colonynav.ai/internal/nav/geo"

// Request describes the grid one search needs for one region.
type Request struct {
	Region geo.RegionID
	Role   string

	// Dynamic adds agents to the grid.
	Dynamic bool
	// Fresh forces the cached layers to be rebuilt.
	Fresh bool
	// IgnoreStructures hands out an empty grid (terrain only).
	IgnoreStructures bool
}

// Provider supplies cost grids. ok=false marks the whole region impassable.
// Returned grids are shared and must not be modified; decorators clone.
type Provider interface {
	Grid(req Request) (g *Grid, ok bool)
}

type ProviderFunc func(req Request) (*Grid, bool)

func (f ProviderFunc) Grid(req Request) (*Grid, bool) { return f(req) }

// Decorator wraps a provider, e.g. a caller hook that edits grids.
type Decorator func(next Provider) Provider

// Chain applies decorators so the first one listed is the outermost.
func Chain(p Provider, ds ...Decorator) Provider {
	for i := len(ds) - 1; i >= 0; i-- {
		if ds[i] != nil {
			p = ds[i](p)
		}
	}
	return p
}

var emptyGrid = New()

// Provider returns the default provider backed by the store. occupants feeds
// the dynamic layer.
func (s *Store) Provider(occupants func(geo.RegionID) []Occupant) Provider {
	return ProviderFunc(func(req Request) (*Grid, bool) {
		switch {
		case req.IgnoreStructures:
			if !req.Dynamic {
				return emptyGrid, true
			}
			g := New()
			if occupants != nil {
				for _, o := range occupants(req.Region) {
					if o.Pos.Region == req.Region && !(o.Active && o.Role == req.Role) {
						g.Set(o.Pos.X, o.Pos.Y, Impassable)
					}
				}
			}
			return g, true
		case req.Dynamic:
			return s.Dynamic(req.Region, req.Role, req.Fresh, occupants), true
		default:
			return s.Structure(req.Region, req.Fresh), true
		}
	})
}

// WithObstacles marks extra tiles impassable on a copy of the grid.
func WithObstacles(tiles []geo.Tile) Decorator {
	if len(tiles) == 0 {
		return nil
	}
	byRegion := map[geo.RegionID][]geo.Tile{}
	for _, t := range tiles {
		byRegion[t.Region] = append(byRegion[t.Region], t)
	}
	return func(next Provider) Provider {
		return ProviderFunc(func(req Request) (*Grid, bool) {
			g, ok := next.Grid(req)
			if !ok || g == nil {
				return g, ok
			}
			extra := byRegion[req.Region]
			if len(extra) == 0 {
				return g, true
			}
			g = g.Clone()
			for _, t := range extra {
				g.Set(t.X, t.Y, Impassable)
			}
			return g, true
		})
	}
}

// Restrict blocks every region not in allowed. A nil set allows everything.
func Restrict(allowed map[geo.RegionID]bool) Decorator {
	if allowed == nil {
		return nil
	}
	return func(next Provider) Provider {
		return ProviderFunc(func(req Request) (*Grid, bool) {
			if !allowed[req.Region] {
				return nil, false
			}
			return next.Grid(req)
		})
	}
}
