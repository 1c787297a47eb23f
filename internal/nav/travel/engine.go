// Package travel is the movement primitive every behavior calls: GoTo steers
// one agent one step toward a destination per cycle, reusing shared cached
// paths where it can and searching (region route first, then tiles) where it
// must.
package travel

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"colonynav.ai/internal/nav"
	"colonynav.ai/internal/nav/costgrid"
	"colonynav.ai/internal/nav/geo"
	"colonynav.ai/internal/nav/gridsearch"
	"colonynav.ai/internal/nav/pathcache"
	"colonynav.ai/internal/nav/route"
	"colonynav.ai/internal/persistence/segments"
	"colonynav.ai/internal/sim/budget"
	"colonynav.ai/internal/sim/cycle"
	"colonynav.ai/internal/sim/tuning"
)

// Deps are the collaborators of an Engine. Only World is required.
type Deps struct {
	World    nav.World
	Searcher gridsearch.Searcher
	Router   route.Router
	// Cache and Pager are optional; with both set the cache is loaded from
	// and flushed to segments.
	Cache  *pathcache.Cache
	Pager  *segments.Pager
	Meter  *budget.Meter
	Rand   *rand.Rand
	Logger *zap.Logger
}

// Stats counts what GoTo did during one cycle.
type Stats struct {
	Cycle      uint64 `json:"cycle"`
	Calls      int    `json:"calls"`
	Moves      int    `json:"moves"`
	Arrived    int    `json:"arrived"`
	Tired      int    `json:"tired"`
	Busy       int    `json:"busy"`
	NoPath     int    `json:"no_path"`
	Blocked    int    `json:"blocked"`
	Swaps      int    `json:"swaps"`
	Searches   int    `json:"searches"`
	CacheHits  int    `json:"cache_hits"`
	Recoveries int    `json:"recoveries"`
	SearchOps  int    `json:"search_ops"`
	Incomplete int    `json:"incomplete"`
}

// Engine drives GoTo for every agent of one world. It is not safe for
// concurrent use; a cycle runs BeginCycle, the GoTo calls, then EndCycle.
type Engine struct {
	cfg      tuning.Navigation
	world    nav.World
	searcher gridsearch.Searcher
	router   route.Router
	store    *costgrid.Store
	cache    *pathcache.Cache
	pager    *segments.Pager
	meter    *budget.Meter
	rng      *rand.Rand
	log      *zap.Logger

	cycle uint64
	stats Stats
	last  Stats
}

// New builds an engine over deps.World, filling the other deps with defaults.
func New(cfg tuning.Navigation, deps Deps) *Engine {
	if deps.World == nil {
		panic("travel: nil world")
	}
	e := &Engine{
		cfg:      cfg,
		world:    deps.World,
		searcher: deps.Searcher,
		router:   deps.Router,
		store:    costgrid.NewStore(deps.World),
		cache:    deps.Cache,
		pager:    deps.Pager,
		meter:    deps.Meter,
		rng:      deps.Rand,
		log:      deps.Logger,
	}
	if e.searcher == nil {
		e.searcher = gridsearch.NewAStar(deps.World.TerrainAt)
	}
	if e.router == nil {
		e.router = route.NewDijkstra(deps.World)
	}
	if e.meter == nil {
		e.meter = budget.NewMeter(tuning.Defaults().Budget.CycleOpLimit, tuning.Defaults().Budget.Smoothing)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(1))
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	e.log = e.log.Named("travel")
	if e.cache != nil && e.pager != nil {
		e.cache.Attach(e.pager)
	}
	return e
}

// BeginCycle must run before the first GoTo of a cycle.
func (e *Engine) BeginCycle(c *cycle.Cycle) {
	e.cycle = c.Number()
	e.store.SetCycle(e.cycle)
	if e.cache != nil {
		e.cache.SetCycle(e.cycle)
	}
	e.stats = Stats{Cycle: e.cycle}
}

// EndCycle runs the once-per-cycle housekeeping: cache maintenance and
// flush, the segment tick and the budget sample. A second call for the same
// cycle does nothing and returns segments.ErrAlreadyTicked.
func (e *Engine) EndCycle(c *cycle.Cycle) error {
	if c.Number() != e.cycle {
		return fmt.Errorf("end cycle %d while in cycle %d", c.Number(), e.cycle)
	}
	if err := c.Claim("travel"); err != nil {
		return fmt.Errorf("%w: %w", segments.ErrAlreadyTicked, err)
	}
	if e.cache != nil && e.cache.Maintain(e.cycle, e.rng) && e.pager != nil {
		if err := e.cache.Flush(e.pager); err != nil {
			e.log.Warn("flush path cache", zap.Error(err))
		}
	}
	if e.pager != nil {
		if err := e.pager.Tick(c); err != nil {
			return err
		}
	}
	e.meter.Close()
	e.last = e.stats
	return nil
}

// Pressure is the smoothed share of the per-cycle op budget spent on
// searching. Callers shed long trips when it nears 1.
func (e *Engine) Pressure() float64 { return e.meter.Pressure() }

// Stats returns the counters of the last completed cycle.
func (e *Engine) Stats() Stats { return e.last }

// Current returns the counters of the cycle in progress.
func (e *Engine) Current() Stats { return e.stats }

func (e *Engine) Budget() budget.Snapshot { return e.meter.Snapshot() }

func (e *Engine) Grids() costgrid.StoreStats { return e.store.Stats() }

// StructureGrid returns the cached terrain and structure layer of region.
// The grid is shared; callers must not modify it.
func (e *Engine) StructureGrid(region geo.RegionID) *costgrid.Grid {
	return e.store.Structure(region, false)
}

// occupants feeds the dynamic grid layer. Agents already driven this cycle
// count as active.
func (e *Engine) occupants(region geo.RegionID) []costgrid.Occupant {
	agents := e.world.AgentsIn(region)
	out := make([]costgrid.Occupant, 0, len(agents))
	for _, a := range agents {
		st, _ := DecodeState(a.TravelMemory())
		out = append(out, costgrid.Occupant{Pos: a.Pos(), Role: a.Role(), Active: st.DrivenAt(e.cycle)})
	}
	return out
}
