package travel

import (
	"go.uber.org/zap"

	"colonynav.ai/internal/nav"
	"colonynav.ai/internal/nav/costgrid"
	"colonynav.ai/internal/nav/geo"
)

// GoTo steers agent one step toward dest and emits at most one move.
//
// Arrived agents are left untouched, so calling GoTo again at the destination
// costs nothing. Otherwise the agent follows its stored path, refilled from
// the shared cache or a fresh search when empty. An agent that has not moved
// for more than StuckThreshold cycles may drop its path and search again
// around the agents in its region.
func (e *Engine) GoTo(a nav.Agent, dest geo.Tile, opts Options) Result {
	e.stats.Calls++
	if a.Spawning() {
		e.stats.Busy++
		return Result{Status: StatusBusy}
	}
	if a.Fatigue() > 0 {
		e.stats.Tired++
		return Result{Status: StatusTired}
	}
	pos := a.Pos()
	reach := opts.Range.or(e.cfg.DefaultRange)
	if geo.Range(pos, dest) <= reach {
		e.stats.Arrived++
		return Result{Status: StatusOK}
	}

	st, err := DecodeState(a.TravelMemory())
	if err != nil {
		e.log.Debug("reset travel state", zap.String("agent", a.Name()), zap.Error(err))
		st = State{}
	}

	if !st.HasDest || st.Dest != dest {
		e.retarget(&st, dest, opts)
	}

	e.advance(&st, pos)

	var res Result
	fresh := opts.ForceFreshSearch
	if fresh {
		st.Path, st.FromCache = nil, false
	}

	if stuckAt(st, pos) {
		st.StuckCount++
	} else {
		st.StuckCount = 0
	}
	if st.FromCache && len(st.Path) > 0 && st.HasLast && pos == st.Last {
		// A shared path whose step failed is not worth another try.
		st.Path, st.FromCache = nil, false
		fresh = true
	}

	recovering := false
	threshold := e.cfg.StuckThreshold
	if opts.StuckThreshold > 0 {
		threshold = opts.StuckThreshold
	}
	chance := e.cfg.StuckRecoveryChance
	if opts.RepathChance > 0 {
		chance = opts.RepathChance
	}
	if !opts.ForceFreshSearch && st.StuckCount > threshold && e.rng.Float64() < chance {
		st.Path, st.FromCache = nil, false
		fresh, recovering = true, true
		res.Recovered = true
		e.stats.Recoveries++
	}

	if len(st.Path) == 0 {
		if !e.fillPath(a, &st, pos, dest, reach, opts, fresh, recovering, &res) {
			e.stats.NoPath++
			e.persist(a, &st, pos, geo.DirNone)
			res.Status = StatusNoPath
			return res
		}
	}

	dir := st.Path[0]
	res.PathLen = len(st.Path)
	res.FromCache = st.FromCache
	if !e.clearWay(a, pos.Step(dir), dir, opts, &res) {
		e.stats.Blocked++
		e.persist(a, &st, pos, geo.DirNone)
		res.Status = StatusOK
		return res
	}
	a.Move(dir)
	e.stats.Moves++
	res.Moved, res.Direction = true, dir
	e.persist(a, &st, pos, dir)
	res.Status = StatusOK
	return res
}

// stuckAt reports whether the agent made no progress since last cycle: it
// stayed put, or it only crossed a region exit, which is where agents bounce
// back and forth between two edge tiles. Walking along an edge row is
// progress.
func stuckAt(st State, pos geo.Tile) bool {
	if !st.HasLast {
		return false
	}
	if pos == st.Last {
		return true
	}
	return pos.IsBoundary() && st.Last.IsBoundary() && pos.Region != st.Last.Region
}

// retarget handles a destination change. A path toward a target that moved
// one tile is patched with a single step; anything else is dropped.
func (e *Engine) retarget(st *State, dest geo.Tile, opts Options) {
	if opts.MovingTarget && st.HasDest && len(st.Path) > 0 && geo.Range(st.Dest, dest) == 1 {
		st.Path = append(st.Path, geo.DirectionTo(st.Dest, dest))
	} else {
		st.Path, st.FromCache = nil, false
	}
	st.Dest, st.HasDest = dest, true
	st.SearchCost = 0
}

// advance consumes the step the agent took last cycle. An agent that ended
// up somewhere its path did not lead has lost the path.
func (e *Engine) advance(st *State, pos geo.Tile) {
	if !st.HasLast || pos == st.Last || len(st.Path) == 0 {
		return
	}
	if st.LastDir != geo.DirNone && st.Path[0] == st.LastDir && st.Last.Step(st.LastDir) == pos {
		st.Path = st.Path[1:]
		return
	}
	st.Path, st.FromCache = nil, false
}

// fillPath refills an empty path from the cache or a search. It returns false
// when no usable path came out.
func (e *Engine) fillPath(a nav.Agent, st *State, pos, dest geo.Tile, reach int, opts Options, fresh, recovering bool, res *Result) bool {
	if !fresh && reach == 0 && geo.Range(pos, dest) == 1 && e.enterable(dest, opts) {
		st.Path, st.FromCache = []geo.Direction{geo.DirectionTo(pos, dest)}, false
		return true
	}
	if !fresh && e.cache != nil {
		if path, ok := e.cache.Get(pos, dest, reach); ok {
			st.Path, st.FromCache = path, true
			e.stats.CacheHits++
			return true
		}
	}
	highWater := e.cfg.SearchHighWater
	if highWater > 0 && st.SearchCost >= highWater {
		res.BudgetExceeded = true
		return false
	}

	out := e.search(a, pos, dest, reach, opts, fresh, recovering)
	res.Searched = true
	res.SearchOps = out.ops
	res.Incomplete = out.incomplete
	e.stats.Searches++
	e.stats.SearchOps += out.ops
	if out.incomplete {
		e.stats.Incomplete++
	}
	e.meter.Charge(out.ops)

	before := st.SearchCost
	st.SearchCost += out.ops
	if highWater > 0 && before < highWater && st.SearchCost >= highWater {
		res.BudgetExceeded = true
		e.log.Warn("search budget exhausted for destination",
			zap.String("agent", a.Name()),
			zap.Stringer("from", pos),
			zap.Stringer("dest", dest),
			zap.Int("ops", st.SearchCost),
		)
	}

	if len(out.path) == 0 {
		return false
	}
	st.Path, st.FromCache = out.path, false
	if !out.incomplete && e.cache != nil && out.end.Region != pos.Region {
		e.cache.Put(pos, dest, out.path)
	}
	return true
}

// enterable reports whether a tile can be stepped on at all, ignoring agents.
func (e *Engine) enterable(t geo.Tile, opts Options) bool {
	if !e.world.IsRegionReachable(t.Region) {
		return false
	}
	for _, o := range opts.ExtraObstacles {
		if o == t {
			return false
		}
	}
	if opts.IgnoreStructures {
		return e.world.TerrainAt(t) != geo.TerrainWall
	}
	return e.store.Structure(t.Region, false).Get(t.X, t.Y) != costgrid.Impassable
}

// clearWay decides whether the agent may step onto target. A free tile or
// one whose occupant is already leaving is fine. A waiting occupant of the
// same role is swapped back onto our tile, or pushed ahead.
func (e *Engine) clearWay(a nav.Agent, target geo.Tile, dir geo.Direction, opts Options, res *Result) bool {
	occ, ok := e.world.AgentAt(target)
	if !ok || occ.Name() == a.Name() {
		return true
	}
	ost, err := DecodeState(occ.TravelMemory())
	if err != nil {
		res.Blocked = true
		return false
	}
	if ost.DrivenAt(e.cycle) && ost.LastDir != geo.DirNone {
		return true
	}
	if occ.Role() != a.Role() || !ost.DrivenAt(e.cycle) || occ.Fatigue() > 0 {
		res.Blocked = true
		return false
	}

	shove := dir.Opposite()
	if opts.PushOccupants {
		shove = dir
	}
	occ.Move(shove)
	if len(ost.Path) > 0 && ost.Path[0] != shove {
		ost.Path, ost.FromCache = nil, false
	}
	ost.LastDir = shove
	occ.SetTravelMemory(ost.Encode())
	res.Swapped = true
	e.stats.Swaps++
	return true
}

func (e *Engine) persist(a nav.Agent, st *State, pos geo.Tile, dir geo.Direction) {
	st.Last, st.HasLast = pos, true
	st.MovedAt = e.cycle
	st.LastDir = dir
	a.SetTravelMemory(st.Encode())
}
