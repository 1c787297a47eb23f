package travel

import (
	"math/rand"
	"testing"

	"go.uber.org/zap"

	"colonynav.ai/internal/nav/geo"
	"colonynav.ai/internal/nav/gridsearch"
	"colonynav.ai/internal/nav/pathcache"
	"colonynav.ai/internal/persistence/segments"
	"colonynav.ai/internal/sim/cycle"
	"colonynav.ai/internal/sim/tuning"
	"colonynav.ai/internal/sim/world"
)

type harness struct {
	t     *testing.T
	w     *world.World
	e     *Engine
	cache *pathcache.Cache
	clock *cycle.Clock
}

type harnessOpt func(*tuning.Navigation, *Deps)

func withLogger(l *zap.Logger) harnessOpt {
	return func(_ *tuning.Navigation, d *Deps) { d.Logger = l }
}

func withPager(p *segments.Pager) harnessOpt {
	return func(_ *tuning.Navigation, d *Deps) { d.Pager = p }
}

func withSearcher(sr gridsearch.Searcher) harnessOpt {
	return func(_ *tuning.Navigation, d *Deps) { d.Searcher = sr }
}

func withNav(fn func(*tuning.Navigation)) harnessOpt {
	return func(n *tuning.Navigation, _ *Deps) { fn(n) }
}

func newHarness(t *testing.T, w *world.World, opts ...harnessOpt) *harness {
	t.Helper()
	cfg := tuning.Defaults().Navigation
	cache := pathcache.New(pathcache.DefaultConfig(), nil)
	deps := Deps{World: w, Cache: cache, Rand: rand.New(rand.NewSource(7))}
	for _, o := range opts {
		o(&cfg, &deps)
	}
	return &harness{t: t, w: w, e: New(cfg, deps), cache: cache, clock: cycle.NewClock(0)}
}

// step runs one full cycle: drive, engine housekeeping, world resolution.
func (h *harness) step(drive func()) world.StepStats {
	h.t.Helper()
	c := h.clock.Advance()
	h.e.BeginCycle(c)
	drive()
	if err := h.e.EndCycle(c); err != nil {
		h.t.Fatalf("end cycle %d: %v", c.Number(), err)
	}
	return h.w.Step()
}

func (h *harness) spawn(name, role string, at geo.Tile) *world.Agent {
	h.t.Helper()
	a, err := h.w.Spawn(name, role, at)
	if err != nil {
		h.t.Fatalf("spawn %s: %v", name, err)
	}
	return a
}

func stateOf(t *testing.T, a *world.Agent) State {
	t.Helper()
	st, err := DecodeState(a.TravelMemory())
	if err != nil {
		t.Fatalf("decode %s: %v", a.Name(), err)
	}
	return st
}

func openWorld(regions ...string) *world.World {
	w := world.New()
	for _, r := range regions {
		w.AddRegion(geo.MustRegion(r))
	}
	return w
}

// laneWorld is one region of swamp with a single plain row at y=10, so the
// cheapest path between two tiles on that row is the row itself.
func laneWorld() *world.World { return laneWorldAt(10, "E1S1") }

// laneWorldAt lays the plain row at y across every given region.
func laneWorldAt(y int, regions ...string) *world.World {
	w := openWorld(regions...)
	for _, r := range regions {
		id := geo.MustRegion(r)
		w.FillTerrain(id, 0, 0, geo.RegionSize-1, geo.RegionSize-1, geo.TerrainSwamp)
		w.FillTerrain(id, 0, y, geo.RegionSize-1, y, geo.TerrainPlain)
	}
	return w
}

// pathTiles lists the tiles a stored path visits after pos.
func pathTiles(pos geo.Tile, path []geo.Direction) []geo.Tile {
	out := make([]geo.Tile, 0, len(path))
	for _, d := range path {
		pos = pos.Step(d)
		out = append(out, pos)
	}
	return out
}
