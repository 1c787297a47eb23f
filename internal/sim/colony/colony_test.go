package colony

import (
	"context"
	"errors"
	"testing"

	"colonynav.ai/internal/nav/geo"
	"colonynav.ai/internal/observerproto"
	"colonynav.ai/internal/persistence/segments"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.World.Side = 2
	cfg.World.Seed = 11
	cfg.Agents = 12
	return cfg
}

func newRunner(t *testing.T, cfg Config, host segments.Host) *Runner {
	t.Helper()
	r, err := New(cfg, host, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestFirstCycleAgentsAreBusy(t *testing.T) {
	r := newRunner(t, smallConfig(), nil)
	if err := r.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	s := r.Snapshot(false)
	if s.Travel.Busy != 12 || s.Travel.Moves != 0 {
		t.Fatalf("first cycle stats: %+v", s.Travel)
	}
	if err := r.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := r.Snapshot(false).Travel.Busy; got != 0 {
		t.Fatalf("busy after spawn cycle: %d", got)
	}
}

func TestRunMovesAgentsAndCachesCrossRegionPaths(t *testing.T) {
	r := newRunner(t, smallConfig(), nil)
	seen := 0
	err := r.Run(context.Background(), 250, 0, func(m observerproto.CycleMsg) {
		seen++
		if m.Cycle != uint64(seen) {
			t.Fatalf("cycle message %d for run step %d", m.Cycle, seen)
		}
		if len(m.Agents) != 12 {
			t.Fatalf("agents in snapshot: %d", len(m.Agents))
		}
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	tot := r.Totals()
	if tot.Cycles != 250 || tot.Moves == 0 || tot.Trips < 12 || tot.Arrivals == 0 {
		t.Fatalf("totals: %+v", tot)
	}
	if r.Cache().Len() == 0 {
		t.Fatalf("no path was cached")
	}
	for _, a := range r.World().Agents() {
		if !r.World().Passable(a.Pos()) {
			t.Fatalf("%s stands on an impassable tile %v", a.Name(), a.Pos())
		}
	}
}

func TestCachePersistsAcrossRestart(t *testing.T) {
	cfg := smallConfig()
	host := segments.NewMemoryHost(Limits(cfg.Tuning.Segments))

	first := newRunner(t, cfg, host)
	if err := first.Run(context.Background(), 201, 0, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if first.Snapshot(false).Pager.Written == 0 {
		t.Fatalf("path cache never flushed")
	}

	second := newRunner(t, cfg, host)
	for i := 0; i < 2; i++ {
		if err := second.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if second.Cache().Stats().Loaded == 0 {
		t.Fatalf("restarted cache loaded nothing")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRunner(t, smallConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	err := r.Run(ctx, 0, 0, func(m observerproto.CycleMsg) {
		if m.Cycle == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if got := r.Totals().Cycles; got != 3 {
		t.Fatalf("cycles=%d want 3", got)
	}
}

func TestBootstrapAndRegionCells(t *testing.T) {
	r := newRunner(t, smallConfig(), nil)
	b := r.Bootstrap()
	if len(b.WorldParams.Regions) != 4 || b.WorldParams.Agents != 12 || b.WorldParams.RegionSize != geo.RegionSize {
		t.Fatalf("bootstrap: %+v", b)
	}
	cells, ok := r.RegionCells(geo.RegionID{})
	if !ok || len(cells) != geo.RegionSize*geo.RegionSize {
		t.Fatalf("cells ok=%v len=%d", ok, len(cells))
	}
	mid := geo.RegionSize / 2
	if cells[mid*geo.RegionSize+mid] != 1 {
		t.Fatalf("road crossing cost=%d want 1", cells[mid*geo.RegionSize+mid])
	}
	if _, ok := r.RegionCells(geo.MustRegion("E9S9")); ok {
		t.Fatalf("unknown region should be missing")
	}
}

func TestInvalidTuningRejected(t *testing.T) {
	cfg := smallConfig()
	cfg.Tuning.Navigation.StuckRecoveryChance = 2
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatalf("expected validation error")
	}
}
