package gridsearch

import (
	"testing"

	"colonynav.ai/internal/nav/costgrid"
	"colonynav.ai/internal/nav/geo"
)

func open(geo.RegionID) (*costgrid.Grid, bool) { return costgrid.New(), true }

func TestAdjacentGoalShortPath(t *testing.T) {
	a := NewAStar(nil)
	from := geo.At("E1S1", 10, 10)
	to := geo.At("E1S1", 12, 10)
	res := a.Search(from, Goal{Pos: to}, open, Options{PlainCost: 2})
	if res.Incomplete || len(res.Path) != 2 {
		t.Fatalf("path=%v incomplete=%v", res.Path, res.Incomplete)
	}
	if res.Path[1] != to || res.Cost != 4 {
		t.Fatalf("end=%v cost=%d", res.Path[1], res.Cost)
	}
	if got := a.Search(from, Goal{Pos: to, Range: 2}, open, Options{}); len(got.Path) != 0 || got.Incomplete {
		t.Fatalf("already in range: %+v", got)
	}
}

func TestSwampDetourAndWalls(t *testing.T) {
	terrain := map[geo.Tile]geo.Terrain{}
	for y := 11; y <= 13; y++ {
		for x := 5; x <= 15; x++ {
			terrain[geo.At("E1S1", x, y)] = geo.TerrainSwamp
		}
	}
	for x := 0; x <= 4; x++ {
		terrain[geo.At("E1S1", x, 12)] = geo.TerrainWall
	}
	a := NewAStar(func(t geo.Tile) geo.Terrain { return terrain[t] })
	res := a.Search(geo.At("E1S1", 10, 10), Goal{Pos: geo.At("E1S1", 10, 14)}, open,
		Options{PlainCost: 2, SwampCost: 10, HeuristicWeight: 1})
	if res.Incomplete {
		t.Fatalf("incomplete: %+v", res)
	}
	for _, tile := range res.Path {
		if terrain[tile] != geo.TerrainPlain {
			t.Fatalf("path crosses %s at %v", terrain[tile], tile)
		}
	}
	if res.Cost != 28 {
		t.Fatalf("cost=%d want 28", res.Cost)
	}
}

func TestCrossRegionGridCalledOncePerRegion(t *testing.T) {
	calls := map[geo.RegionID]int{}
	grids := func(id geo.RegionID) (*costgrid.Grid, bool) {
		calls[id]++
		return costgrid.New(), true
	}
	to := geo.At("E1S0", 2, 10)
	res := NewAStar(nil).Search(geo.At("E0S0", 47, 10), Goal{Pos: to}, grids, Options{})
	if res.Incomplete || res.Path[len(res.Path)-1] != to {
		t.Fatalf("path=%v", res.Path)
	}
	if len(res.Path) != 5 {
		t.Fatalf("len=%d want 5", len(res.Path))
	}
	for id, n := range calls {
		if n != 1 {
			t.Fatalf("grid for %s requested %d times", id, n)
		}
	}
}

func TestBlockedRegionReturnsClosest(t *testing.T) {
	blocked := geo.MustRegion("E1S0")
	grids := func(id geo.RegionID) (*costgrid.Grid, bool) {
		if id == blocked {
			return nil, false
		}
		return costgrid.New(), true
	}
	res := NewAStar(nil).Search(geo.At("E0S0", 45, 10), Goal{Pos: geo.At("E1S0", 5, 10)}, grids, Options{MaxOps: 50000})
	if !res.Incomplete {
		t.Fatalf("expected incomplete")
	}
	end := res.Path[len(res.Path)-1]
	if end.Region != geo.MustRegion("E0S0") || end.X != 49 {
		t.Fatalf("closest tile=%v", end)
	}
}

func TestOpsLimit(t *testing.T) {
	g := costgrid.New()
	for y := 0; y < geo.RegionSize; y++ {
		if y != 45 {
			g.Set(20, y, costgrid.Impassable)
		}
	}
	grids := func(geo.RegionID) (*costgrid.Grid, bool) { return g, true }
	res := NewAStar(nil).Search(geo.At("E1S1", 10, 5), Goal{Pos: geo.At("E1S1", 30, 5)}, grids, Options{MaxOps: 10})
	if !res.Incomplete || res.Ops != 10 {
		t.Fatalf("ops=%d incomplete=%v", res.Ops, res.Incomplete)
	}
}
