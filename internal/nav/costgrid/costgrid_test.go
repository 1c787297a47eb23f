package costgrid

import (
	"testing"

	"colonynav.ai/internal/nav/geo"
)

type fakeSource struct {
	terrain    map[geo.Tile]geo.Terrain
	structures map[geo.Tile][]geo.Structure
	reads      int
}

func (f *fakeSource) TerrainAt(t geo.Tile) geo.Terrain {
	f.reads++
	return f.terrain[t]
}

func (f *fakeSource) StructuresAt(t geo.Tile) []geo.Structure { return f.structures[t] }

var room = geo.MustRegion("E1S1")

func tile(x, y int) geo.Tile { return geo.Tile{Region: room, X: x, Y: y} }

func newFakeSource() *fakeSource {
	return &fakeSource{
		terrain: map[geo.Tile]geo.Terrain{
			tile(1, 1): geo.TerrainWall,
			tile(2, 2): geo.TerrainSwamp,
			tile(3, 3): geo.TerrainWall,
		},
		structures: map[geo.Tile][]geo.Structure{
			tile(2, 2): {{Kind: "road", TrafficCost: 1}},
			tile(3, 3): {{Kind: "tunnel", TrafficCost: 1}},
			tile(4, 4): {{Kind: "road", TrafficCost: 1}, {Kind: "rampart", Impassable: true}},
			tile(5, 5): {{Kind: "container"}},
		},
	}
}

func TestStructureGridLayers(t *testing.T) {
	s := NewStore(newFakeSource())
	g := s.Structure(room, false)

	cases := []struct {
		x, y int
		want uint8
	}{
		{1, 1, Impassable},
		{2, 2, 1},
		{3, 3, 1},
		{4, 4, Impassable},
		{5, 5, Default},
		{9, 9, Default},
	}
	for _, c := range cases {
		if got := g.Get(c.x, c.y); got != c.want {
			t.Fatalf("cell (%d,%d)=%d want %d", c.x, c.y, got, c.want)
		}
	}
}

func TestStructureGridCachedUntilForcedOncePerCycle(t *testing.T) {
	src := newFakeSource()
	s := NewStore(src)
	s.SetCycle(1)
	first := s.Structure(room, false)
	if again := s.Structure(room, false); again != first {
		t.Fatalf("expected cached grid")
	}
	s.SetCycle(2)
	fresh := s.Structure(room, true)
	if fresh == first {
		t.Fatalf("forced refresh should rebuild")
	}
	if again := s.Structure(room, true); again != fresh {
		t.Fatalf("second forced refresh in one cycle should reuse")
	}
	if got := s.Stats().StructureBuilds; got != 2 {
		t.Fatalf("structure builds=%d want 2", got)
	}
}

func TestDynamicGridOncePerCycleAndRoleAware(t *testing.T) {
	s := NewStore(newFakeSource())
	calls := 0
	occ := func(geo.RegionID) []Occupant {
		calls++
		return []Occupant{
			{Pos: tile(10, 10), Role: "hauler", Active: true},
			{Pos: tile(11, 10), Role: "hauler", Active: false},
			{Pos: tile(12, 10), Role: "miner", Active: true},
		}
	}
	s.SetCycle(7)
	g := s.Dynamic(room, "hauler", false, occ)
	if g.Get(10, 10) != Default {
		t.Fatalf("active same-role agent should stay passable")
	}
	if g.Get(11, 10) != Impassable || g.Get(12, 10) != Impassable {
		t.Fatalf("idle and foreign-role agents should block")
	}
	if again := s.Dynamic(room, "hauler", true, occ); again != g || calls != 1 {
		t.Fatalf("dynamic layer rebuilt within one cycle (calls=%d)", calls)
	}
	miner := s.Dynamic(room, "miner", false, occ)
	if miner.Get(10, 10) != Impassable || miner.Get(12, 10) != Default {
		t.Fatalf("miner view wrong")
	}
	if base := s.Structure(room, false); base.Get(10, 10) != Default {
		t.Fatalf("dynamic build leaked into structure grid")
	}
	s.SetCycle(8)
	if s.Dynamic(room, "hauler", false, occ) == g {
		t.Fatalf("dynamic layer should expire with the cycle")
	}
}

func TestDecorators(t *testing.T) {
	s := NewStore(newFakeSource())
	other := geo.MustRegion("E2S1")
	p := Chain(s.Provider(nil),
		Restrict(map[geo.RegionID]bool{room: true}),
		WithObstacles([]geo.Tile{tile(20, 20)}),
	)
	g, ok := p.Grid(Request{Region: room})
	if !ok || g.Get(20, 20) != Impassable {
		t.Fatalf("extra obstacle missing")
	}
	if s.Structure(room, false).Get(20, 20) != Default {
		t.Fatalf("obstacle written into the shared grid")
	}
	if _, ok := p.Grid(Request{Region: other}); ok {
		t.Fatalf("region outside the allowed set should be blocked")
	}

	hook := Decorator(func(next Provider) Provider {
		return ProviderFunc(func(req Request) (*Grid, bool) {
			g, ok := next.Grid(req)
			g = g.Clone()
			g.Set(0, 0, 7)
			return g, ok
		})
	})
	g, _ = Chain(s.Provider(nil), hook).Grid(Request{Region: room, IgnoreStructures: true})
	if g.Get(0, 0) != 7 || g.Get(1, 1) != Default {
		t.Fatalf("hook or ignore-structures grid wrong: %d %d", g.Get(0, 0), g.Get(1, 1))
	}
}
