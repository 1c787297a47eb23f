package route

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"colonynav.ai/internal/nav/geo"
)

type gridMap struct {
	size        int
	hazardous   map[geo.RegionID]bool
	unreachable map[geo.RegionID]bool
}

func (m gridMap) RegionLinearDistance(a, b geo.RegionID) int { return geo.LinearDistance(a, b) }

func (m gridMap) RegionNeighbors(r geo.RegionID) []geo.RegionID {
	var out []geo.RegionID
	for _, n := range r.Neighbors() {
		if n.X >= 0 && n.Y >= 0 && n.X < m.size && n.Y < m.size {
			out = append(out, n)
		}
	}
	return out
}

func (m gridMap) IsRegionReachable(r geo.RegionID) bool { return !m.unreachable[r] }
func (m gridMap) IsRegionHazardous(r geo.RegionID) bool { return m.hazardous[r] }

func ids(names ...string) []geo.RegionID {
	out := make([]geo.RegionID, len(names))
	for i, n := range names {
		out[i] = geo.MustRegion(n)
	}
	return out
}

func TestStraightRoute(t *testing.T) {
	r := NewDijkstra(gridMap{size: 6})
	res, err := r.Route(geo.MustRegion("E0S0"), geo.MustRegion("E3S0"), Options{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if diff := cmp.Diff(ids("E0S0", "E1S0", "E2S0", "E3S0"), res.Regions); diff != "" {
		t.Fatalf("regions (-want +got):\n%s", diff)
	}
	if res.Cost != 3*baseCost {
		t.Fatalf("cost=%d want %d", res.Cost, 3*baseCost)
	}
	if !res.Allowed()[geo.MustRegion("E2S0")] || res.Allowed()[geo.MustRegion("E2S1")] {
		t.Fatalf("allowed set wrong: %v", res.Allowed())
	}
}

func TestHazardousRegionsAvoidedUnlessAllowedOrEndpoint(t *testing.T) {
	m := gridMap{size: 6, hazardous: map[geo.RegionID]bool{
		geo.MustRegion("E1S0"): true,
		geo.MustRegion("E3S0"): true,
	}}
	r := NewDijkstra(m)
	from, to := geo.MustRegion("E0S0"), geo.MustRegion("E3S0")

	res, err := r.Route(from, to, Options{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	for _, id := range res.Regions[1 : len(res.Regions)-1] {
		if m.hazardous[id] {
			t.Fatalf("route crosses hazardous %s: %v", id, res.Regions)
		}
	}
	if len(res.Regions) != 6 {
		t.Fatalf("detour length=%d want 6: %v", len(res.Regions), res.Regions)
	}

	res, err = r.Route(from, to, Options{AllowHazardous: true})
	if err != nil || len(res.Regions) != 4 {
		t.Fatalf("allowed hazardous route=%v err=%v", res.Regions, err)
	}
}

func TestUnreachableAndRestricted(t *testing.T) {
	from := geo.MustRegion("E0S0")
	m := gridMap{size: 6, unreachable: map[geo.RegionID]bool{geo.MustRegion("E4S4"): true}}
	r := NewDijkstra(m)
	if _, err := r.Route(from, geo.MustRegion("E4S4"), Options{}); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("unreachable destination err=%v", err)
	}
	if _, err := r.Route(from, geo.MustRegion("E3S0"), Options{RestrictDistance: 1}); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("restricted route err=%v", err)
	}

	walled := gridMap{size: 6, unreachable: map[geo.RegionID]bool{}}
	for y := 0; y < 6; y++ {
		walled.unreachable[geo.RegionID{X: 2, Y: y}] = true
	}
	if _, err := NewDijkstra(walled).Route(from, geo.MustRegion("E4S0"), Options{}); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("cut-off destination err=%v", err)
	}
}

func TestPreferHighways(t *testing.T) {
	r := NewDijkstra(gridMap{size: 6})
	from, to := geo.MustRegion("E1S1"), geo.MustRegion("E1S5")
	plain, err := r.Route(from, to, Options{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if diff := cmp.Diff(ids("E1S1", "E1S2", "E1S3", "E1S4", "E1S5"), plain.Regions); diff != "" {
		t.Fatalf("plain route (-want +got):\n%s", diff)
	}

	hw, err := r.Route(from, to, Options{PreferHighways: true, HighwayInterval: 10})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if hw.Regions[1] != geo.MustRegion("E0S1") {
		t.Fatalf("expected the route to join the E0 highway, got %v", hw.Regions)
	}
	if hw.Cost >= 4*baseCost {
		t.Fatalf("highway route cost=%d not cheaper than %d", hw.Cost, 4*baseCost)
	}
}

func TestSameRegion(t *testing.T) {
	res, err := NewDijkstra(gridMap{size: 2}).Route(geo.MustRegion("E1S1"), geo.MustRegion("E1S1"), Options{})
	if err != nil || len(res.Regions) != 1 {
		t.Fatalf("same region route=%v err=%v", res.Regions, err)
	}
}
