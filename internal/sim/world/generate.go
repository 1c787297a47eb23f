package world

import (
	"math/rand"

	"colonynav.ai/internal/nav/geo"
)

// GenConfig drives procedural world generation. Permille values are per-mille
// probabilities.
type GenConfig struct {
	Seed int64
	// Side is the number of regions along each axis, starting at E0S0.
	Side int

	WallClusterPermille  uint64
	SwampClusterPermille uint64
	HazardousPermille    uint64
	HighwayInterval      int
}

func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:                 1,
		Side:                 4,
		WallClusterPermille:  300,
		SwampClusterPermille: 350,
		HazardousPermille:    120,
		HighwayInterval:      10,
	}
}

// Generate builds a Side x Side block of regions. Walls and swamps come in
// hashed clusters, every region gets a road along its middle row and column,
// and a few regions are flagged hazardous. Region centers stay open so every
// region has somewhere to stand.
func Generate(cfg GenConfig) *World {
	if cfg.Side <= 0 {
		cfg.Side = DefaultGenConfig().Side
	}
	w := New()
	w.AddRegions(geo.RegionID{}, geo.RegionID{X: cfg.Side - 1, Y: cfg.Side - 1})

	road := geo.Structure{Kind: "road", TrafficCost: 1}
	mid := geo.RegionSize / 2
	for _, id := range w.Regions() {
		for y := 0; y < geo.RegionSize; y++ {
			for x := 0; x < geo.RegionSize; x++ {
				t := geo.Tile{Region: id, X: x, Y: y}
				gx, gy := t.Global()
				switch {
				case abs(x-mid) <= 2 && abs(y-mid) <= 2:
				case inCluster(cfg.Seed+101, gx, gy, 16, 3, cfg.WallClusterPermille):
					w.SetTerrain(t, geo.TerrainWall)
				case inCluster(cfg.Seed+202, gx, gy, 24, 4, cfg.SwampClusterPermille):
					w.SetTerrain(t, geo.TerrainSwamp)
				}
				if x == mid || y == mid {
					w.AddStructure(t, road)
				}
			}
		}
		isEdge := id.X == 0 || id.Y == 0 || id.X == cfg.Side-1 || id.Y == cfg.Side-1
		if !isEdge && !id.IsHighway(cfg.HighwayInterval) && hash2(cfg.Seed+303, id.X, id.Y)%1000 < cfg.HazardousPermille {
			w.SetHazardous(id, true)
		}
	}
	return w
}

// RandomOpenTile picks a passable, unoccupied tile, or false after a bounded
// number of attempts.
func (w *World) RandomOpenTile(rng *rand.Rand) (geo.Tile, bool) {
	ids := w.Regions()
	if len(ids) == 0 {
		return geo.Tile{}, false
	}
	for i := 0; i < 256; i++ {
		t := geo.Tile{
			Region: ids[rng.Intn(len(ids))],
			X:      1 + rng.Intn(geo.RegionSize-2),
			Y:      1 + rng.Intn(geo.RegionSize-2),
		}
		if w.Passable(t) && w.occupancy[t] == nil {
			return t, true
		}
	}
	return geo.Tile{}, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, y int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9))
}

// inCluster places at most one disc of the given radius per grid cell, with
// probability probPermille, and reports whether (x, y) falls in any of them.
func inCluster(seed int64, x, y, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := floorDiv(x, grid)
	gy := floorDiv(y, grid)
	r2 := radius * radius
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			cgx, cgy := gx+dx, gy+dy
			h := hash2(seed, cgx, cgy)
			if h%1000 >= probPermille {
				continue
			}
			cx := cgx*grid + int((h>>10)%uint64(grid))
			cy := cgy*grid + int((h>>20)%uint64(grid))
			ddx, ddy := x-cx, y-cy
			if ddx*ddx+ddy*ddy <= r2 {
				return true
			}
		}
	}
	return false
}
