// Package costgrid builds the per-region traversal cost grids handed to the
// tile search. A cell of 0 means "use the terrain cost", 1..254 is an explicit
// cost and 255 blocks the tile.
package costgrid

import "colonynav.ai/internal/nav/geo"

const (
	Default    uint8 = 0
	Impassable uint8 = 255
)

const cells = geo.RegionSize * geo.RegionSize

type Grid struct {
	c [cells]uint8
}

func New() *Grid { return &Grid{} }

func (g *Grid) Get(x, y int) uint8 {
	if x < 0 || y < 0 || x >= geo.RegionSize || y >= geo.RegionSize {
		return Impassable
	}
	return g.c[y*geo.RegionSize+x]
}

func (g *Grid) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= geo.RegionSize || y >= geo.RegionSize {
		return
	}
	g.c[y*geo.RegionSize+x] = v
}

func (g *Grid) Clone() *Grid {
	n := *g
	return &n
}

// Count returns how many cells hold v.
func (g *Grid) Count(v uint8) int {
	n := 0
	for _, c := range g.c {
		if c == v {
			n++
		}
	}
	return n
}

// Cells returns a copy of the cells in row-major order.
func (g *Grid) Cells() []uint8 {
	out := make([]uint8, cells)
	copy(out, g.c[:])
	return out
}
