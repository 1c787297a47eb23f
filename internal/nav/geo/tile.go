package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// Tile is a cell inside a region. X and Y are local coordinates in [0, RegionSize).
type Tile struct {
	Region RegionID
	X      int
	Y      int
}

func (t Tile) String() string {
	return fmt.Sprintf("%s:%d,%d", t.Region, t.X, t.Y)
}

// ParseTile is the inverse of String: "E1S2:10,20".
func ParseTile(s string) (Tile, error) {
	name, xy, ok := strings.Cut(s, ":")
	if !ok {
		return Tile{}, fmt.Errorf("tile %q: missing ':'", s)
	}
	r, err := ParseRegion(name)
	if err != nil {
		return Tile{}, err
	}
	xs, ys, ok := strings.Cut(xy, ",")
	if !ok {
		return Tile{}, fmt.Errorf("tile %q: missing ','", s)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Tile{}, fmt.Errorf("tile %q: %w", s, err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Tile{}, fmt.Errorf("tile %q: %w", s, err)
	}
	t := Tile{Region: r, X: x, Y: y}
	if !t.InBounds() {
		return Tile{}, fmt.Errorf("tile %q: out of bounds", s)
	}
	return t, nil
}

// At builds a tile from a region name and local coordinates.
func At(region string, x, y int) Tile {
	return Tile{Region: MustRegion(region), X: x, Y: y}
}

// Global returns world coordinates; regions tile the plane without gaps.
func (t Tile) Global() (int, int) {
	return t.Region.X*RegionSize + t.X, t.Region.Y*RegionSize + t.Y
}

// FromGlobal is the inverse of Global.
func FromGlobal(gx, gy int) Tile {
	rx := floorDiv(gx, RegionSize)
	ry := floorDiv(gy, RegionSize)
	return Tile{
		Region: RegionID{X: rx, Y: ry},
		X:      gx - rx*RegionSize,
		Y:      gy - ry*RegionSize,
	}
}

// InBounds reports whether local coordinates are inside the region.
func (t Tile) InBounds() bool {
	return t.X >= 0 && t.X < RegionSize && t.Y >= 0 && t.Y < RegionSize
}

// IsBoundary reports whether the tile sits on a region edge.
func (t Tile) IsBoundary() bool {
	return t.X == 0 || t.Y == 0 || t.X == RegionSize-1 || t.Y == RegionSize-1
}

// Offset returns the tile shifted by (dx, dy) inside the same region, and
// false if the result leaves the region.
func (t Tile) Offset(dx, dy int) (Tile, bool) {
	n := Tile{Region: t.Region, X: t.X + dx, Y: t.Y + dy}
	return n, n.InBounds()
}

// Step moves one tile in dir, crossing region edges.
func (t Tile) Step(dir Direction) Tile {
	d := dir.Delta()
	gx, gy := t.Global()
	return FromGlobal(gx+d[0], gy+d[1])
}

// Range is the Chebyshev distance in tiles, valid across regions.
func Range(a, b Tile) int {
	ax, ay := a.Global()
	bx, by := b.Global()
	return max(abs(ax-bx), abs(ay-by))
}

// IsNear reports whether b is a or one of its 8 neighbours.
func IsNear(a, b Tile) bool {
	return Range(a, b) <= 1
}

// DirectionTo returns the 8-way direction that brings a closest to b, or
// DirNone when they coincide.
func DirectionTo(a, b Tile) Direction {
	ax, ay := a.Global()
	bx, by := b.Global()
	return DirectionOf(sign(bx-ax), sign(by-ay))
}

// Walk applies a direction sequence from start and returns the end tile.
func Walk(start Tile, dirs []Direction) Tile {
	cur := start
	for _, d := range dirs {
		cur = cur.Step(d)
	}
	return cur
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
