package geo

import (
	"fmt"
	"strconv"
)

// RegionSize is the edge length of a region in tiles.
const RegionSize = 50

// RegionID addresses a region by integer coordinates. Names follow the
// W/E + N/S convention: x >= 0 is E<x>, x < 0 is W<-x-1>; y >= 0 is S<y>,
// y < 0 is N<-y-1>.
type RegionID struct {
	X int
	Y int
}

func (r RegionID) String() string {
	var h, v string
	var hx, vy int
	if r.X >= 0 {
		h, hx = "E", r.X
	} else {
		h, hx = "W", -r.X-1
	}
	if r.Y >= 0 {
		v, vy = "S", r.Y
	} else {
		v, vy = "N", -r.Y-1
	}
	return h + strconv.Itoa(hx) + v + strconv.Itoa(vy)
}

// NameCoords returns the unsigned coordinates that appear in the region name.
func (r RegionID) NameCoords() (int, int) {
	x, y := r.X, r.Y
	if x < 0 {
		x = -x - 1
	}
	if y < 0 {
		y = -y - 1
	}
	return x, y
}

// IsHighway reports whether either name coordinate is a multiple of interval.
func (r RegionID) IsHighway(interval int) bool {
	if interval <= 0 {
		return false
	}
	x, y := r.NameCoords()
	return x%interval == 0 || y%interval == 0
}

// ParseRegion parses names like "E3S7" or "W0N12".
func ParseRegion(name string) (RegionID, error) {
	if len(name) < 4 {
		return RegionID{}, fmt.Errorf("region %q: too short", name)
	}
	var r RegionID
	i := 1
	j := i
	for j < len(name) && name[j] >= '0' && name[j] <= '9' {
		j++
	}
	if j == i || j >= len(name) {
		return RegionID{}, fmt.Errorf("region %q: bad horizontal part", name)
	}
	hx, err := strconv.Atoi(name[i:j])
	if err != nil {
		return RegionID{}, fmt.Errorf("region %q: %w", name, err)
	}
	switch name[0] {
	case 'E':
		r.X = hx
	case 'W':
		r.X = -hx - 1
	default:
		return RegionID{}, fmt.Errorf("region %q: expected E or W", name)
	}
	vy, err := strconv.Atoi(name[j+1:])
	if err != nil {
		return RegionID{}, fmt.Errorf("region %q: %w", name, err)
	}
	switch name[j] {
	case 'S':
		r.Y = vy
	case 'N':
		r.Y = -vy - 1
	default:
		return RegionID{}, fmt.Errorf("region %q: expected N or S", name)
	}
	return r, nil
}

// MustRegion is ParseRegion for literals.
func MustRegion(name string) RegionID {
	r, err := ParseRegion(name)
	if err != nil {
		panic(err)
	}
	return r
}

// LinearDistance is the Chebyshev distance between two regions.
func LinearDistance(a, b RegionID) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

// Neighbors returns the four orthogonally adjacent regions (N, E, S, W).
func (r RegionID) Neighbors() [4]RegionID {
	return [4]RegionID{
		{X: r.X, Y: r.Y - 1},
		{X: r.X + 1, Y: r.Y},
		{X: r.X, Y: r.Y + 1},
		{X: r.X - 1, Y: r.Y},
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
