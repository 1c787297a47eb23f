package geo

// Direction is an 8-way move code, clockwise from north.
type Direction uint8

const (
	DirNone Direction = iota
	DirN
	DirNE
	DirE
	DirSE
	DirS
	DirSW
	DirW
	DirNW
)

var dirDeltas = [9][2]int{
	{0, 0},
	{0, -1}, {1, -1}, {1, 0}, {1, 1},
	{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

var dirNames = [9]string{"-", "N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Valid reports whether d is one of the eight move codes.
func (d Direction) Valid() bool { return d >= DirN && d <= DirNW }

// Delta returns the (dx, dy) unit step; y grows southwards.
func (d Direction) Delta() [2]int {
	if !d.Valid() {
		return [2]int{}
	}
	return dirDeltas[d]
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if !d.Valid() {
		return DirNone
	}
	return (d+3)%8 + 1
}

func (d Direction) String() string {
	if int(d) >= len(dirNames) {
		return "?"
	}
	return dirNames[d]
}

// DirectionOf maps a unit delta to its direction code.
func DirectionOf(dx, dy int) Direction {
	for d := DirN; d <= DirNW; d++ {
		if dirDeltas[d][0] == dx && dirDeltas[d][1] == dy {
			return d
		}
	}
	return DirNone
}

// AllDirections lists the move codes in clockwise order.
var AllDirections = [8]Direction{DirN, DirNE, DirE, DirSE, DirS, DirSW, DirW, DirNW}

// PathDirections converts consecutive tiles into move codes starting at origin.
// Non-adjacent hops stop the conversion.
func PathDirections(origin Tile, path []Tile) []Direction {
	out := make([]Direction, 0, len(path))
	prev := origin
	for _, t := range path {
		if Range(prev, t) != 1 {
			break
		}
		out = append(out, DirectionTo(prev, t))
		prev = t
	}
	return out
}

// EncodePath renders move codes as a compact digit string.
func EncodePath(dirs []Direction) string {
	b := make([]byte, len(dirs))
	for i, d := range dirs {
		b[i] = '0' + byte(d)
	}
	return string(b)
}

// DecodePath parses a digit string; false on any invalid code.
func DecodePath(s string) ([]Direction, bool) {
	out := make([]Direction, len(s))
	for i := 0; i < len(s); i++ {
		d := Direction(s[i] - '0')
		if s[i] < '0' || !d.Valid() {
			return nil, false
		}
		out[i] = d
	}
	return out, true
}
