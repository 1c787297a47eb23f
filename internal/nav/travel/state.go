package travel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"colonynav.ai/internal/nav/geo"
)

const stateVersion = 1

const (
	flagDest byte = 1 << iota
	flagLast
	flagFromCache
)

var errBadState = errors.New("bad travel state")

// State is what the engine remembers about one agent between cycles.
type State struct {
	Dest    geo.Tile
	HasDest bool
	Last    geo.Tile
	HasLast bool

	StuckCount int
	// SearchCost is the ops spent searching for the current destination.
	SearchCost int

	// MovedAt is the last cycle the engine drove this agent, LastDir the
	// move it emitted then (DirNone if it waited).
	MovedAt uint64
	LastDir geo.Direction

	FromCache bool
	// Path[0] is the next step.
	Path []geo.Direction
}

// DrivenAt reports whether the engine already processed the agent in cycle n.
func (s State) DrivenAt(n uint64) bool { return s.MovedAt == n && n != 0 }

// Encode packs the state as: version, flags, optional destination and last
// tile (signed varint region coords, uvarint local coords), uvarint counters,
// last direction, uvarint path length and the path two codes per byte.
func (s State) Encode() []byte {
	var flags byte
	if s.HasDest {
		flags |= flagDest
	}
	if s.HasLast {
		flags |= flagLast
	}
	if s.FromCache {
		flags |= flagFromCache
	}
	buf := make([]byte, 0, 24+len(s.Path)/2)
	buf = append(buf, stateVersion, flags)
	if s.HasDest {
		buf = appendTile(buf, s.Dest)
	}
	if s.HasLast {
		buf = appendTile(buf, s.Last)
	}
	buf = binary.AppendUvarint(buf, uint64(max(s.StuckCount, 0)))
	buf = binary.AppendUvarint(buf, uint64(max(s.SearchCost, 0)))
	buf = binary.AppendUvarint(buf, s.MovedAt)
	buf = append(buf, byte(s.LastDir))
	buf = binary.AppendUvarint(buf, uint64(len(s.Path)))
	for i := 0; i < len(s.Path); i += 2 {
		b := byte(s.Path[i]) << 4
		if i+1 < len(s.Path) {
			b |= byte(s.Path[i+1])
		}
		buf = append(buf, b)
	}
	return buf
}

func appendTile(buf []byte, t geo.Tile) []byte {
	buf = binary.AppendVarint(buf, int64(t.Region.X))
	buf = binary.AppendVarint(buf, int64(t.Region.Y))
	buf = binary.AppendUvarint(buf, uint64(t.X))
	return binary.AppendUvarint(buf, uint64(t.Y))
}

// DecodeState is the inverse of Encode. Empty input is the zero state.
func DecodeState(b []byte) (State, error) {
	var s State
	if len(b) == 0 {
		return s, nil
	}
	if len(b) < 2 || b[0] != stateVersion {
		return State{}, fmt.Errorf("%w: header", errBadState)
	}
	flags := b[1]
	r := reader{b: b, i: 2}
	if flags&flagDest != 0 {
		s.Dest, s.HasDest = r.tile(), true
	}
	if flags&flagLast != 0 {
		s.Last, s.HasLast = r.tile(), true
	}
	s.FromCache = flags&flagFromCache != 0
	s.StuckCount = int(r.uvarint())
	s.SearchCost = int(r.uvarint())
	s.MovedAt = r.uvarint()
	s.LastDir = geo.Direction(r.readByte())
	n := int(r.uvarint())
	if r.err != nil {
		return State{}, r.err
	}
	if n < 0 || (n+1)/2 != len(b)-r.i {
		return State{}, fmt.Errorf("%w: path length %d", errBadState, n)
	}
	if s.LastDir != geo.DirNone && !s.LastDir.Valid() {
		return State{}, fmt.Errorf("%w: direction %d", errBadState, s.LastDir)
	}
	if n > 0 {
		s.Path = make([]geo.Direction, n)
		for i := 0; i < n; i++ {
			c := b[r.i+i/2]
			d := geo.Direction(c >> 4)
			if i%2 == 1 {
				d = geo.Direction(c & 0x0f)
			}
			if !d.Valid() {
				return State{}, fmt.Errorf("%w: path code %d at %d", errBadState, d, i)
			}
			s.Path[i] = d
		}
	}
	return s, nil
}

type reader struct {
	b   []byte
	i   int
	err error
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.b[r.i:])
	if n <= 0 {
		r.err = fmt.Errorf("%w: bad varint at %d", errBadState, r.i)
		return 0
	}
	r.i += n
	return v
}

func (r *reader) varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.b[r.i:])
	if n <= 0 {
		r.err = fmt.Errorf("%w: bad varint at %d", errBadState, r.i)
		return 0
	}
	r.i += n
	return v
}

func (r *reader) readByte() byte {
	if r.err != nil {
		return 0
	}
	if r.i >= len(r.b) {
		r.err = fmt.Errorf("%w: truncated at %d", errBadState, r.i)
		return 0
	}
	c := r.b[r.i]
	r.i++
	return c
}

func (r *reader) tile() geo.Tile {
	t := geo.Tile{Region: geo.RegionID{X: int(r.varint()), Y: int(r.varint())}}
	t.X = int(r.uvarint())
	t.Y = int(r.uvarint())
	if r.err == nil && !t.InBounds() {
		r.err = fmt.Errorf("%w: tile %v out of bounds", errBadState, t)
	}
	return t
}
