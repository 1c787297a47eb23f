package travel

import (
	"colonynav.ai/internal/nav/costgrid"
	"colonynav.ai/internal/nav/geo"
)

// Reach is the arrival distance. The zero value selects the configured
// default; use Within for an explicit value, including 0.
type Reach struct {
	n   int
	set bool
}

func Within(n int) Reach { return Reach{n: max(n, 0), set: true} }

func (r Reach) or(def int) int {
	if r.set {
		return r.n
	}
	return def
}

type Options struct {
	Range Reach
	// MovingTarget patches a held path with one step when the destination
	// moved to an adjacent tile, instead of searching again.
	MovingTarget          bool
	AllowHazardousRegions bool
	PreferHighways        bool
	// ExtraObstacles are marked impassable for this call's search.
	ExtraObstacles []geo.Tile
	// PushOccupants pushes a waiting same-role occupant ahead instead of
	// swapping places with it.
	PushOccupants bool
	// ForceFreshSearch skips the cache and rebuilds structure grids once.
	ForceFreshSearch bool

	// IgnoreRoads searches with plain 1 / swamp 5.
	IgnoreRoads bool
	// OffRoad searches with plain 1 / swamp 1.
	OffRoad          bool
	IgnoreStructures bool

	// Zero values select the configured defaults.
	MaxOps         int
	MaxRegions     int
	StuckThreshold int
	// RepathChance overrides the stuck recovery probability when > 0.
	RepathChance float64

	// ForceRoute runs region routing regardless of distance.
	ForceRoute       bool
	RestrictDistance int

	// Grids wraps the cost grid provider, e.g. to add costs for this caller.
	Grids costgrid.Decorator
}

type Status uint8

const (
	StatusOK Status = iota
	StatusTired
	StatusNoPath
	StatusBusy
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusTired:
		return "TIRED"
	case StatusNoPath:
		return "NO_PATH"
	case StatusBusy:
		return "BUSY"
	}
	return "UNKNOWN"
}

type Result struct {
	Status Status
	// Moved is true when a move intent was emitted.
	Moved     bool
	Direction geo.Direction
	// Blocked means the next step was held by an occupant that could not be
	// swapped or pushed.
	Blocked bool
	// Swapped means a waiting same-role occupant was swapped or pushed.
	Swapped        bool
	Incomplete     bool
	FromCache      bool
	Searched       bool
	SearchOps      int
	PathLen        int
	BudgetExceeded bool
	Recovered      bool
}
