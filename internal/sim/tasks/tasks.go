package tasks

import (
	"fmt"

	"colonynav.ai/internal/nav/geo"
)

type Kind string

const (
	// KindMoveTo walks to a fixed tile.
	KindMoveTo Kind = "MOVE_TO"
	// KindFollow tracks another agent; the target moves every cycle.
	KindFollow Kind = "FOLLOW"
)

// Trip is one travel errand handed to an agent.
type Trip struct {
	TaskID string
	Kind   Kind
	Target geo.Tile
	// Leader is the agent followed by a FOLLOW trip.
	Leader string
	Range  int

	StartedCycle uint64
	// NoPath counts consecutive cycles the engine reported no path.
	NoPath int
}

func NewTaskID(n uint64) string { return fmt.Sprintf("T%06d", n) }

// Age is the number of cycles since the trip started.
func (t *Trip) Age(now uint64) uint64 {
	if now < t.StartedCycle {
		return 0
	}
	return now - t.StartedCycle
}

// Expired reports whether the trip ran past maxCycles. Zero means no limit.
func (t *Trip) Expired(now, maxCycles uint64) bool {
	return maxCycles > 0 && t.Age(now) > maxCycles
}
