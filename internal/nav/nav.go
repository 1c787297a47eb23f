// Package nav holds the contracts between the navigation engine and the
// world it drives. The world implements them; the engine only consumes them.
package nav

import (
	"colonynav.ai/internal/nav/costgrid"
	"colonynav.ai/internal/nav/geo"
	"colonynav.ai/internal/nav/route"
)

// Agent is a mobile unit the engine can steer.
type Agent interface {
	Name() string
	Role() string
	Pos() geo.Tile
	// Fatigue > 0 means the agent cannot move this cycle.
	Fatigue() int
	// Spawning is true until the agent has materialized in the world.
	Spawning() bool

	// TravelMemory is the opaque blob the engine persists between cycles.
	TravelMemory() []byte
	SetTravelMemory(b []byte)

	// Move records the agent's single move intent for this cycle. The world
	// resolves it when the cycle ends.
	Move(dir geo.Direction)
}

// World is the query API the engine reads every cycle.
type World interface {
	costgrid.Source
	route.Map

	AgentAt(t geo.Tile) (Agent, bool)
	AgentsIn(region geo.RegionID) []Agent
}
