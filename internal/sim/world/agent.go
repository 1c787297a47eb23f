package world

import (
	"colonynav.ai/internal/nav"
	"colonynav.ai/internal/nav/geo"
)

type Agent struct {
	name     string
	role     string
	pos      geo.Tile
	fatigue  int
	spawning bool
	memory   []byte

	intent geo.Direction
	// lastMove is the direction the agent actually moved on the last Step.
	lastMove geo.Direction
	moves    int
}

var _ nav.Agent = (*Agent)(nil)

func (a *Agent) Name() string { return a.name }
func (a *Agent) Role() string { return a.role }
func (a *Agent) Pos() geo.Tile { return a.pos }
func (a *Agent) Fatigue() int { return a.fatigue }
func (a *Agent) Spawning() bool { return a.spawning }

func (a *Agent) TravelMemory() []byte { return a.memory }
func (a *Agent) SetTravelMemory(b []byte) { a.memory = b }

// Move records the intent; a later call in the same cycle replaces it.
func (a *Agent) Move(dir geo.Direction) {
	if dir.Valid() {
		a.intent = dir
	}
}

func (a *Agent) SetFatigue(n int) { a.fatigue = max(n, 0) }
func (a *Agent) SetSpawning(v bool) { a.spawning = v }
func (a *Agent) Intent() geo.Direction { return a.intent }

// LastMove is the direction of the last successful move, DirNone if the agent
// stood still on the last Step.
func (a *Agent) LastMove() geo.Direction { return a.lastMove }

// Moves counts successful moves.
func (a *Agent) Moves() int { return a.moves }
