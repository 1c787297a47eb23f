package world

import "colonynav.ai/internal/nav/geo"

// StepStats summarizes one resolved cycle.
type StepStats struct {
	Cycle   uint64
	Intents int
	Moved   int
	Failed  int
}

// SwampFatigue is the fatigue an agent picks up when it steps onto swamp
// that has no road.
const SwampFatigue = 1

type moveStatus uint8

const (
	statusPending moveStatus = iota
	statusResolving
	statusOK
	statusFail
)

// Step resolves every recorded move intent and advances the cycle.
//
// A move succeeds when its target is passable and either free or vacated by
// an occupant that itself moves this cycle (chains, swaps and rotations all
// resolve). When several agents target one tile the earliest spawned wins.
func (w *World) Step() StepStats {
	st := StepStats{Cycle: w.cycle + 1}

	for _, a := range w.agents {
		a.fatigue = max(a.fatigue-1, 0)
	}

	target := map[*Agent]geo.Tile{}
	claim := map[geo.Tile]*Agent{}
	status := map[*Agent]moveStatus{}
	for _, a := range w.agents {
		if a.intent == geo.DirNone {
			continue
		}
		st.Intents++
		t := a.pos.Step(a.intent)
		if a.spawning || !w.Passable(t) {
			status[a] = statusFail
			continue
		}
		if claim[t] != nil {
			status[a] = statusFail
			continue
		}
		claim[t] = a
		target[a] = t
		status[a] = statusPending
	}

	var resolve func(a *Agent) bool
	resolve = func(a *Agent) bool {
		switch status[a] {
		case statusOK:
			return true
		case statusFail:
			return false
		case statusResolving:
			// Back at an agent already on the stack: the occupants form a
			// closed loop and can all shift at once.
			return true
		}
		status[a] = statusResolving
		ok := true
		if o := w.occupancy[target[a]]; o != nil && o != a {
			ok = status[o] != statusFail && o.intent != geo.DirNone && resolve(o)
		}
		if ok {
			status[a] = statusOK
		} else {
			status[a] = statusFail
		}
		return ok
	}

	for _, a := range w.agents {
		if _, ok := status[a]; ok {
			resolve(a)
		}
	}

	moved := make([]*Agent, 0, len(target))
	for _, a := range w.agents {
		a.lastMove = geo.DirNone
		if status[a] == statusOK {
			moved = append(moved, a)
		} else if _, tried := status[a]; tried {
			st.Failed++
		}
	}
	for _, a := range moved {
		if w.occupancy[a.pos] == a {
			delete(w.occupancy, a.pos)
		}
	}
	for _, a := range moved {
		a.pos = target[a]
		a.lastMove = a.intent
		a.moves++
		w.occupancy[a.pos] = a
		if w.TerrainAt(a.pos) == geo.TerrainSwamp && !w.hasTraffic(a.pos) {
			a.fatigue = SwampFatigue
		}
	}
	st.Moved = len(moved)

	for _, a := range w.agents {
		a.intent = geo.DirNone
	}
	w.cycle++
	return st
}
