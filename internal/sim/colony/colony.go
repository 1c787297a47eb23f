// Package colony drives a population of agents through the travel engine:
// it hands out trips, calls GoTo for every agent each cycle and resolves the
// resulting moves in the world.
package colony

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"colonynav.ai/internal/nav/geo"
	"colonynav.ai/internal/nav/pathcache"
	"colonynav.ai/internal/nav/travel"
	"colonynav.ai/internal/observerproto"
	"colonynav.ai/internal/persistence/segments"
	"colonynav.ai/internal/sim/budget"
	"colonynav.ai/internal/sim/cycle"
	"colonynav.ai/internal/sim/tasks"
	"colonynav.ai/internal/sim/tuning"
	"colonynav.ai/internal/sim/world"
)

type Config struct {
	Tuning tuning.Tuning
	World  world.GenConfig

	Agents int
	Roles  []string
	// FollowPermille is the share of new trips that follow another agent.
	FollowPermille int
	// MaxTripCycles abandons trips that take longer. Zero disables the limit.
	MaxTripCycles uint64
	// NoPathLimit abandons a trip after this many consecutive NO_PATH cycles.
	NoPathLimit int
	// ShedPressure keeps new trips inside the agent's region while the
	// engine's budget pressure is above it.
	ShedPressure float64
}

func DefaultConfig() Config {
	return Config{
		Tuning:         tuning.Defaults(),
		World:          world.DefaultGenConfig(),
		Agents:         24,
		Roles:          []string{"hauler", "builder"},
		FollowPermille: 150,
		MaxTripCycles:  600,
		NoPathLimit:    5,
		ShedPressure:   0.8,
	}
}

// Totals are cumulative counters over the whole run.
type Totals struct {
	Cycles    uint64 `json:"cycles"`
	Trips     uint64 `json:"trips"`
	Arrivals  uint64 `json:"arrivals"`
	Abandoned uint64 `json:"abandoned"`
	Shed      uint64 `json:"shed"`
	Moves     uint64 `json:"moves"`
}

type Runner struct {
	cfg Config
	log *zap.Logger

	// mu guards everything below against the observer's HTTP handlers.
	mu     sync.Mutex
	w      *world.World
	engine *travel.Engine
	cache  *pathcache.Cache
	pager  *segments.Pager
	codec  *segments.Codec
	clock  *cycle.Clock
	rng    *rand.Rand

	trips    map[string]*tasks.Trip
	nextTrip uint64
	totals   Totals
}

// New generates the world, spawns the agents and wires the engine to host
// for path cache persistence.
func New(cfg Config, host segments.Host, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Roles) == 0 {
		cfg.Roles = DefaultConfig().Roles
	}
	if host == nil {
		host = segments.NewMemoryHost(Limits(cfg.Tuning.Segments))
	}

	codec, err := segments.NewCodec()
	if err != nil {
		return nil, fmt.Errorf("segment codec: %w", err)
	}
	pager := segments.NewPager(host, codec, segments.Config{
		MaxActive:        cfg.Tuning.Segments.MaxActive,
		MaxSavesPerCycle: cfg.Tuning.Segments.MaxSavesPerCycle,
	}, logger)
	cache := pathcache.New(CacheConfig(cfg.Tuning.PathCache), logger)

	w := world.Generate(cfg.World)
	rng := rand.New(rand.NewSource(cfg.World.Seed))
	engine := travel.New(cfg.Tuning.Navigation, travel.Deps{
		World:  w,
		Cache:  cache,
		Pager:  pager,
		Meter:  budget.NewMeter(cfg.Tuning.Budget.CycleOpLimit, cfg.Tuning.Budget.Smoothing),
		Rand:   rand.New(rand.NewSource(cfg.World.Seed + 1)),
		Logger: logger,
	})

	r := &Runner{
		cfg:    cfg,
		log:    logger.Named("colony"),
		w:      w,
		engine: engine,
		cache:  cache,
		pager:  pager,
		codec:  codec,
		clock:  cycle.NewClock(0),
		rng:    rng,
		trips:  map[string]*tasks.Trip{},
	}
	for i := 0; i < cfg.Agents; i++ {
		pos, ok := w.RandomOpenTile(rng)
		if !ok {
			codec.Close()
			return nil, fmt.Errorf("no free tile for agent %d", i)
		}
		a, err := w.Spawn(fmt.Sprintf("agent-%03d", i), cfg.Roles[i%len(cfg.Roles)], pos)
		if err != nil {
			codec.Close()
			return nil, err
		}
		// Materializes at the end of the first cycle.
		a.SetSpawning(true)
	}
	r.log.Info("colony ready",
		zap.Int("regions", len(w.Regions())),
		zap.Int("agents", cfg.Agents),
		zap.Int64("seed", cfg.World.Seed),
	)
	return r, nil
}

// CacheConfig maps tuning onto the path cache.
func CacheConfig(t tuning.PathCache) pathcache.Config {
	return pathcache.Config{
		MaxPaths:         t.MaxPaths,
		HorizonCycles:    t.HorizonCycles,
		MaintenanceEvery: t.MaintenanceEvery,
		TrimFill:         t.TrimFill,
		FuzzyRadius:      t.FuzzyRadius,
		Slots:            append([]int(nil), t.Slots...),
	}
}

// Limits maps tuning onto the segment host limits.
func Limits(t tuning.Segments) segments.Limits {
	return segments.Limits{SlotCount: t.SlotCount, SlotCapacity: t.SlotCapacity, MaxActive: t.MaxActive}
}

func (r *Runner) Close() { r.codec.Close() }

// Step runs one cycle: every agent gets one GoTo call, then the engine's
// housekeeping runs and the world resolves the moves.
func (r *Runner) Step() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.clock.Advance()
	r.engine.BeginCycle(c)
	for _, a := range r.w.Agents() {
		r.drive(a, c.Number())
	}
	if err := r.engine.EndCycle(c); err != nil {
		return fmt.Errorf("cycle %d: %w", c.Number(), err)
	}
	st := r.w.Step()
	for _, a := range r.w.Agents() {
		a.SetSpawning(false)
	}
	r.totals.Cycles++
	r.totals.Moves += uint64(st.Moved)
	return nil
}

func (r *Runner) drive(a *world.Agent, now uint64) {
	trip := r.trips[a.Name()]
	if trip == nil {
		trip = r.newTrip(a, now)
		if trip == nil {
			return
		}
	}
	if trip.Kind == tasks.KindFollow {
		leader, ok := r.w.Agent(trip.Leader)
		if !ok {
			delete(r.trips, a.Name())
			return
		}
		trip.Target = leader.Pos()
	}
	if trip.Expired(now, r.cfg.MaxTripCycles) {
		r.abandon(a, trip, "expired")
		return
	}

	res := r.engine.GoTo(a, trip.Target, travel.Options{
		Range:        travel.Within(trip.Range),
		MovingTarget: trip.Kind == tasks.KindFollow,
	})
	switch res.Status {
	case travel.StatusNoPath:
		trip.NoPath++
		if trip.NoPath >= r.cfg.NoPathLimit || res.BudgetExceeded {
			r.abandon(a, trip, "no path")
		}
		return
	case travel.StatusOK:
		trip.NoPath = 0
	}
	if res.Status == travel.StatusOK && geo.Range(a.Pos(), trip.Target) <= trip.Range {
		r.totals.Arrivals++
		delete(r.trips, a.Name())
	}
}

func (r *Runner) newTrip(a *world.Agent, now uint64) *tasks.Trip {
	r.nextTrip++
	trip := &tasks.Trip{
		TaskID:       tasks.NewTaskID(r.nextTrip),
		Kind:         tasks.KindMoveTo,
		Range:        1,
		StartedCycle: now,
	}
	agents := r.w.Agents()
	if len(agents) > 1 && r.rng.Intn(1000) < r.cfg.FollowPermille {
		leader := agents[r.rng.Intn(len(agents))]
		if leader.Name() != a.Name() {
			trip.Kind, trip.Leader = tasks.KindFollow, leader.Name()
			trip.Target = leader.Pos()
			trip.Range = 2
		}
	}
	if trip.Kind == tasks.KindMoveTo {
		dest, ok := r.w.RandomOpenTile(r.rng)
		if !ok {
			return nil
		}
		if r.engine.Pressure() > r.cfg.ShedPressure && dest.Region != a.Pos().Region {
			// Under budget pressure only local errands are handed out.
			r.totals.Shed++
			dest.Region = a.Pos().Region
			if !r.w.Passable(dest) {
				return nil
			}
		}
		trip.Target = dest
	}
	r.trips[a.Name()] = trip
	r.totals.Trips++
	r.log.Debug("trip assigned",
		zap.String("agent", a.Name()),
		zap.String("task", trip.TaskID),
		zap.String("kind", string(trip.Kind)),
		zap.Stringer("target", trip.Target),
	)
	return trip
}

func (r *Runner) abandon(a *world.Agent, trip *tasks.Trip, reason string) {
	r.totals.Abandoned++
	delete(r.trips, a.Name())
	r.log.Debug("trip abandoned",
		zap.String("agent", a.Name()),
		zap.String("task", trip.TaskID),
		zap.String("reason", reason),
		zap.Uint64("age", trip.Age(r.clock.Now())),
	)
}

// Run steps the colony until cycles have run (0 means forever) or ctx is done.
// A positive rate paces the loop; onCycle sees every completed cycle.
func (r *Runner) Run(ctx context.Context, cycles uint64, rateHz int, onCycle func(observerproto.CycleMsg)) error {
	var tick <-chan time.Time
	if rateHz > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(rateHz))
		defer ticker.Stop()
		tick = ticker.C
	}
	for n := uint64(0); cycles == 0 || n < cycles; n++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Step(); err != nil {
			return err
		}
		if onCycle != nil {
			onCycle(r.Snapshot(true))
		}
	}
	return nil
}

// Snapshot describes the last completed cycle for the observer feed.
func (r *Runner) Snapshot(withAgents bool) observerproto.CycleMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := observerproto.CycleMsg{
		Cycle:  r.clock.Now(),
		Travel: r.engine.Stats(),
		Budget: r.engine.Budget(),
		Cache:  r.cache.Stats(),
		Pager:  r.pager.Stats(),
		Grids:  r.engine.Grids(),
	}
	if !withAgents {
		return m
	}
	for _, a := range r.w.Agents() {
		st, _ := travel.DecodeState(a.TravelMemory())
		as := observerproto.AgentState{
			Name:    a.Name(),
			Role:    a.Role(),
			Pos:     a.Pos().String(),
			PathLen: len(st.Path),
			Stuck:   st.StuckCount,
			Fatigue: a.Fatigue(),
		}
		if trip := r.trips[a.Name()]; trip != nil {
			as.Dest = trip.Target.String()
		}
		m.Agents = append(m.Agents, as)
	}
	return m
}

func (r *Runner) Bootstrap() observerproto.BootstrapResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.w.Regions()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return observerproto.BootstrapResponse{
		Cycle: r.clock.Now(),
		WorldParams: observerproto.WorldParams{
			RegionSize:      geo.RegionSize,
			Regions:         names,
			Agents:          len(r.w.Agents()),
			Seed:            r.cfg.World.Seed,
			HighwayInterval: r.cfg.Tuning.Navigation.HighwayInterval,
		},
	}
}

// RegionCells returns the structure cost grid of a generated region.
func (r *Runner) RegionCells(region geo.RegionID) ([]uint8, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.w.IsRegionReachable(region) {
		return nil, false
	}
	return r.engine.StructureGrid(region).Cells(), true
}

func (r *Runner) Totals() Totals {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totals
}

// World is exposed for tests and tools; it is not safe to use while Run is
// active.
func (r *Runner) World() *world.World { return r.w }

func (r *Runner) Cache() *pathcache.Cache { return r.cache }
