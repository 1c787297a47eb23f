// Package pathcache shares completed cross-region paths between agents.
// Lookups tolerate small offsets at both ends and patch them with one-step
// corrections, so agents that start or stop a tile apart reuse each other's
// searches.
package pathcache

import (
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"colonynav.ai/internal/nav/geo"
)

type Config struct {
	MaxPaths         int
	HorizonCycles    int
	MaintenanceEvery int
	TrimFill         float64
	FuzzyRadius      int
	// Slots are the segment slots the cache is persisted to.
	Slots []int
}

func DefaultConfig() Config {
	return Config{
		MaxPaths:         3000,
		HorizonCycles:    20000,
		MaintenanceEvery: 100,
		TrimFill:         0.9,
		FuzzyRadius:      1,
	}
}

type Key struct {
	Origin geo.Tile
	Dest   geo.Tile
}

func (k Key) String() string { return k.Origin.String() + ">" + k.Dest.String() }

// entry is keyed by the requested destination; end is where the path stops,
// which may be short of it when the searching caller had a range.
type entry struct {
	path     []geo.Direction
	end      geo.Tile
	lastUsed uint64
}

type Stats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	FuzzyHits uint64 `json:"fuzzy_hits"`
	Misses    uint64 `json:"misses"`
	Puts      uint64 `json:"puts"`
	Rejected  uint64 `json:"rejected"`
	Expired   uint64 `json:"expired"`
	Trimmed   uint64 `json:"trimmed"`
	Loaded    uint64 `json:"loaded"`
}

type Cache struct {
	cfg     Config
	log     *zap.Logger
	entries map[Key]*entry
	cycle   uint64

	dirty   bool
	pending int
	stats   Stats
}

func New(cfg Config, logger *zap.Logger) *Cache {
	def := DefaultConfig()
	if cfg.MaxPaths <= 0 {
		cfg.MaxPaths = def.MaxPaths
	}
	if cfg.HorizonCycles <= 0 {
		cfg.HorizonCycles = def.HorizonCycles
	}
	if cfg.MaintenanceEvery <= 0 {
		cfg.MaintenanceEvery = def.MaintenanceEvery
	}
	if cfg.TrimFill <= 0 || cfg.TrimFill > 1 {
		cfg.TrimFill = def.TrimFill
	}
	if cfg.FuzzyRadius < 0 {
		cfg.FuzzyRadius = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{cfg: cfg, log: logger.Named("pathcache"), entries: map[Key]*entry{}}
}

// SetCycle stamps later hits and insertions.
func (c *Cache) SetCycle(n uint64) { c.cycle = n }

func (c *Cache) Len() int { return len(c.entries) }

// Get looks up a path from origin to dest. Keys within the fuzzy radius of
// either endpoint also match; the exact key is tried first. The returned path
// starts at origin and ends within reach of dest.
func (c *Cache) Get(origin, dest geo.Tile, reach int) ([]geo.Direction, bool) {
	if origin.Region == dest.Region {
		c.stats.Misses++
		return nil, false
	}
	offsets := c.offsets()
	for _, oo := range offsets {
		o, ok := origin.Offset(oo[0], oo[1])
		if !ok {
			continue
		}
		for _, do := range offsets {
			d, ok := dest.Offset(do[0], do[1])
			if !ok {
				continue
			}
			e := c.entries[Key{Origin: o, Dest: d}]
			if e == nil {
				continue
			}
			e.lastUsed = c.cycle
			c.stats.Hits++
			if o != origin || d != dest {
				c.stats.FuzzyHits++
			}
			return corrected(origin, o, e.path, e.end, dest, reach), true
		}
	}
	c.stats.Misses++
	return nil, false
}

// corrected prepends the steps from origin to the cached origin and appends
// steps from the cached end toward dest until it is within reach.
func corrected(origin, cachedOrigin geo.Tile, path []geo.Direction, end, dest geo.Tile, reach int) []geo.Direction {
	out := make([]geo.Direction, 0, len(path)+2)
	out = append(out, steps(origin, cachedOrigin, 0)...)
	out = append(out, path...)
	return append(out, steps(end, dest, reach)...)
}

func steps(from, to geo.Tile, reach int) []geo.Direction {
	var out []geo.Direction
	for geo.Range(from, to) > reach {
		d := geo.DirectionTo(from, to)
		out = append(out, d)
		from = from.Step(d)
	}
	return out
}

// offsets lists the (dx, dy) shifts within the fuzzy radius, zero first.
func (c *Cache) offsets() [][2]int {
	r := c.cfg.FuzzyRadius
	out := make([][2]int, 0, (2*r+1)*(2*r+1))
	out = append(out, [2]int{0, 0})
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			out = append(out, [2]int{dx, dy})
		}
	}
	return out
}

// Put stores a path searched from origin toward dest. The path may stop short
// of dest. Same-region pairs, empty paths and new keys above capacity are
// rejected; an existing key is replaced in place.
func (c *Cache) Put(origin, dest geo.Tile, path []geo.Direction) bool {
	if origin.Region == dest.Region || len(path) == 0 {
		c.stats.Rejected++
		return false
	}
	k := Key{Origin: origin, Dest: dest}
	if e := c.entries[k]; e != nil {
		e.path = append(e.path[:0], path...)
		e.end = geo.Walk(origin, path)
		e.lastUsed = c.cycle
		c.dirty = true
		return true
	}
	if len(c.entries) >= c.cfg.MaxPaths {
		c.stats.Rejected++
		return false
	}
	c.entries[k] = &entry{path: append([]geo.Direction(nil), path...), end: geo.Walk(origin, path), lastUsed: c.cycle}
	c.stats.Puts++
	c.dirty = true
	return true
}

// Maintain expires and trims entries every MaintenanceEvery cycles and
// reports whether it ran. Entries unused for longer than the horizon go
// first; if the cache is still full, random entries are dropped until it is
// back under TrimFill of capacity.
func (c *Cache) Maintain(cycle uint64, rng *rand.Rand) bool {
	if cycle%uint64(c.cfg.MaintenanceEvery) != 0 {
		return false
	}
	horizon := uint64(c.cfg.HorizonCycles)
	for k, e := range c.entries {
		if cycle > horizon && e.lastUsed < cycle-horizon {
			delete(c.entries, k)
			c.stats.Expired++
			c.dirty = true
		}
	}
	if len(c.entries) < c.cfg.MaxPaths {
		return true
	}
	target := int(float64(c.cfg.MaxPaths) * c.cfg.TrimFill)
	keys := c.sortedKeys()
	for _, i := range rng.Perm(len(keys)) {
		if len(c.entries) <= target {
			break
		}
		delete(c.entries, keys[i])
		c.stats.Trimmed++
	}
	c.dirty = true
	c.log.Debug("trimmed", zap.Int("entries", len(c.entries)), zap.Int("target", target))
	return true
}

func (c *Cache) sortedKeys() []Key {
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (c *Cache) Stats() Stats {
	s := c.stats
	s.Entries = len(c.entries)
	return s
}
