package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every semantic validation failure.
var ErrInvalid = errors.New("invalid tuning")

//go:embed schema.json
var schemaJSON string

type Tuning struct {
	Navigation Navigation `yaml:"navigation" json:"navigation"`
	PathCache  PathCache  `yaml:"path_cache" json:"path_cache"`
	Segments   Segments   `yaml:"segments" json:"segments"`
	Budget     Budget     `yaml:"budget" json:"budget"`
}

type Navigation struct {
	DefaultRange        int     `yaml:"default_range" json:"default_range"`
	StuckThreshold      int     `yaml:"stuck_threshold" json:"stuck_threshold"`
	StuckRecoveryChance float64 `yaml:"stuck_recovery_chance" json:"stuck_recovery_chance"`
	MinRouteDistance    int     `yaml:"min_route_distance" json:"min_route_distance"`
	MaxOps              int     `yaml:"max_ops" json:"max_ops"`
	MaxRegions          int     `yaml:"max_regions" json:"max_regions"`
	HighwayInterval     int     `yaml:"highway_interval" json:"highway_interval"`
	PlainCost           int     `yaml:"plain_cost" json:"plain_cost"`
	SwampCost           int     `yaml:"swamp_cost" json:"swamp_cost"`
	SearchHighWater     int     `yaml:"search_high_water" json:"search_high_water"`
}

type PathCache struct {
	MaxPaths         int     `yaml:"max_paths" json:"max_paths"`
	HorizonCycles    int     `yaml:"horizon_cycles" json:"horizon_cycles"`
	MaintenanceEvery int     `yaml:"maintenance_every" json:"maintenance_every"`
	TrimFill         float64 `yaml:"trim_fill" json:"trim_fill"`
	FuzzyRadius      int     `yaml:"fuzzy_radius" json:"fuzzy_radius"`
	Slots            []int   `yaml:"slots" json:"slots"`
}

type Segments struct {
	SlotCount        int `yaml:"slot_count" json:"slot_count"`
	SlotCapacity     int `yaml:"slot_capacity" json:"slot_capacity"`
	MaxActive        int `yaml:"max_active" json:"max_active"`
	MaxSavesPerCycle int `yaml:"max_saves_per_cycle" json:"max_saves_per_cycle"`
}

type Budget struct {
	CycleOpLimit int     `yaml:"cycle_op_limit" json:"cycle_op_limit"`
	Smoothing    float64 `yaml:"smoothing" json:"smoothing"`
}

func Defaults() Tuning {
	return Tuning{
		Navigation: Navigation{
			DefaultRange:        1,
			StuckThreshold:      2,
			StuckRecoveryChance: 0.5,
			MinRouteDistance:    2,
			MaxOps:              20000,
			MaxRegions:          16,
			HighwayInterval:     10,
			PlainCost:           2,
			SwampCost:           10,
			SearchHighWater:     150000,
		},
		PathCache: PathCache{
			MaxPaths:         3000,
			HorizonCycles:    20000,
			MaintenanceEvery: 100,
			TrimFill:         0.9,
			FuzzyRadius:      1,
			Slots:            []int{10, 11, 12, 13, 14},
		},
		Segments: Segments{
			SlotCount:        100,
			SlotCapacity:     100 * 1024,
			MaxActive:        10,
			MaxSavesPerCycle: 9,
		},
		Budget: Budget{
			CycleOpLimit: 500000,
			Smoothing:    0.1,
		},
	}
}

// Load reads a YAML tuning file over the defaults. An empty path returns the
// defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := validateSchema(raw); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("navigation.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

// validateSchema checks the raw YAML document against the embedded schema.
// The document goes through JSON so the validator sees json.Number values.
func validateSchema(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Validate checks cross-field constraints the schema cannot express.
func (t Tuning) Validate() error {
	n := t.Navigation
	if n.StuckRecoveryChance < 0 || n.StuckRecoveryChance > 1 {
		return fmt.Errorf("%w: stuck_recovery_chance %v outside [0,1]", ErrInvalid, n.StuckRecoveryChance)
	}
	if n.MaxOps <= 0 || n.MaxRegions <= 0 {
		return fmt.Errorf("%w: max_ops and max_regions must be positive", ErrInvalid)
	}
	if n.PlainCost <= 0 || n.SwampCost <= 0 || n.PlainCost > 254 || n.SwampCost > 254 {
		return fmt.Errorf("%w: terrain costs must be in [1,254]", ErrInvalid)
	}

	c := t.PathCache
	if c.MaxPaths <= 0 {
		return fmt.Errorf("%w: max_paths must be positive", ErrInvalid)
	}
	if c.TrimFill <= 0 || c.TrimFill > 1 {
		return fmt.Errorf("%w: trim_fill %v outside (0,1]", ErrInvalid, c.TrimFill)
	}
	if c.MaintenanceEvery <= 0 {
		return fmt.Errorf("%w: maintenance_every must be positive", ErrInvalid)
	}

	s := t.Segments
	if s.MaxActive <= 0 || s.MaxSavesPerCycle <= 0 || s.SlotCapacity <= 0 || s.SlotCount <= 0 {
		return fmt.Errorf("%w: segment limits must be positive", ErrInvalid)
	}
	seen := map[int]bool{}
	for _, id := range c.Slots {
		if id < 0 || id >= s.SlotCount {
			return fmt.Errorf("%w: path_cache slot %d outside [0,%d)", ErrInvalid, id, s.SlotCount)
		}
		if seen[id] {
			return fmt.Errorf("%w: path_cache slot %d listed twice", ErrInvalid, id)
		}
		seen[id] = true
	}

	if t.Budget.CycleOpLimit <= 0 {
		return fmt.Errorf("%w: cycle_op_limit must be positive", ErrInvalid)
	}
	return nil
}
