package observerproto

import (
	"colonynav.ai/internal/nav/costgrid"
	"colonynav.ai/internal/nav/pathcache"
	"colonynav.ai/internal/nav/travel"
	"colonynav.ai/internal/persistence/segments"
	"colonynav.ai/internal/sim/budget"
)

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeCycle     = "CYCLE"
)

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Every N cycles one CYCLE message is sent; 0 means every cycle.
	Every int `json:"every,omitempty"`
	// Agents asks for the per-agent table in each CYCLE message.
	Agents bool `json:"agents,omitempty"`
}

// HTTP response for GET /observer/v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	Cycle           uint64      `json:"cycle"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	RegionSize      int      `json:"region_size"`
	Regions         []string `json:"regions"`
	Agents          int      `json:"agents"`
	Seed            int64    `json:"seed"`
	HighwayInterval int      `json:"highway_interval"`
}

// Server -> Client. Sent after every completed cycle.
type CycleMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Cycle           uint64 `json:"cycle"`

	Travel travel.Stats        `json:"travel"`
	Budget budget.Snapshot     `json:"budget"`
	Cache  pathcache.Stats     `json:"cache"`
	Pager  segments.Stats      `json:"pager"`
	Grids  costgrid.StoreStats `json:"grids"`

	Agents []AgentState `json:"agents,omitempty"`
}

type AgentState struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Pos     string `json:"pos"`
	Dest    string `json:"dest,omitempty"`
	PathLen int    `json:"path_len"`
	Stuck   int    `json:"stuck"`
	Fatigue int    `json:"fatigue,omitempty"`
}

// HTTP response for GET /observer/v1/grid?region=E1S2. Cells are the cached
// structure layer of the region, row-major.
type GridResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	Region          string `json:"region"`
	Size            int    `json:"size"`
	// Encoding "RLE8_B64": base64 of uvarint (value, run) pairs.
	Encoding   string `json:"encoding"`
	Data       string `json:"data"`
	Impassable int    `json:"impassable"`
}
