package geo

// Terrain is the immutable ground type of a tile.
type Terrain uint8

const (
	TerrainPlain Terrain = iota
	TerrainSwamp
	TerrainWall
)

func (t Terrain) String() string {
	switch t {
	case TerrainPlain:
		return "plain"
	case TerrainSwamp:
		return "swamp"
	case TerrainWall:
		return "wall"
	}
	return "unknown"
}

// Structure is what the world reports about a built object on a tile.
// TrafficCost > 0 overrides the terrain cost (roads use 1).
type Structure struct {
	Kind        string
	Impassable  bool
	TrafficCost uint8
}
