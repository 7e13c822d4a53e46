package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentName       string `json:"agent_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	AgentID         string      `json:"agent_id"`
	WorldID         string      `json:"world_id,omitempty"`
	WorldParams     WorldParams `json:"world_params"`
	Tile            TileRef     `json:"tile"`
}

type WorldParams struct {
	TickRateHz       int     `json:"tick_rate_hz"`
	GridSubdivisions int     `json:"grid_subdivisions"`
	ObsRadius        int     `json:"obs_radius"`
	MaxStep          float64 `json:"max_step"`
	Seed             int64   `json:"seed"`
}

// TileRef names a tile by its canonical position. B and D are the position's
// Gaussian integers as decimal (re, im) pairs; Key is the hex binary form.
type TileRef struct {
	Key string    `json:"key"`
	B   [2]string `json:"b"`
	D   [2]string `json:"d"`
}

// MOVE (client -> server). DX and DY are hyperbolic distances in the
// walker's frame; the server clamps the length to max_step.
type MoveMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	DX              float64 `json:"dx"`
	DY              float64 `json:"dy"`
}

// OBS (server -> client)
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`

	Tile TileRef `json:"tile"`
	// Point is the agent's location in its tile's disk frame.
	Point [2]float64 `json:"point"`
	Cell  [2]int     `json:"cell"`
	Block string     `json:"block"`

	Neighbours []NeighbourRef `json:"neighbours"`
	Nearby     []NearbyTile   `json:"nearby,omitempty"`
	Agents     []NearbyAgent  `json:"agents,omitempty"`
	Events     []Event        `json:"events,omitempty"`
}

type NeighbourRef struct {
	Slot int    `json:"slot"`
	Key  string `json:"key"`
}

type NearbyTile struct {
	Key   string `json:"key"`
	Depth int    `json:"depth"`
}

type NearbyAgent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tile string `json:"tile"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message}
}
