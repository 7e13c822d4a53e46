package world

import (
	"hypervoxel.ai/internal/protocol"
	movementrt "hypervoxel.ai/internal/sim/world/feature/movement/runtime"
	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/lattice"
	"hypervoxel.ai/internal/sim/world/logic/rates"
)

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type ActionEnvelope struct {
	AgentID string
	Move    protocol.MoveMsg
}

type RecordedJoin struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

type RecordedMove struct {
	AgentID string  `json:"agent_id"`
	DX      float64 `json:"dx"`
	DY      float64 `json:"dy"`
}

// RecordedCrossing is one agent moving from tile From into its neighbour
// slot Neighbour, now tile To. Keys are hex positions.
type RecordedCrossing struct {
	AgentID   string `json:"agent_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Neighbour int    `json:"neighbour"`
}

type TickLogEntry struct {
	Tick      uint64             `json:"tick"`
	Joins     []RecordedJoin     `json:"joins,omitempty"`
	Leaves    []string           `json:"leaves,omitempty"`
	Moves     []RecordedMove     `json:"moves,omitempty"`
	Crossings []RecordedCrossing `json:"crossings,omitempty"`
	NewChunks []string           `json:"new_chunks,omitempty"`
	Digest    string             `json:"digest"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type Agent struct {
	ID   string
	Name string

	Crossings uint64

	tracker *movementrt.Tracker[euclid.Big]
	moves   rates.Window

	// nearby is the walk around the anchor tile, rebuilt after a crossing.
	nearby []lattice.Tile[euclid.Big]
	events []protocol.Event
}

func (a *Agent) AddEvent(e protocol.Event) {
	a.events = append(a.events, e)
}

func (a *Agent) TakeEvents() []protocol.Event {
	out := a.events
	a.events = nil
	return out
}

type clientState struct {
	Out chan []byte
}
