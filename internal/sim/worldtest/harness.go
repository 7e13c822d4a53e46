package worldtest

import (
	"encoding/json"
	"testing"

	"hypervoxel.ai/internal/persistence/snapshot"
	"hypervoxel.ai/internal/protocol"
	world "hypervoxel.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() issues JoinRequest via StepOnce()
// - Move()/MoveFor() issues MOVE via StepOnce()
// - Per-agent Out channels carry OBS JSON
//
// It intentionally avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T *testing.T
	W *world.World

	DefaultAgentID string
	// Digest is the state digest reported by the last step.
	Digest string

	sessions map[string]*session
}

func NewHarness(t *testing.T, cfg world.WorldConfig, agentName string) *Harness {
	t.Helper()

	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, agentName)
}

// NewHarnessWithWorld is like NewHarness, but uses an already-constructed world instance.
// This is useful for snapshot round-trip tests where the snapshot is imported before join.
// An empty agentName joins nobody.
func NewHarnessWithWorld(t *testing.T, w *world.World, agentName string) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}

	h := &Harness{
		T:        t,
		W:        w,
		sessions: map[string]*session{},
	}
	if agentName != "" {
		h.DefaultAgentID = h.Join(agentName)
	}
	return h
}

type session struct {
	AgentID string
	Out     chan []byte
	lastObs protocol.ObsMsg
}

func (h *Harness) Join(agentName string) string {
	h.T.Helper()

	out := make(chan []byte, 16)
	resp := make(chan world.JoinResponse, 1)
	_, h.Digest = h.W.StepOnce([]world.JoinRequest{{
		Name: agentName,
		Out:  out,
		Resp: resp,
	}}, nil, nil)
	jr := <-resp
	if jr.Welcome.AgentID == "" {
		h.T.Fatalf("join returned empty agent id")
	}
	s := &session{AgentID: jr.Welcome.AgentID, Out: out}
	h.sessions[s.AgentID] = s
	h.drainAllObs()
	return s.AgentID
}

func (h *Harness) LastObs() protocol.ObsMsg {
	return h.LastObsFor(h.DefaultAgentID)
}

func (h *Harness) LastObsFor(agentID string) protocol.ObsMsg {
	h.T.Helper()
	s := h.sessions[agentID]
	if s == nil {
		h.T.Fatalf("unknown agent id: %q", agentID)
	}
	return s.lastObs
}

func MoveEnvelope(agentID string, tick uint64, dx, dy float64) world.ActionEnvelope {
	return world.ActionEnvelope{
		AgentID: agentID,
		Move: protocol.MoveMsg{
			Type:            protocol.TypeMove,
			ProtocolVersion: protocol.Version,
			Tick:            tick,
			DX:              dx,
			DY:              dy,
		},
	}
}

func (h *Harness) Move(dx, dy float64) protocol.ObsMsg {
	return h.MoveFor(h.DefaultAgentID, dx, dy)
}

func (h *Harness) MoveFor(agentID string, dx, dy float64) protocol.ObsMsg {
	h.T.Helper()
	h.StepMulti([]world.ActionEnvelope{MoveEnvelope(agentID, h.W.CurrentTick(), dx, dy)})
	return h.LastObsFor(agentID)
}

// MoveN repeats one MOVE for n ticks.
func (h *Harness) MoveN(n int, dx, dy float64) protocol.ObsMsg {
	h.T.Helper()
	var obs protocol.ObsMsg
	for i := 0; i < n; i++ {
		obs = h.Move(dx, dy)
	}
	return obs
}

func (h *Harness) StepMulti(actions []world.ActionEnvelope) {
	h.T.Helper()
	_, h.Digest = h.W.StepOnce(nil, nil, actions)
	h.drainAllObs()
}

func (h *Harness) StepNoop() protocol.ObsMsg {
	h.T.Helper()
	_, h.Digest = h.W.StepOnce(nil, nil, nil)
	h.drainAllObs()
	if h.DefaultAgentID == "" {
		return protocol.ObsMsg{}
	}
	return h.LastObs()
}

func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	// Keep tick stable: export at currentTick-1 then import would restore to currentTick.
	cur := h.W.CurrentTick()
	if cur == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	tick = cur - 1
	return tick, h.W.ExportSnapshot(tick)
}

func (h *Harness) drainAllObs() {
	h.T.Helper()
	for _, s := range h.sessions {
		h.drainOneObs(s)
	}
}

func (h *Harness) drainOneObs(s *session) {
	h.T.Helper()
	var last []byte
	for {
		select {
		case b := <-s.Out:
			last = b
			continue
		default:
		}
		break
	}
	if len(last) == 0 {
		return
	}
	var obs protocol.ObsMsg
	if err := json.Unmarshal(last, &obs); err != nil {
		h.T.Fatalf("unmarshal OBS: %v", err)
	}
	s.lastObs = obs
}
