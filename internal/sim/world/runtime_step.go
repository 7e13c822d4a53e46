package world

import (
	"encoding/json"
	"sort"
	"time"

	"hypervoxel.ai/internal/protocol"
	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/lattice"
)

func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	// Apply leaves and joins deterministically at tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.agents[id]; ok {
			w.handleLeave(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinAgent(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{AgentID: resp.Welcome.AgentID, Name: req.Name})
	}

	// Apply moves in server_receive_order (the inbox order).
	recordedMoves := make([]RecordedMove, 0, len(actions))
	var crossings []RecordedCrossing
	for _, env := range actions {
		a := w.agents[env.AgentID]
		if a == nil {
			continue
		}
		if ok, cooldown := a.moves.Allow(nowTick, 1, w.cfg.MovesPerTick); !ok {
			a.AddEvent(protocol.Event{
				"t":              nowTick,
				"type":           protocol.TypeError,
				"code":           protocol.ErrRateLimit,
				"message":        "too many moves this tick",
				"cooldown_ticks": cooldown,
			})
			continue
		}
		recordedMoves = append(recordedMoves, RecordedMove{AgentID: a.ID, DX: env.Move.DX, DY: env.Move.DY})
		if c, ok := w.applyMove(a, env.Move, nowTick); ok {
			crossings = append(crossings, c)
		}
	}

	newChunks := w.systemChunks()

	// Build + send OBS for each agent.
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		cl := w.clients[id]
		if cl == nil {
			a.TakeEvents()
			continue
		}
		b, err := json.Marshal(w.buildObs(a, nowTick))
		if err != nil {
			continue
		}
		sendLatest(cl.Out, b)
	}

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:      nowTick,
			Joins:     recordedJoins,
			Leaves:    recordedLeaves,
			Moves:     recordedMoves,
			Crossings: crossings,
			NewChunks: newChunks,
			Digest:    digest,
		})
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
			snap := w.ExportSnapshot(nowTick)
			select {
			case w.snapshotSink <- snap:
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	nextTick := w.tick.Add(1)
	var total uint64
	for _, a := range w.agents {
		total += a.Crossings
	}
	w.metrics.Store(WorldMetrics{
		Tick:         nextTick,
		Agents:       len(w.agents),
		Clients:      len(w.clients),
		LoadedChunks: len(w.chunks.Chunks),
		Crossings:    total,
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS: float64(time.Since(stepStart).Microseconds()) / 1000.0,
	})
}

func (w *World) applyMove(a *Agent, mv protocol.MoveMsg, nowTick uint64) (RecordedCrossing, bool) {
	res := a.tracker.Step(mv.DX, mv.DY)
	if res.Lost {
		a.AddEvent(protocol.Event{"t": nowTick, "type": "LOST"})
	}
	if !res.Crossed {
		return RecordedCrossing{}, false
	}
	a.Crossings++
	a.nearby = nil
	a.AddEvent(protocol.Event{
		"t":         nowTick,
		"type":      "CROSSED",
		"neighbour": res.Neighbour,
		"from":      res.From,
		"to":        res.To,
	})
	return RecordedCrossing{AgentID: a.ID, From: res.From, To: res.To, Neighbour: res.Neighbour}, true
}

// systemChunks generates every tile within the observation radius of an
// agent and returns the keys of tiles created this tick, in creation order.
func (w *World) systemChunks() []string {
	var created []string
	for _, id := range w.sortedAgentIDs() {
		a := w.agents[id]
		for _, t := range w.nearbyTiles(a) {
			if t.Depth > w.cfg.ObsRadius {
				continue
			}
			if ch, isNew := w.chunks.GetOrGenChunk(t.Isometry); isNew {
				created = append(created, string(ch.Key))
			}
		}
	}
	return created
}

// nearbyTiles walks at least one step so that entries 1..16 are the anchor's
// neighbours in slot order.
func (w *World) nearbyTiles(a *Agent) []lattice.Tile[euclid.Big] {
	if a.nearby == nil {
		a.nearby = lattice.Walk(a.tracker.Anchor(), max(1, w.cfg.ObsRadius))
	}
	return a.nearby
}

func (w *World) sortedAgentIDs() []string {
	out := make([]string, 0, len(w.agents))
	for id := range w.agents {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
