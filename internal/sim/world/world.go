package world

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"hypervoxel.ai/internal/persistence/snapshot"
	"hypervoxel.ai/internal/protocol"
	movementrt "hypervoxel.ai/internal/sim/world/feature/movement/runtime"
	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
	"hypervoxel.ai/internal/sim/world/logic/ids"
	"hypervoxel.ai/internal/sim/world/logic/lattice"
	"hypervoxel.ai/internal/sim/world/terrain/store"
)

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig
	lat *lattice.Lattice

	tick atomic.Uint64

	chunks *store.ChunkStore

	agents  map[string]*Agent
	clients map[string]*clientState

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	admin chan snapshotReq
	stop  chan struct{}

	nextAgentNum atomic.Uint64

	// Optional logger (may be nil). Implemented in internal/persistence/*.
	tickLogger TickLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value
}

func New(cfg WorldConfig) (*World, error) {
	cfg.applyDefaults()
	lat, err := lattice.New(cfg.GridSubdivisions)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", cfg.ID, err)
	}
	w := &World{
		cfg:     cfg,
		lat:     lat,
		chunks:  store.NewChunkStore(cfg.worldGen()),
		agents:  map[string]*Agent{},
		clients: map[string]*clientState{},
		inbox:   make(chan ActionEnvelope, 1024),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan string, 64),
		admin:   make(chan snapshotReq, 8),
		stop:    make(chan struct{}),
	}
	w.chunks.GetOrGenChunk(fuchsian.Identity[euclid.Big]())
	w.metrics.Store(WorldMetrics{LoadedChunks: len(w.chunks.Chunks)})
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig { return w.cfg }

// Lattice exposes the floating table the world was built with.
func (w *World) Lattice() *lattice.Lattice { return w.lat }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingAdmin []snapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			w.handleSnapshotRequests(pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(joins, leaves, actions)
	return tick, w.stateDigest(tick)
}

func (w *World) joinAgent(name string, out chan []byte) JoinResponse {
	if name == "" {
		name = "agent"
	}
	agentID := ids.AgentID(w.nextAgentNum.Add(1))

	a := &Agent{
		ID:      agentID,
		Name:    name,
		tracker: movementrt.NewTracker[euclid.Big](w.lat, w.cfg.MaxStep),
	}
	w.agents[agentID] = a
	if out != nil {
		w.clients[agentID] = &clientState{Out: out}
	}

	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         agentID,
		WorldID:         w.cfg.ID,
		WorldParams: protocol.WorldParams{
			TickRateHz:       w.cfg.TickRateHz,
			GridSubdivisions: w.cfg.GridSubdivisions,
			ObsRadius:        w.cfg.ObsRadius,
			MaxStep:          w.cfg.MaxStep,
			Seed:             w.cfg.Seed,
		},
		Tile: tileRef(a.tracker.Position()),
	}}
}

// handleLeave detaches the client. The agent stays in the world.
func (w *World) handleLeave(agentID string) {
	delete(w.clients, agentID)
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

type snapshotReq struct {
	Resp chan snapshotResp
}

type snapshotResp struct {
	Tick uint64
	Err  error
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	if w == nil {
		return 0, errors.New("snapshot not available")
	}
	req := snapshotReq{Resp: make(chan snapshotResp, 1)}
	select {
	case w.admin <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-req.Resp:
		return r.Tick, r.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleSnapshotRequests(reqs []snapshotReq) {
	if len(reqs) == 0 {
		return
	}
	var resp snapshotResp
	// The step just finished, so the last completed tick is current-1.
	resp.Tick = w.tick.Load() - 1
	if w.snapshotSink == nil {
		resp.Err = errors.New("snapshot sink not configured")
	} else {
		select {
		case w.snapshotSink <- w.ExportSnapshot(resp.Tick):
		default:
			resp.Err = errors.New("snapshot sink busy")
		}
	}
	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
			// Client timed out; don't block the sim loop.
		}
	}
}
