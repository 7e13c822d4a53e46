package world

import (
	"hypervoxel.ai/internal/protocol"
	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
	"hypervoxel.ai/internal/sim/world/logic/lattice"
	genpkg "hypervoxel.ai/internal/sim/world/terrain/gen"
	"hypervoxel.ai/internal/sim/world/terrain/store"
)

func tileRef(p fuchsian.Position[euclid.Big]) protocol.TileRef {
	return protocol.TileRef{
		Key: p.Hex(),
		B:   [2]string{p.B.Re.String(), p.B.Im.String()},
		D:   [2]string{p.D.Re.String(), p.D.Im.String()},
	}
}

func blockName(b uint16) string {
	if int(b) < len(genpkg.BlockNames) {
		return genpkg.BlockNames[b]
	}
	return "UNKNOWN"
}

func (w *World) buildObs(a *Agent, nowTick uint64) protocol.ObsMsg {
	pos := a.tracker.Position()
	pt := a.tracker.Point()
	i, j := a.tracker.Cell()
	tiles := w.nearbyTiles(a)

	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		AgentID:         a.ID,
		Tile:            tileRef(pos),
		Point:           [2]float64{real(pt), imag(pt)},
		Cell:            [2]int{i, j},
		Block:           blockName(w.chunks.GetBlock(store.KeyOf(pos), i, j)),
		Neighbours:      make([]protocol.NeighbourRef, 0, lattice.NeighbourCount),
		Events:          a.TakeEvents(),
	}
	for k := 0; k < lattice.NeighbourCount && k+1 < len(tiles); k++ {
		obs.Neighbours = append(obs.Neighbours, protocol.NeighbourRef{Slot: k, Key: tiles[k+1].Position.Hex()})
	}

	seen := map[string]bool{}
	for _, t := range tiles {
		if t.Depth > w.cfg.ObsRadius {
			continue
		}
		key := t.Position.Hex()
		seen[key] = true
		obs.Nearby = append(obs.Nearby, protocol.NearbyTile{Key: key, Depth: t.Depth})
	}
	for _, id := range w.sortedAgentIDs() {
		if id == a.ID {
			continue
		}
		other := w.agents[id]
		key := other.tracker.Position().Hex()
		if seen[key] {
			obs.Agents = append(obs.Agents, protocol.NearbyAgent{ID: other.ID, Name: other.Name, Tile: key})
		}
	}
	return obs
}
