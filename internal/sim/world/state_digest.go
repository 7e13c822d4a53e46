package world

import (
	"crypto/sha256"
	"encoding/hex"

	"hypervoxel.ai/internal/sim/world/io/digestcodec"
)

func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestcodec.WriteU64(h, &tmp, nowTick)
	digestcodec.WriteI64(h, &tmp, w.cfg.Seed)
	digestcodec.WriteU64(h, &tmp, uint64(w.cfg.GridSubdivisions))

	keys := w.chunks.LoadedChunkKeys()
	digestcodec.WriteU64(h, &tmp, uint64(len(keys)))
	for _, k := range keys {
		d := w.chunks.Chunk(k).Digest()
		h.Write(d[:])
	}

	ids := w.sortedAgentIDs()
	digestcodec.WriteU64(h, &tmp, uint64(len(ids)))
	for _, id := range ids {
		a := w.agents[id]
		digestcodec.WriteString(h, &tmp, a.ID)
		digestcodec.WriteString(h, &tmp, a.Name)
		anchor, _ := a.tracker.Anchor().MarshalBinary()
		digestcodec.WriteBytes(h, &tmp, anchor)
		local := a.tracker.Local()
		digestcodec.WriteF64(h, &tmp, real(local.A))
		digestcodec.WriteF64(h, &tmp, imag(local.A))
		digestcodec.WriteF64(h, &tmp, real(local.B))
		digestcodec.WriteF64(h, &tmp, imag(local.B))
		digestcodec.WriteU64(h, &tmp, a.Crossings)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// DebugStateDigest returns the digest StepOnce would report for nowTick. It
// must be called from the goroutine that owns the world.
func (w *World) DebugStateDigest(nowTick uint64) string {
	return w.stateDigest(nowTick)
}
