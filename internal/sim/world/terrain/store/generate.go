package store

import genpkg "hypervoxel.ai/internal/sim/world/terrain/gen"

func (s *ChunkStore) GenerateChunk(ch *Chunk) {
	raw, _ := ch.Pos.MarshalBinary()
	tile := genpkg.TileHash(s.Gen.Seed, raw)
	spawn := ch.Pos.IsOrigin()
	for j := 0; j < ch.N; j++ {
		for i := 0; i < ch.N; i++ {
			ch.Blocks[ch.index(i, j)] = genpkg.Block(s.Gen, tile, spawn, i, j)
		}
	}
}
