package store

import (
	"sort"

	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
	genpkg "hypervoxel.ai/internal/sim/world/terrain/gen"
)

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (s *ChunkStore) Chunk(k ChunkKey) *Chunk {
	return s.Chunks[k]
}

// GetBlock reads a loaded tile. Unloaded tiles and cells off the grid read
// as air.
func (s *ChunkStore) GetBlock(k ChunkKey, i, j int) uint16 {
	ch := s.Chunks[k]
	if ch == nil {
		return genpkg.Air
	}
	return ch.Get(i, j)
}

// SetBlock writes a loaded tile and reports whether the cell exists.
func (s *ChunkStore) SetBlock(k ChunkKey, i, j int, b uint16) bool {
	ch := s.Chunks[k]
	if ch == nil {
		return false
	}
	return ch.Set(i, j, b)
}

// GetOrGenChunk returns the tile that iso maps the origin tile onto,
// generating it on first visit. created is true when the tile is new.
func (s *ChunkStore) GetOrGenChunk(iso fuchsian.Isometry[euclid.Big]) (ch *Chunk, created bool) {
	pos := iso.Position()
	k := KeyOf(pos)
	if ch, ok := s.Chunks[k]; ok {
		return ch, false
	}
	ch = &Chunk{
		Key:    k,
		Iso:    iso.Simplify(),
		Pos:    pos,
		N:      s.Gen.N,
		Blocks: make([]uint16, s.Gen.N*s.Gen.N),
	}
	s.GenerateChunk(ch)
	ch.dirty = true
	_ = ch.Digest()
	s.Chunks[k] = ch
	return ch, true
}
