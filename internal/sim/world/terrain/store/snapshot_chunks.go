package store

import (
	"fmt"

	snapv1 "hypervoxel.ai/internal/persistence/snapshot"
	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
)

// ExportLoadedChunks converts loaded chunk data into snapshot chunks.
func ExportLoadedChunks(chunks map[ChunkKey]*Chunk, keys []ChunkKey) []snapv1.ChunkV1 {
	out := make([]snapv1.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := chunks[k]
		if ch == nil {
			continue
		}
		anchor, _ := ch.Iso.MarshalBinary()
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		out = append(out, snapv1.ChunkV1{
			Key:    string(k),
			Anchor: anchor,
			N:      ch.N,
			Blocks: blocks,
		})
	}
	return out
}

// ImportChunks rebuilds a chunk store from snapshot chunks. Every chunk must
// match the store's grid and its key must be the position of its anchor.
func ImportChunks(gen WorldGen, chunks []snapv1.ChunkV1) (*ChunkStore, error) {
	store := NewChunkStore(gen)
	for _, ch := range chunks {
		if ch.N != gen.N {
			return nil, fmt.Errorf("snapshot chunk %s grid mismatch: got %d want %d", ch.Key, ch.N, gen.N)
		}
		if len(ch.Blocks) != gen.N*gen.N {
			return nil, fmt.Errorf("snapshot chunk %s blocks length mismatch: got %d want %d", ch.Key, len(ch.Blocks), gen.N*gen.N)
		}
		iso, err := fuchsian.ParseIsometry[euclid.Big](ch.Anchor)
		if err != nil {
			return nil, fmt.Errorf("snapshot chunk %s anchor: %w", ch.Key, err)
		}
		pos := iso.Position()
		k := KeyOf(pos)
		if string(k) != ch.Key {
			return nil, fmt.Errorf("snapshot chunk key %s does not match anchor position %s", ch.Key, k)
		}
		if _, dup := store.Chunks[k]; dup {
			return nil, fmt.Errorf("snapshot chunk %s listed twice", ch.Key)
		}
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		c := &Chunk{
			Key:    k,
			Iso:    iso,
			Pos:    pos,
			N:      ch.N,
			Blocks: blocks,
		}
		_ = c.Digest()
		store.Chunks[k] = c
	}
	return store, nil
}
