package store

import (
	"crypto/sha256"
	"encoding/binary"

	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
	genpkg "hypervoxel.ai/internal/sim/world/terrain/gen"
)

// ChunkKey is the hex form of a tile's canonical position.
type ChunkKey string

func KeyOf(p fuchsian.Position[euclid.Big]) ChunkKey {
	return ChunkKey(p.Hex())
}

// Chunk is the content of one tile.
type Chunk struct {
	Key ChunkKey
	// Iso places the tile: it maps the origin tile onto this one.
	Iso fuchsian.Isometry[euclid.Big]
	Pos fuchsian.Position[euclid.Big]

	N      int
	Blocks []uint16 // len = N*N, cell (i, j) at i + j*N

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(i, j int) int {
	return i + j*c.N
}

func (c *Chunk) inGrid(i, j int) bool {
	return i >= 0 && j >= 0 && i < c.N && j < c.N
}

func (c *Chunk) Get(i, j int) uint16 {
	if !c.inGrid(i, j) {
		return genpkg.Air
	}
	return c.Blocks[c.index(i, j)]
}

func (c *Chunk) Set(i, j int, b uint16) bool {
	if !c.inGrid(i, j) {
		return false
	}
	k := c.index(i, j)
	if c.Blocks[k] == b {
		return true
	}
	c.Blocks[k] = b
	c.dirty = true
	return true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		h.Write([]byte(c.Key))
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type WorldGen = genpkg.Params

// ChunkStore owns every loaded tile. It is not safe for concurrent use; the
// world loop is its only caller.
type ChunkStore struct {
	Gen    WorldGen
	Chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	return &ChunkStore{
		Gen:    gen,
		Chunks: map[ChunkKey]*Chunk{},
	}
}
