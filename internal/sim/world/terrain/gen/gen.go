package gen

import "hypervoxel.ai/internal/sim/world/logic/mathx"

// Block ids.
const (
	Air uint16 = iota
	Floor
	Stone
	Ore
	Pillar
)

var BlockNames = []string{"AIR", "FLOOR", "STONE", "ORE", "PILLAR"}

type Params struct {
	Seed int64
	N    int

	SpawnClearRadius int
	StonePermille    int
	OrePermille      int
	PillarPermille   int
}

// TileHash seeds everything generated inside one tile. key is the tile's
// canonical position in binary form, so the result does not depend on the
// path that reached the tile.
func TileHash(seed int64, key []byte) uint64 {
	return mathx.HashBytes(seed, key)
}

func BiomeFrom(noise uint64) string {
	switch noise % 3 {
	case 0:
		return "PLAINS"
	case 1:
		return "FOREST"
	default:
		return "DESERT"
	}
}

func biomeStonePermille(biome string) int {
	switch biome {
	case "PLAINS":
		return 500
	case "DESERT":
		return 2000
	default:
		return 1000
	}
}

// WithinSpawnClear reports that cell (i, j) is within radius cells of the
// centre of an n×n grid (Chebyshev distance).
func WithinSpawnClear(i, j, n, radius int) bool {
	if radius <= 0 {
		return false
	}
	c := n / 2
	di := mathx.AbsInt(2*i + 1 - 2*c)
	dj := mathx.AbsInt(2*j + 1 - 2*c)
	return max(di, dj) <= 2*radius
}

func ClampPermille(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}

func ScalePermille(base int, scalePermille int) int {
	if scalePermille <= 0 {
		scalePermille = 1000
	}
	return ClampPermille((base*scalePermille + 500) / 1000)
}

// Block is the generated block at cell (i, j) of the tile with hash tile.
// spawn marks the origin tile, whose centre is kept clear.
func Block(p Params, tile uint64, spawn bool, i, j int) uint16 {
	if spawn && WithinSpawnClear(i, j, p.N, p.SpawnClearRadius) {
		return Floor
	}
	last := p.N - 1
	corner := (i == 0 || i == last) && (j == 0 || j == last)
	if corner && int(tile>>32%1000) < ClampPermille(p.PillarPermille) {
		return Pillar
	}

	roll := int(mathx.Hash2(tile, i, j) % 1000)
	ore := ClampPermille(p.OrePermille)
	stone := ScalePermille(p.StonePermille, biomeStonePermille(BiomeFrom(tile)))
	switch {
	case roll < ore:
		return Ore
	case roll < ore+stone:
		return Stone
	}
	return Floor
}
