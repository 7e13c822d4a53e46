// Command tileinfo walks a word of tile steps from the origin and prints
// where it lands: the canonical position, its neighbours and the generated
// cell map.
//
//	tileinfo -path RRUL
//	tileinfo -path RRUL -backend int -db ./data/worlds/world_1/index/world.sqlite
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/color"

	"hypervoxel.ai/internal/persistence/indexdb"
	"hypervoxel.ai/internal/sim/tuning"
	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
	"hypervoxel.ai/internal/sim/world/logic/lattice"
	"hypervoxel.ai/internal/sim/world/logic/mobius"
	"hypervoxel.ai/internal/sim/world/terrain/gen"
	"hypervoxel.ai/internal/sim/world/terrain/store"
)

var (
	styleHead   = color.Style{color.FgCyan, color.OpBold}
	styleKey    = color.Style{color.FgYellow}
	styleSubtle = color.Style{color.FgGray}
	styleErr    = color.Style{color.FgRed, color.OpBold}

	blockStyles = map[uint16]color.Style{
		gen.Air:    {color.FgGray},
		gen.Floor:  {color.FgGreen},
		gen.Stone:  {color.FgWhite, color.OpBold},
		gen.Ore:    {color.FgMagenta, color.OpBold},
		gen.Pillar: {color.FgBlue, color.OpBold},
	}
	blockGlyphs = map[uint16]string{
		gen.Air:    ".",
		gen.Floor:  "_",
		gen.Stone:  "#",
		gen.Ore:    "*",
		gen.Pillar: "I",
	}
)

type options struct {
	Path    string
	Backend string
	Configs string
	Tuning  string
	DB      string
	NoMap   bool
}

func main() {
	var o options
	flag.StringVar(&o.Path, "path", "", "tile steps from the origin: R(ight) U(p) L(eft) D(own)")
	flag.StringVar(&o.Backend, "backend", "big", "integer backend for the walk: int|big")
	flag.StringVar(&o.Configs, "configs", "./configs", "config directory")
	flag.StringVar(&o.Tuning, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	flag.StringVar(&o.DB, "db", "", "sqlite index to look the tile up in (optional)")
	flag.BoolVar(&o.NoMap, "nomap", false, "skip the cell map")
	flag.Parse()

	if err := run(context.Background(), o, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, styleErr.Sprint("tileinfo: "+err.Error()))
		os.Exit(1)
	}
}

// parseWord turns direction letters into lattice directions.
func parseWord(s string) ([]int, error) {
	var dirs []int
	for i, r := range strings.ToUpper(strings.TrimSpace(s)) {
		switch r {
		case 'R':
			dirs = append(dirs, lattice.Right)
		case 'U':
			dirs = append(dirs, lattice.Up)
		case 'L':
			dirs = append(dirs, lattice.Left)
		case 'D':
			dirs = append(dirs, lattice.Down)
		case ' ', ',', '-':
		default:
			return nil, fmt.Errorf("bad step %q at %d", r, i)
		}
	}
	return dirs, nil
}

// walk composes the generators for dirs, simplifying after every step.
func walk[T euclid.Scalar[T]](dirs []int) fuchsian.Isometry[T] {
	g := fuchsian.Identity[T]()
	for _, d := range dirs {
		g = g.Compose(lattice.Generator[T](d)).Simplify()
	}
	return g
}

// walkBackend runs the walk on the chosen backend and returns the result on
// the big backend. The fixed-width backend panics on overflow; that is
// reported as an error naming the step count.
func walkBackend(backend string, dirs []int) (g fuchsian.Isometry[euclid.Big], err error) {
	switch backend {
	case "big":
		return walk[euclid.Big](dirs), nil
	case "int":
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("int backend overflowed within %d steps (%v); use -backend big", len(dirs), r)
			}
		}()
		return fuchsian.Convert[euclid.Big](walk[euclid.Int](dirs)), nil
	default:
		return g, fmt.Errorf("unknown backend %q", backend)
	}
}

// loadTuning falls back to the defaults only when there is no tuning file;
// a broken one is an error, since the map would not match the server's.
func loadTuning(o options) (tuning.Tuning, error) {
	tp := strings.TrimSpace(o.Tuning)
	if tp == "" {
		tp = filepath.Join(o.Configs, "tuning.yaml")
	}
	t, err := tuning.Load(tp)
	if errors.Is(err, fs.ErrNotExist) {
		return tuning.Defaults(), nil
	}
	if err != nil {
		return t, fmt.Errorf("load tuning %s: %w", tp, err)
	}
	return t, nil
}

func run(ctx context.Context, o options, out io.Writer) error {
	dirs, err := parseWord(o.Path)
	if err != nil {
		return err
	}
	g, err := walkBackend(o.Backend, dirs)
	if err != nil {
		return err
	}
	pos := g.Position()
	centre := pos.Center()

	fmt.Fprintln(out, styleHead.Sprint("tile"))
	fmt.Fprintf(out, "  path      %s (%d steps, %s backend)\n", strings.ToUpper(o.Path), len(dirs), o.Backend)
	fmt.Fprintf(out, "  position  %s\n", pos)
	fmt.Fprintf(out, "  key       %s\n", styleKey.Sprint(pos.Hex()))
	fmt.Fprintf(out, "  isometry  %s (%d bytes)\n", g, g.Size())
	fmt.Fprintf(out, "  centre    %.6g%+.6gi  distance %.6f\n", real(centre), imag(centre), mobius.Distance(0, centre))

	fmt.Fprintln(out, styleHead.Sprint("neighbours"))
	for k, n := range lattice.Neighbours[euclid.Big]() {
		np := g.Compose(n).Simplify().Position()
		mark := ""
		if np.IsOrigin() {
			mark = styleSubtle.Sprint("  (origin)")
		}
		fmt.Fprintf(out, "  %2d  %s%s\n", k, styleKey.Sprint(np.Hex()), mark)
	}

	if o.DB != "" {
		if err := printIndexed(ctx, o.DB, pos.Hex(), out); err != nil {
			return err
		}
	}

	if o.NoMap {
		return nil
	}
	t, err := loadTuning(o)
	if err != nil {
		return err
	}
	s := store.NewChunkStore(store.WorldGen{
		Seed:             t.Seed,
		N:                t.GridSubdivisions,
		SpawnClearRadius: t.WorldGen.SpawnClearRadius,
		StonePermille:    t.WorldGen.StonePermille,
		OrePermille:      t.WorldGen.OrePermille,
		PillarPermille:   t.WorldGen.PillarPermille,
	})
	ch, _ := s.GetOrGenChunk(g)
	d := ch.Digest()
	fmt.Fprintf(out, "%s  seed=%d n=%d digest=%x\n", styleHead.Sprint("cells"), t.Seed, ch.N, d[:8])
	// Row N-1 first so that Up is up on screen.
	for j := ch.N - 1; j >= 0; j-- {
		var b strings.Builder
		b.WriteString("  ")
		for i := 0; i < ch.N; i++ {
			id := ch.Get(i, j)
			glyph, ok := blockGlyphs[id]
			if !ok {
				glyph = "?"
			}
			b.WriteString(blockStyles[id].Sprint(glyph))
		}
		fmt.Fprintln(out, b.String())
	}
	return nil
}

func printIndexed(ctx context.Context, dbPath, key string, out io.Writer) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	r, err := indexdb.OpenReader(dbPath)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	defer r.Close()

	fmt.Fprintln(out, styleHead.Sprint("index"))
	row, ok, err := r.Chunk(ctx, key)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if !ok {
		fmt.Fprintln(out, styleSubtle.Sprint("  not generated yet"))
	} else {
		fmt.Fprintf(out, "  first seen at tick %d\n", row.FirstTick)
	}
	cs, err := r.Crossings(ctx, "")
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	in, outN := 0, 0
	for _, c := range cs {
		if c.To == key {
			in++
		}
		if c.From == key {
			outN++
		}
	}
	fmt.Fprintf(out, "  crossings in=%d out=%d\n", in, outN)
	return nil
}
