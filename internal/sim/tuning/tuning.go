package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int   `yaml:"tick_rate_hz"`
	Seed       int64 `yaml:"seed"`

	// GridSubdivisions is the cell count per tile axis. Must be even.
	GridSubdivisions int `yaml:"grid_subdivisions"`
	// MaxStep caps one MOVE, in hyperbolic distance.
	MaxStep float64 `yaml:"max_step"`
	// ObsRadius is the number of neighbour steps reported in OBS.
	ObsRadius          int `yaml:"obs_radius"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	WorldGen WorldGen `yaml:"worldgen"`
}

type WorldGen struct {
	SpawnClearRadius int `yaml:"spawn_clear_radius"` // cells around the origin tile centre
	StonePermille    int `yaml:"stone_permille"`
	OrePermille      int `yaml:"ore_permille"`
	PillarPermille   int `yaml:"pillar_permille"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         5,
		Seed:               1337,
		GridSubdivisions:   16,
		MaxStep:            0.25,
		ObsRadius:          1,
		SnapshotEveryTicks: 3000,
		WorldGen: WorldGen{
			SpawnClearRadius: 3,
			StonePermille:    120,
			OrePermille:      15,
			PillarPermille:   250,
		},
	}
}

// Load reads path over Defaults, so a file may set only what it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz <= 0 || t.TickRateHz > 100 {
		errs = append(errs, fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz))
	}
	if t.GridSubdivisions < 2 || t.GridSubdivisions%2 != 0 {
		errs = append(errs, fmt.Errorf("grid_subdivisions must be even and >= 2: %d", t.GridSubdivisions))
	}
	// Half the centre-to-edge distance keeps a single move within one
	// neighbour step.
	if !(t.MaxStep > 0) || t.MaxStep > 0.3 {
		errs = append(errs, fmt.Errorf("max_step must be in (0, 0.3]: %v", t.MaxStep))
	}
	if t.ObsRadius < 0 || t.ObsRadius > 3 {
		errs = append(errs, fmt.Errorf("obs_radius must be in [0, 3]: %d", t.ObsRadius))
	}
	if t.SnapshotEveryTicks < 0 {
		errs = append(errs, fmt.Errorf("snapshot_every_ticks must be >= 0: %d", t.SnapshotEveryTicks))
	}
	for _, f := range []struct {
		name string
		v    int
	}{
		{"stone_permille", t.WorldGen.StonePermille},
		{"ore_permille", t.WorldGen.OrePermille},
		{"pillar_permille", t.WorldGen.PillarPermille},
	} {
		if f.v < 0 || f.v > 1000 {
			errs = append(errs, fmt.Errorf("worldgen.%s must be in [0, 1000]: %d", f.name, f.v))
		}
	}
	return errors.Join(errs...)
}
