package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Chunks  int    `json:"chunks"`
	Agents  int    `json:"agents"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed               int64   `json:"seed"`
	TickRate           int     `json:"tick_rate_hz"`
	GridSubdivisions   int     `json:"grid_subdivisions"`
	MaxStep            float64 `json:"max_step"`
	ObsRadius          int     `json:"obs_radius"`
	SnapshotEveryTicks int     `json:"snapshot_every_ticks,omitempty"`

	// Worldgen tuning.
	SpawnClearRadius int `json:"spawn_clear_radius,omitempty"`
	StonePermille    int `json:"stone_permille,omitempty"`
	OrePermille      int `json:"ore_permille,omitempty"`
	PillarPermille   int `json:"pillar_permille,omitempty"`

	Chunks []ChunkV1 `json:"chunks"`
	Agents []AgentV1 `json:"agents"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextAgent uint64 `json:"next_agent"`
}

// ChunkV1 is one tile. Key is the hex canonical position; Anchor is the
// binary form of the isometry that places the tile.
type ChunkV1 struct {
	Key    string   `json:"key"`
	Anchor []byte   `json:"anchor"`
	N      int      `json:"n"`
	Blocks []uint16 `json:"blocks"`
}

// AgentV1 is a tracked walker: its anchor tile isometry in binary form and
// the floating offset inside that tile as (re A, im A, re B, im B).
type AgentV1 struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Anchor    []byte     `json:"anchor"`
	Local     [4]float64 `json:"local"`
	Crossings uint64     `json:"crossings,omitempty"`
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded
// snapshot, all inside one zstd stream.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	snap.Header.Version = Version
	snap.Header.Chunks = len(snap.Chunks)
	snap.Header.Agents = len(snap.Agents)

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func open(path string) (*os.File, *zstd.Decoder, *bufio.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, nil, err
	}
	return f, dec, bufio.NewReaderSize(dec, 256*1024), nil
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, dec, br, err := open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	defer dec.Close()

	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("snapshot header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("snapshot header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, dec, br, err := open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	defer dec.Close()

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("snapshot header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot version %d not supported", snap.Header.Version)
	}
	return snap, nil
}
