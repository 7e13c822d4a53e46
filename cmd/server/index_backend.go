package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hypervoxel.ai/internal/persistence/indexdb"
	"hypervoxel.ai/internal/persistence/snapshot"
	"hypervoxel.ai/internal/sim/tuning"
	"hypervoxel.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	Close() error
	Stats() indexdb.Stats
	UpsertTuning(tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	RecordSnapshotState(snap snapshot.SnapshotV1)
}

func indexPath(worldDir string) string {
	return filepath.Join(worldDir, "index", "world.sqlite")
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("HV_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(indexPath(worldDir))
	default:
		return nil, fmt.Errorf("unsupported HV_INDEX_BACKEND: %s", backend)
	}
}
