package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hypervoxel.ai/internal/persistence/snapshot"
	"hypervoxel.ai/internal/sim/tuning"
	"hypervoxel.ai/internal/sim/world"
)

func TestLatestSnapshotPicksHighestTick(t *testing.T) {
	dir := t.TempDir()
	if got := latestSnapshot(dir); got != "" {
		t.Fatalf("empty dir: got %q", got)
	}
	snaps := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snaps, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"9.snap.zst", "120.snap.zst", "30.snap.zst", "abc.snap.zst", "500.tmp"} {
		if err := os.WriteFile(filepath.Join(snaps, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := latestSnapshot(dir), filepath.Join(snaps, "120.snap.zst"); got != want {
		t.Fatalf("latest=%q want %q", got, want)
	}
}

func TestBuildWorldResumesFromSnapshot(t *testing.T) {
	tune := tuning.Defaults()
	tune.GridSubdivisions = 8
	src, err := buildWorld("w1", tune, "")
	if err != nil {
		t.Fatalf("fresh world: %v", err)
	}
	out := make(chan []byte, 4)
	resp := make(chan world.JoinResponse, 1)
	src.StepOnce([]world.JoinRequest{{Name: "a", Out: out, Resp: resp}}, nil, nil)
	src.StepOnce(nil, nil, nil)

	path := filepath.Join(t.TempDir(), "snapshots", "1.snap.zst")
	if err := snapshot.WriteSnapshot(path, src.ExportSnapshot(1)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Tuning on disk may have drifted; the snapshot wins.
	drifted := tuning.Defaults()
	drifted.Seed = tune.Seed + 1
	w, err := buildWorld("w1", drifted, path)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if w.CurrentTick() != 2 {
		t.Fatalf("tick=%d want 2", w.CurrentTick())
	}
	if w.Config().Seed != tune.Seed || w.Config().GridSubdivisions != 8 {
		t.Fatalf("config not taken from snapshot: %+v", w.Config())
	}
	if w.Metrics().Agents != 1 {
		t.Fatalf("agents=%d want 1", w.Metrics().Agents)
	}

	if _, err := buildWorld("other", drifted, path); err == nil {
		t.Fatalf("expected world id mismatch")
	}
}

func TestAdminHandlersRequireLoopback(t *testing.T) {
	w, err := world.New(world.WorldConfig{ID: "w1", GridSubdivisions: 8})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	stateHandler(w)(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote state: code=%d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec = httptest.NewRecorder()
	stateHandler(w)(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"world_id":"w1"`) {
		t.Fatalf("local state: code=%d body=%s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/snapshot", nil)
	rec = httptest.NewRecorder()
	snapshotHandler(w)(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET snapshot: code=%d", rec.Code)
	}
}

func TestMetricsExposition(t *testing.T) {
	w, err := world.New(world.WorldConfig{ID: "w1", GridSubdivisions: 8})
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	metricsHandler(w, nil)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`hypervoxel_world_tick{world="w1"}`,
		`hypervoxel_world_loaded_chunks{world="w1"} 1`,
		`hypervoxel_world_queue_depth{world="w1",queue="inbox"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "hypervoxel_index_") {
		t.Fatalf("index metrics without an index:\n%s", body)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("HV_TEST_FLAG", "yes")
	if !envBool("HV_TEST_FLAG", false) {
		t.Fatalf("yes should be true")
	}
	t.Setenv("HV_TEST_FLAG", "off")
	if envBool("HV_TEST_FLAG", true) {
		t.Fatalf("off should be false")
	}
	t.Setenv("HV_TEST_FLAG", "maybe")
	if !envBool("HV_TEST_FLAG", true) {
		t.Fatalf("unknown value should keep default")
	}
}
