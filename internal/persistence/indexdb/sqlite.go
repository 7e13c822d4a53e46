package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"hypervoxel.ai/internal/persistence/snapshot"
	"hypervoxel.ai/internal/sim/tuning"
	"hypervoxel.ai/internal/sim/world"
	"hypervoxel.ai/internal/sim/world/logic/euclid"
	"hypervoxel.ai/internal/sim/world/logic/fuchsian"
)

// SQLiteIndex is a secondary, queryable index of the world's event log. The
// JSONL logs and snapshots remain the source of truth; writes are queued and
// dropped when the writer falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick          atomic.Uint64
	dropSnapshot      atomic.Uint64
	dropSnapshotState atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
	reqSnapshotState
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	snapshot snapshotRow
	agents   []agentRow
}

type snapshotRow struct {
	Tick             uint64
	Path             string
	Seed             int64
	GridSubdivisions int
	Chunks           int
	Agents           int
}

type agentRow struct {
	Tick      uint64
	ID        string
	Name      string
	TileKey   string
	Crossings uint64
}

type Stats struct {
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`

	DropTickTotal          uint64 `json:"drop_tick_total"`
	DropSnapshotTotal      uint64 `json:"drop_snapshot_total"`
	DropSnapshotStateTotal uint64 `json:"drop_snapshot_state_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			moves INTEGER NOT NULL,
			crossings INTEGER NOT NULL,
			new_chunks INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS joins (
			tick INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (tick, agent_id)
		);`,
		`CREATE TABLE IF NOT EXISTS leaves (
			tick INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			PRIMARY KEY (tick, agent_id)
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			key TEXT PRIMARY KEY,
			first_tick INTEGER NOT NULL,
			b_re TEXT NOT NULL,
			b_im TEXT NOT NULL,
			d_re TEXT NOT NULL,
			d_im TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS crossings (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			from_key TEXT NOT NULL,
			to_key TEXT NOT NULL,
			neighbour INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_crossings_agent_tick ON crossings(agent_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_crossings_to ON crossings(to_key);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			grid INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			agents INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS agents_state (
			agent_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			tile_key TEXT NOT NULL,
			crossings INTEGER NOT NULL,
			tick INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:             len(s.ch),
		QueueCapacity:          cap(s.ch),
		DropTickTotal:          s.dropTick.Load(),
		DropSnapshotTotal:      s.dropSnapshot.Load(),
		DropSnapshotStateTotal: s.dropSnapshotState.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

// WriteTickWait is WriteTick for bulk loads: it waits for queue space
// instead of dropping the entry.
func (s *SQLiteIndex) WriteTickWait(ctx context.Context, entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return fmt.Errorf("index closed")
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:             snap.Header.Tick,
		Path:             path,
		Seed:             snap.Seed,
		GridSubdivisions: snap.GridSubdivisions,
		Chunks:           len(snap.Chunks),
		Agents:           len(snap.Agents),
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

// RecordSnapshotState replaces the per-agent table with the agents of snap.
func (s *SQLiteIndex) RecordSnapshotState(snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	rows := make([]agentRow, 0, len(snap.Agents))
	for _, a := range snap.Agents {
		row := agentRow{Tick: snap.Header.Tick, ID: a.ID, Name: a.Name, Crossings: a.Crossings}
		if iso, err := fuchsian.ParseIsometry[euclid.Big](a.Anchor); err == nil {
			row.TileKey = iso.Position().Hex()
		}
		rows = append(rows, row)
	}
	s.enqueue(req{kind: reqSnapshotState, agents: rows}, &s.dropSnapshotState)
}

// UpsertTuning stores the tuning values the server actually applies.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows := [][2]string{
		{"schema_version", "1"},
		{"tuning", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
		{"updated_at", time.Now().UTC().Format(time.RFC3339Nano)},
	}
	for _, r := range rows {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, r[0], r[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,joins,leaves,moves,crossings,new_chunks,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertJoin, _ := s.db.Prepare(`INSERT OR REPLACE INTO joins(tick,agent_id,name) VALUES(?,?,?)`)
	insertLeave, _ := s.db.Prepare(`INSERT OR REPLACE INTO leaves(tick,agent_id) VALUES(?,?)`)
	insertChunk, _ := s.db.Prepare(`INSERT OR IGNORE INTO chunks(key,first_tick,b_re,b_im,d_re,d_im) VALUES(?,?,?,?,?,?)`)
	insertCrossing, _ := s.db.Prepare(`INSERT OR REPLACE INTO crossings(tick,seq,agent_id,from_key,to_key,neighbour) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,seed,grid,chunks,agents) VALUES(?,?,?,?,?,?)`)
	insertAgent, _ := s.db.Prepare(`INSERT OR REPLACE INTO agents_state(agent_id,name,tile_key,crossings,tick) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertJoin, insertLeave, insertChunk, insertCrossing, insertSnapshot, insertAgent} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			t := int64(e.Tick)
			b, _ := json.Marshal(e)
			if !exec(insertTick, t, e.Digest, len(e.Joins), len(e.Leaves), len(e.Moves), len(e.Crossings), len(e.NewChunks), string(b)) {
				continue
			}
			for _, j := range e.Joins {
				if !exec(insertJoin, t, j.AgentID, j.Name) {
					break
				}
			}
			for _, id := range e.Leaves {
				if !exec(insertLeave, t, id) {
					break
				}
			}
			for _, key := range e.NewChunks {
				p, err := fuchsian.ParsePositionHex[euclid.Big](key)
				if err != nil {
					continue
				}
				if !exec(insertChunk, key, t, p.B.Re.String(), p.B.Im.String(), p.D.Re.String(), p.D.Im.String()) {
					break
				}
			}
			for i, c := range e.Crossings {
				if !exec(insertCrossing, t, i, c.AgentID, c.From, c.To, c.Neighbour) {
					break
				}
			}

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Seed, sn.GridSubdivisions, sn.Chunks, sn.Agents)

		case reqSnapshotState:
			for _, a := range r.agents {
				if !exec(insertAgent, a.ID, a.Name, a.TileKey, int64(a.Crossings), int64(a.Tick)) {
					break
				}
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
