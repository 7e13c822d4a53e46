package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Reader is a read-only handle for tools that inspect an index written by a
// running or finished server.
type Reader struct {
	db *sql.DB
}

type CrossingRow struct {
	Tick      uint64 `json:"tick"`
	AgentID   string `json:"agent_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Neighbour int    `json:"neighbour"`
}

type SnapshotRow struct {
	Tick   uint64 `json:"tick"`
	Path   string `json:"path"`
	Seed   int64  `json:"seed"`
	Grid   int    `json:"grid"`
	Chunks int    `json:"chunks"`
	Agents int    `json:"agents"`
}

type ChunkRow struct {
	Key       string `json:"key"`
	FirstTick uint64 `json:"first_tick"`
	BRe, BIm  string
	DRe, DIm  string
}

func OpenReader(path string) (*Reader, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, p := range []string{"PRAGMA busy_timeout=5000;", "PRAGMA query_only=ON;"} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

func (r *Reader) Meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Reader) TickCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks`).Scan(&n)
	return n, err
}

func (r *Reader) ChunkCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Chunk looks up a generated chunk by its hex tile key.
func (r *Reader) Chunk(ctx context.Context, key string) (ChunkRow, bool, error) {
	var c ChunkRow
	var first int64
	err := r.db.QueryRowContext(ctx,
		`SELECT key, first_tick, b_re, b_im, d_re, d_im FROM chunks WHERE key=?`, key,
	).Scan(&c.Key, &first, &c.BRe, &c.BIm, &c.DRe, &c.DIm)
	if errors.Is(err, sql.ErrNoRows) {
		return ChunkRow{}, false, nil
	}
	if err != nil {
		return ChunkRow{}, false, err
	}
	c.FirstTick = uint64(first)
	return c, true, nil
}

// Crossings lists an agent's tile crossings in tick order. An empty agentID
// lists every agent's.
func (r *Reader) Crossings(ctx context.Context, agentID string) ([]CrossingRow, error) {
	q := `SELECT tick, agent_id, from_key, to_key, neighbour FROM crossings`
	var args []any
	if agentID != "" {
		q += ` WHERE agent_id=?`
		args = append(args, agentID)
	}
	q += ` ORDER BY tick, seq`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CrossingRow
	for rows.Next() {
		var c CrossingRow
		var tick int64
		if err := rows.Scan(&tick, &c.AgentID, &c.From, &c.To, &c.Neighbour); err != nil {
			return nil, err
		}
		c.Tick = uint64(tick)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Reader) LatestSnapshot(ctx context.Context) (SnapshotRow, bool, error) {
	var s SnapshotRow
	var tick int64
	err := r.db.QueryRowContext(ctx,
		`SELECT tick, path, seed, grid, chunks, agents FROM snapshots ORDER BY tick DESC LIMIT 1`,
	).Scan(&tick, &s.Path, &s.Seed, &s.Grid, &s.Chunks, &s.Agents)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRow{}, false, nil
	}
	if err != nil {
		return SnapshotRow{}, false, err
	}
	s.Tick = uint64(tick)
	return s, true, nil
}

// AgentTile reports the tile an agent occupied at the last indexed snapshot.
func (r *Reader) AgentTile(ctx context.Context, agentID string) (string, uint64, bool, error) {
	var key string
	var tick int64
	err := r.db.QueryRowContext(ctx,
		`SELECT tile_key, tick FROM agents_state WHERE agent_id=?`, agentID,
	).Scan(&key, &tick)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return key, uint64(tick), true, nil
}
