package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hypervoxel.ai/internal/persistence/indexdb"
	persistlog "hypervoxel.ai/internal/persistence/log"
)

func indexPath(dataDir, worldID, dbPath string) (string, error) {
	if p := strings.TrimSpace(dbPath); p != "" {
		return p, nil
	}
	if strings.TrimSpace(worldID) == "" {
		return "", fmt.Errorf("missing -world or -db")
	}
	return filepath.Join(dataDir, "worlds", worldID, "index", "world.sqlite"), nil
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	agent := fs.String("agent", "", "agent id filter (crossings, agent)")
	key := fs.String("key", "", "tile key (chunk)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "summary"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path, err := indexPath(*dataDir, *worldID, *dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()

	if err := runQuery(context.Background(), r, q, dbQuery{Agent: *agent, Key: *key, Limit: *limit}, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type dbQuery struct {
	Agent string
	Key   string
	Limit int
}

func runQuery(ctx context.Context, r *indexdb.Reader, q string, opt dbQuery, out io.Writer) error {
	enc := json.NewEncoder(out)
	switch q {
	case "summary":
		ticks, err := r.TickCount(ctx)
		if err != nil {
			return err
		}
		chunks, err := r.ChunkCount(ctx)
		if err != nil {
			return err
		}
		snap, _, err := r.LatestSnapshot(ctx)
		if err != nil {
			return err
		}
		digest, _, err := r.Meta(ctx, "tuning_digest")
		if err != nil {
			return err
		}
		return enc.Encode(map[string]any{
			"ticks":           ticks,
			"chunks":          chunks,
			"latest_snapshot": snap,
			"tuning_digest":   digest,
		})
	case "crossings":
		cs, err := r.Crossings(ctx, opt.Agent)
		if err != nil {
			return err
		}
		if opt.Limit > 0 && len(cs) > opt.Limit {
			cs = cs[len(cs)-opt.Limit:]
		}
		for _, c := range cs {
			if err := enc.Encode(c); err != nil {
				return err
			}
		}
		return nil
	case "chunk":
		if opt.Key == "" {
			return fmt.Errorf("chunk: missing -key")
		}
		c, ok, err := r.Chunk(ctx, opt.Key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("chunk %s not indexed", opt.Key)
		}
		return enc.Encode(c)
	case "agent":
		if opt.Agent == "" {
			return fmt.Errorf("agent: missing -agent")
		}
		key, tick, ok, err := r.AgentTile(ctx, opt.Agent)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("agent %s not in any indexed snapshot", opt.Agent)
		}
		return enc.Encode(map[string]any{"agent_id": opt.Agent, "tile": key, "tick": tick})
	default:
		return fmt.Errorf("unknown query %q (summary|crossings|chunk|agent)", q)
	}
}

func reindexCmd(args []string) {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	path, _ := indexPath(*dataDir, *worldID, *dbPath)
	n, err := reindex(filepath.Join(*dataDir, "worlds", *worldID), path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reindex:", err)
		os.Exit(1)
	}
	fmt.Printf("reindexed %d ticks into %s\n", n, path)
}

// reindex writes every logged tick of worldDir into the index at dbPath.
func reindex(worldDir, dbPath string) (int, error) {
	entries, err := persistlog.ReadTicks(worldDir)
	if err != nil {
		return 0, err
	}
	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		return 0, err
	}
	ctx := context.Background()
	for _, e := range entries {
		if err := idx.WriteTickWait(ctx, e); err != nil {
			_ = idx.Close()
			return 0, err
		}
	}
	if err := idx.Close(); err != nil {
		return 0, err
	}
	return len(entries), nil
}
