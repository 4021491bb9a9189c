// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/trellis-ml/trellis/lib/clock"
	"github.com/trellis-ml/trellis/lib/codec"
	"github.com/trellis-ml/trellis/lib/config"
	"github.com/trellis-ml/trellis/lib/preprocess"
	"github.com/trellis-ml/trellis/lib/shard"
	"github.com/trellis-ml/trellis/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id            INTEGER PRIMARY KEY,
    fingerprint   TEXT NOT NULL,
    template      TEXT NOT NULL,
    reasoning     INTEGER NOT NULL,
    packed        INTEGER NOT NULL,
    cutoff        INTEGER NOT NULL,
    card_name     TEXT NOT NULL DEFAULT '',
    card_license  TEXT NOT NULL DEFAULT '',
    started_unix  INTEGER NOT NULL,
    finished_unix INTEGER,
    dialogues     INTEGER NOT NULL DEFAULT 0,
    examples      INTEGER NOT NULL DEFAULT 0,
    containers    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS shards (
    id      INTEGER PRIMARY KEY,
    run_id  INTEGER NOT NULL REFERENCES runs(id),
    path    TEXT NOT NULL,
    digest  TEXT NOT NULL,
    records INTEGER NOT NULL,
    bytes   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS drops (
    run_id INTEGER NOT NULL REFERENCES runs(id),
    reason TEXT NOT NULL,
    count  INTEGER NOT NULL,
    PRIMARY KEY (run_id, reason)
);
`

// Store is the manifest database.
type Store struct {
	pool  *sqlitepool.Pool
	clock clock.Clock
}

// Open opens (creating if needed) the manifest database at path.
func Open(path string, logger *slog.Logger, clk clock.Clock) (*Store, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{pool: pool, clock: clk}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Fingerprint returns the hex BLAKE3 digest of the configuration's
// deterministic CBOR encoding.
func Fingerprint(cfg *config.Config) (string, error) {
	data, err := codec.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("manifest: encoding config: %w", err)
	}
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum), nil
}

// RunInfo describes a run at start time. Card fields come from the
// dataset card when one is configured and stay empty otherwise.
type RunInfo struct {
	Config      *config.Config
	CardName    string
	CardLicense string
}

// BeginRun records a new run and returns its id.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (int64, error) {
	fingerprint, err := Fingerprint(info.Config)
	if err != nil {
		return 0, err
	}
	templateName := info.Config.Template.Name
	if info.Config.Template.Path != "" {
		templateName = info.Config.Template.Path
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO runs (fingerprint, template, reasoning, packed, cutoff,
		                  card_name, card_license, started_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			fingerprint, templateName,
			boolInt(info.Config.Reasoning), boolInt(info.Config.Packing.Enabled),
			info.Config.Cutoff, info.CardName, info.CardLicense,
			s.clock.Now().Unix(),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("manifest: inserting run: %w", err)
	}
	return conn.LastInsertRowID(), nil
}

// FinishRun records the pass statistics and the finish time, plus one
// drop row per nonzero drop reason.
func (s *Store) FinishRun(ctx context.Context, runID int64, stats preprocess.Stats) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		UPDATE runs SET finished_unix = ?, dialogues = ?, examples = ?, containers = ?
		WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{
			s.clock.Now().Unix(), stats.Dialogues, stats.Examples, stats.Containers, runID,
		},
	})
	if err != nil {
		return fmt.Errorf("manifest: finishing run %d: %w", runID, err)
	}

	drops := map[string]int{
		"malformed":      stats.Malformed,
		"overlong":       stats.Overlong,
		"packer_dropped": stats.PackerDropped,
	}
	for reason, count := range drops {
		if count == 0 {
			continue
		}
		if err := addDrop(conn, runID, reason, count); err != nil {
			return err
		}
	}
	return nil
}

// AddShard records one written shard file.
func (s *Store) AddShard(ctx context.Context, runID int64, path string, digest shard.Digest, records, bytes int64) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO shards (run_id, path, digest, records, bytes)
		VALUES (?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{runID, path, shard.FormatDigest(digest), records, bytes},
	})
	if err != nil {
		return fmt.Errorf("manifest: inserting shard %s: %w", path, err)
	}
	return nil
}

func addDrop(conn *sqlite.Conn, runID int64, reason string, count int) error {
	err := sqlitex.Execute(conn, `
		INSERT INTO drops (run_id, reason, count) VALUES (?, ?, ?)
		ON CONFLICT (run_id, reason) DO UPDATE SET count = count + excluded.count`,
		&sqlitex.ExecOptions{Args: []any{runID, reason, count}})
	if err != nil {
		return fmt.Errorf("manifest: recording drop %q: %w", reason, err)
	}
	return nil
}

// Run is one catalogued run.
type Run struct {
	ID           int64
	Fingerprint  string
	Template     string
	Reasoning    bool
	Packed       bool
	Cutoff       int
	CardName     string
	CardLicense  string
	StartedUnix  int64
	FinishedUnix int64
	Dialogues    int
	Examples     int
	Containers   int
}

// Runs lists all runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var runs []Run
	err = sqlitex.Execute(conn, `
		SELECT id, fingerprint, template, reasoning, packed, cutoff,
		       card_name, card_license, started_unix,
		       COALESCE(finished_unix, 0), dialogues, examples, containers
		FROM runs ORDER BY id DESC`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			runs = append(runs, Run{
				ID:           stmt.ColumnInt64(0),
				Fingerprint:  stmt.ColumnText(1),
				Template:     stmt.ColumnText(2),
				Reasoning:    stmt.ColumnInt64(3) != 0,
				Packed:       stmt.ColumnInt64(4) != 0,
				Cutoff:       stmt.ColumnInt(5),
				CardName:     stmt.ColumnText(6),
				CardLicense:  stmt.ColumnText(7),
				StartedUnix:  stmt.ColumnInt64(8),
				FinishedUnix: stmt.ColumnInt64(9),
				Dialogues:    stmt.ColumnInt(10),
				Examples:     stmt.ColumnInt(11),
				Containers:   stmt.ColumnInt(12),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("manifest: listing runs: %w", err)
	}
	return runs, nil
}

// Shard is one catalogued shard file.
type Shard struct {
	RunID   int64
	Path    string
	Digest  string
	Records int64
	Bytes   int64
}

// Shards lists the shards of a run in write order.
func (s *Store) Shards(ctx context.Context, runID int64) ([]Shard, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var shards []Shard
	err = sqlitex.Execute(conn, `
		SELECT run_id, path, digest, records, bytes
		FROM shards WHERE run_id = ? ORDER BY id`, &sqlitex.ExecOptions{
		Args: []any{runID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			shards = append(shards, Shard{
				RunID:   stmt.ColumnInt64(0),
				Path:    stmt.ColumnText(1),
				Digest:  stmt.ColumnText(2),
				Records: stmt.ColumnInt64(3),
				Bytes:   stmt.ColumnInt64(4),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("manifest: listing shards of run %d: %w", runID, err)
	}
	return shards, nil
}

// Drop is one drop reason with its count for a run.
type Drop struct {
	Reason string
	Count  int
}

// Drops lists a run's drops by reason.
func (s *Store) Drops(ctx context.Context, runID int64) ([]Drop, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var drops []Drop
	err = sqlitex.Execute(conn, `
		SELECT reason, count FROM drops WHERE run_id = ? ORDER BY reason`,
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				drops = append(drops, Drop{
					Reason: stmt.ColumnText(0),
					Count:  stmt.ColumnInt(1),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("manifest: listing drops of run %d: %w", runID, err)
	}
	return drops, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
