// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ignorestore persists the set of node/path entries that must never
// be published. Entries are only ever added.
package ignorestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	defaultBusyTimeoutMillis = 5000
	setupTimeout             = 10 * time.Second
	FileName                 = "ignores.db"
)

const schema = `
CREATE TABLE IF NOT EXISTS ignored_paths (
	path       TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

type Store struct {
	conn *sql.DB
}

// Open opens or creates the store at databasePath.
func Open(databasePath string) (*Store, error) {
	log.Debug().Msgf("Opening ignore store at: %s", databasePath)

	dir := filepath.Dir(databasePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ignore store directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ignore store at %s: %w", databasePath, err)
	}
	// single writer; sqlite serializes anyway
	conn.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	stmts := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", defaultBusyTimeoutMillis),
		schema,
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply %q: %w", strings.Fields(stmt)[0], err)
		}
	}

	return &Store{conn: conn}, nil
}

// Add merges paths into the store and returns how many were new.
func (s *Store) Add(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin ignore store transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO ignored_paths (path) VALUES (?)")
	if err != nil {
		return 0, errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	added := 0
	for _, p := range paths {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, p)
		if err != nil {
			return 0, errors.Wrapf(err, "insert %q", p)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit ignore store transaction")
	}
	return added, nil
}

// All returns every stored path as a set.
func (s *Store) All(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT path FROM ignored_paths")
	if err != nil {
		return nil, errors.Wrap(err, "query ignored paths")
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errors.Wrap(err, "scan ignored path")
		}
		set[p] = struct{}{}
	}
	return set, errors.Wrap(rows.Err(), "iterate ignored paths")
}

func (s *Store) Close() error {
	return s.conn.Close()
}
