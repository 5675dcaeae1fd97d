// Package store implements the relational persistence layer of spec.md §3:
// sources (four sibling tables), videos, pages, uploaders, and a scheduler
// status singleton, all in one embedded SQLite database accessed via short,
// one-per-step transactions (spec.md §4.4, §5). Modeled on
// _examples/ManuGH-xg2g/internal/library/store.go's pragma setup and
// ON CONFLICT upsert style.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, no cgo
)

// Store wraps the database handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=1", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for callers that need non-transactional reads
// (the admin API's read-only snapshots, per spec.md §5).
func (s *Store) DB() *sql.DB { return s.db }

// BeginTx starts a transaction; every enumeration descriptor and every
// orchestrator step commits through exactly one such transaction
// (spec.md §4.3 step list, §4.4 "Status word updates are written in a
// single transaction per step").
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

const schema = `
CREATE TABLE IF NOT EXISTS source_favorites (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	latest_row_at INTEGER NOT NULL DEFAULT 0,
	rule_json TEXT NOT NULL DEFAULT '[]',
	scan_deleted_videos INTEGER NOT NULL DEFAULT 0,
	fid INTEGER NOT NULL,
	UNIQUE(path)
);

CREATE TABLE IF NOT EXISTS source_submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	latest_row_at INTEGER NOT NULL DEFAULT 0,
	rule_json TEXT NOT NULL DEFAULT '[]',
	scan_deleted_videos INTEGER NOT NULL DEFAULT 0,
	uploader_id INTEGER NOT NULL,
	use_dynamic_api INTEGER NOT NULL DEFAULT 0,
	UNIQUE(path)
);

CREATE TABLE IF NOT EXISTS source_collections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	latest_row_at INTEGER NOT NULL DEFAULT 0,
	rule_json TEXT NOT NULL DEFAULT '[]',
	scan_deleted_videos INTEGER NOT NULL DEFAULT 0,
	collection_kind TEXT NOT NULL,
	mid INTEGER NOT NULL,
	sid INTEGER NOT NULL,
	UNIQUE(path)
);

CREATE TABLE IF NOT EXISTS source_watchlaters (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	latest_row_at INTEGER NOT NULL DEFAULT 0,
	rule_json TEXT NOT NULL DEFAULT '[]',
	scan_deleted_videos INTEGER NOT NULL DEFAULT 0,
	UNIQUE(path)
);

CREATE TABLE IF NOT EXISTS uploaders (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS videos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_kind TEXT NOT NULL,
	source_id INTEGER NOT NULL,
	remote_bvid TEXT NOT NULL,
	remote_aid INTEGER NOT NULL,
	cover_url TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	intro TEXT NOT NULL DEFAULT '',
	ctime INTEGER NOT NULL DEFAULT 0,
	pubtime INTEGER NOT NULL DEFAULT 0,
	favtime INTEGER NOT NULL DEFAULT 0,
	uploader_id INTEGER NOT NULL,
	uploader_name TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL,
	category INTEGER NOT NULL DEFAULT 0,
	should_download INTEGER NOT NULL DEFAULT 0,
	tags_json TEXT NOT NULL DEFAULT '[]',
	single_page INTEGER NOT NULL DEFAULT 1,
	download_status INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	UNIQUE(source_kind, source_id, remote_bvid)
);
CREATE INDEX IF NOT EXISTS idx_videos_source ON videos(source_kind, source_id, id);
CREATE INDEX IF NOT EXISTS idx_videos_should_download ON videos(should_download, deleted);

CREATE TABLE IF NOT EXISTS pages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id INTEGER NOT NULL REFERENCES videos(id),
	pid INTEGER NOT NULL,
	cid INTEGER NOT NULL DEFAULT 0,
	name TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	cover_url TEXT NOT NULL DEFAULT '',
	download_status INTEGER NOT NULL DEFAULT 0,
	UNIQUE(video_id, pid)
);
CREATE INDEX IF NOT EXISTS idx_pages_video ON pages(video_id, pid);

CREATE TABLE IF NOT EXISTS scheduler_status (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	is_running INTEGER NOT NULL DEFAULT 0,
	last_run INTEGER NOT NULL DEFAULT 0,
	last_finish INTEGER NOT NULL DEFAULT 0,
	next_run INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO scheduler_status (id) VALUES (1);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}
