package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaorin/bilisync/internal/filter"
	"github.com/kaorin/bilisync/internal/model"
)

// ErrUnknownSourceKind is returned by operations that switch on
// model.SourceKind and encounter a value outside the four known variants.
var ErrUnknownSourceKind = errors.New("store: unknown source kind")

func sourceTable(kind model.SourceKind) (string, error) {
	switch kind {
	case model.KindFavorite:
		return "source_favorites", nil
	case model.KindSubmission:
		return "source_submissions", nil
	case model.KindCollection:
		return "source_collections", nil
	case model.KindWatchLater:
		return "source_watchlaters", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSourceKind, kind)
	}
}

func marshalRule(r filter.Rule) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalRule(s string) (filter.Rule, error) {
	var r filter.Rule
	if s == "" {
		return r, nil
	}
	err := json.Unmarshal([]byte(s), &r)
	return r, err
}

// CreateSource inserts a new source row into the sibling table matching
// src.Kind and returns the assigned ID.
func (s *Store) CreateSource(ctx context.Context, src model.Source) (int64, error) {
	table, err := sourceTable(src.Kind)
	if err != nil {
		return 0, err
	}
	ruleJSON, err := marshalRule(src.Rule)
	if err != nil {
		return 0, fmt.Errorf("store: marshal rule: %w", err)
	}

	var res sql.Result
	switch src.Kind {
	case model.KindFavorite:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO source_favorites (name, path, enabled, latest_row_at, rule_json, scan_deleted_videos, fid)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			src.Name, src.Path, src.Enabled, src.LatestRowAt, ruleJSON, src.ScanDeletedVideos, src.FavoriteID)
	case model.KindSubmission:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO source_submissions (name, path, enabled, latest_row_at, rule_json, scan_deleted_videos, uploader_id, use_dynamic_api)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			src.Name, src.Path, src.Enabled, src.LatestRowAt, ruleJSON, src.ScanDeletedVideos, src.UploaderID, src.UseDynamicAPI)
	case model.KindCollection:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO source_collections (name, path, enabled, latest_row_at, rule_json, scan_deleted_videos, collection_kind, mid, sid)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			src.Name, src.Path, src.Enabled, src.LatestRowAt, ruleJSON, src.ScanDeletedVideos, src.CollectionKind, src.CollectionMID, src.CollectionSID)
	case model.KindWatchLater:
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO source_watchlaters (name, path, enabled, latest_row_at, rule_json, scan_deleted_videos)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			src.Name, src.Path, src.Enabled, src.LatestRowAt, ruleJSON, src.ScanDeletedVideos)
	}
	if err != nil {
		return 0, fmt.Errorf("store: insert into %s: %w", table, err)
	}
	return res.LastInsertId()
}

// ListSources returns every enabled source across all four sibling tables,
// ordered kind-then-id so enumeration order is stable across cycles
// (spec.md §4.1).
func (s *Store) ListSources(ctx context.Context) ([]model.Source, error) {
	var out []model.Source
	for _, kind := range []model.SourceKind{model.KindFavorite, model.KindSubmission, model.KindCollection, model.KindWatchLater} {
		list, err := s.listSourcesOfKind(ctx, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}

func (s *Store) listSourcesOfKind(ctx context.Context, kind model.SourceKind) ([]model.Source, error) {
	table, err := sourceTable(kind)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	switch kind {
	case model.KindFavorite:
		rows, err = s.db.QueryContext(ctx, `SELECT id, name, path, enabled, latest_row_at, rule_json, scan_deleted_videos, fid FROM source_favorites ORDER BY id`)
	case model.KindSubmission:
		rows, err = s.db.QueryContext(ctx, `SELECT id, name, path, enabled, latest_row_at, rule_json, scan_deleted_videos, uploader_id, use_dynamic_api FROM source_submissions ORDER BY id`)
	case model.KindCollection:
		rows, err = s.db.QueryContext(ctx, `SELECT id, name, path, enabled, latest_row_at, rule_json, scan_deleted_videos, collection_kind, mid, sid FROM source_collections ORDER BY id`)
	case model.KindWatchLater:
		rows, err = s.db.QueryContext(ctx, `SELECT id, name, path, enabled, latest_row_at, rule_json, scan_deleted_videos FROM source_watchlaters ORDER BY id`)
	}
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", table, err)
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		src := model.Source{Kind: kind}
		var ruleJSON string
		switch kind {
		case model.KindFavorite:
			err = rows.Scan(&src.ID, &src.Name, &src.Path, &src.Enabled, &src.LatestRowAt, &ruleJSON, &src.ScanDeletedVideos, &src.FavoriteID)
		case model.KindSubmission:
			err = rows.Scan(&src.ID, &src.Name, &src.Path, &src.Enabled, &src.LatestRowAt, &ruleJSON, &src.ScanDeletedVideos, &src.UploaderID, &src.UseDynamicAPI)
		case model.KindCollection:
			err = rows.Scan(&src.ID, &src.Name, &src.Path, &src.Enabled, &src.LatestRowAt, &ruleJSON, &src.ScanDeletedVideos, &src.CollectionKind, &src.CollectionMID, &src.CollectionSID)
		case model.KindWatchLater:
			err = rows.Scan(&src.ID, &src.Name, &src.Path, &src.Enabled, &src.LatestRowAt, &ruleJSON, &src.ScanDeletedVideos)
		}
		if err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", table, err)
		}
		src.Rule, err = unmarshalRule(ruleJSON)
		if err != nil {
			return nil, fmt.Errorf("store: unmarshal rule: %w", err)
		}
		if !src.Enabled {
			continue
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// SyncSources reconciles the config document's declared sources into their
// sibling tables, keyed by path (the one field every source kind sets and
// the operator controls), so re-running with the same config.yaml is
// idempotent across restarts instead of growing duplicate rows. Returns the
// same sources with IDs and any preserved watermark populated.
func (s *Store) SyncSources(ctx context.Context, declared []model.Source) ([]model.Source, error) {
	out := make([]model.Source, 0, len(declared))
	for _, src := range declared {
		if _, err := s.syncOneSource(ctx, src); err != nil {
			return nil, fmt.Errorf("store: sync source %q: %w", src.Path, err)
		}
		synced, err := s.getSourceByPath(ctx, src.Kind, src.Path)
		if err != nil {
			return nil, fmt.Errorf("store: reload synced source %q: %w", src.Path, err)
		}
		out = append(out, synced)
	}
	return out, nil
}

// getSourceByPath reads back a single source row, preserving the
// watermark/latest_row_at that the config document itself never carries.
func (s *Store) getSourceByPath(ctx context.Context, kind model.SourceKind, path string) (model.Source, error) {
	table, err := sourceTable(kind)
	if err != nil {
		return model.Source{}, err
	}

	src := model.Source{Kind: kind}
	var ruleJSON string
	var row *sql.Row
	switch kind {
	case model.KindFavorite:
		row = s.db.QueryRowContext(ctx, `SELECT id, name, path, enabled, latest_row_at, rule_json, scan_deleted_videos, fid FROM `+table+` WHERE path = ?`, path)
		err = row.Scan(&src.ID, &src.Name, &src.Path, &src.Enabled, &src.LatestRowAt, &ruleJSON, &src.ScanDeletedVideos, &src.FavoriteID)
	case model.KindSubmission:
		row = s.db.QueryRowContext(ctx, `SELECT id, name, path, enabled, latest_row_at, rule_json, scan_deleted_videos, uploader_id, use_dynamic_api FROM `+table+` WHERE path = ?`, path)
		err = row.Scan(&src.ID, &src.Name, &src.Path, &src.Enabled, &src.LatestRowAt, &ruleJSON, &src.ScanDeletedVideos, &src.UploaderID, &src.UseDynamicAPI)
	case model.KindCollection:
		row = s.db.QueryRowContext(ctx, `SELECT id, name, path, enabled, latest_row_at, rule_json, scan_deleted_videos, collection_kind, mid, sid FROM `+table+` WHERE path = ?`, path)
		err = row.Scan(&src.ID, &src.Name, &src.Path, &src.Enabled, &src.LatestRowAt, &ruleJSON, &src.ScanDeletedVideos, &src.CollectionKind, &src.CollectionMID, &src.CollectionSID)
	case model.KindWatchLater:
		row = s.db.QueryRowContext(ctx, `SELECT id, name, path, enabled, latest_row_at, rule_json, scan_deleted_videos FROM `+table+` WHERE path = ?`, path)
		err = row.Scan(&src.ID, &src.Name, &src.Path, &src.Enabled, &src.LatestRowAt, &ruleJSON, &src.ScanDeletedVideos)
	}
	if err != nil {
		return model.Source{}, fmt.Errorf("scan %s: %w", table, err)
	}
	src.Rule, err = unmarshalRule(ruleJSON)
	if err != nil {
		return model.Source{}, fmt.Errorf("unmarshal rule: %w", err)
	}
	return src, nil
}

func (s *Store) syncOneSource(ctx context.Context, src model.Source) (int64, error) {
	ruleJSON, err := marshalRule(src.Rule)
	if err != nil {
		return 0, fmt.Errorf("marshal rule: %w", err)
	}

	var res sql.Result
	switch src.Kind {
	case model.KindFavorite:
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO source_favorites (name, path, enabled, rule_json, scan_deleted_videos, fid)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				name = excluded.name, enabled = excluded.enabled, rule_json = excluded.rule_json,
				scan_deleted_videos = excluded.scan_deleted_videos, fid = excluded.fid`,
			src.Name, src.Path, src.Enabled, ruleJSON, src.ScanDeletedVideos, src.FavoriteID)
	case model.KindSubmission:
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO source_submissions (name, path, enabled, rule_json, scan_deleted_videos, uploader_id, use_dynamic_api)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				name = excluded.name, enabled = excluded.enabled, rule_json = excluded.rule_json,
				scan_deleted_videos = excluded.scan_deleted_videos, uploader_id = excluded.uploader_id,
				use_dynamic_api = excluded.use_dynamic_api`,
			src.Name, src.Path, src.Enabled, ruleJSON, src.ScanDeletedVideos, src.UploaderID, src.UseDynamicAPI)
	case model.KindCollection:
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO source_collections (name, path, enabled, rule_json, scan_deleted_videos, collection_kind, mid, sid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				name = excluded.name, enabled = excluded.enabled, rule_json = excluded.rule_json,
				scan_deleted_videos = excluded.scan_deleted_videos, collection_kind = excluded.collection_kind,
				mid = excluded.mid, sid = excluded.sid`,
			src.Name, src.Path, src.Enabled, ruleJSON, src.ScanDeletedVideos, src.CollectionKind, src.CollectionMID, src.CollectionSID)
	case model.KindWatchLater:
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO source_watchlaters (name, path, enabled, rule_json, scan_deleted_videos)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				name = excluded.name, enabled = excluded.enabled, rule_json = excluded.rule_json,
				scan_deleted_videos = excluded.scan_deleted_videos`,
			src.Name, src.Path, src.Enabled, ruleJSON, src.ScanDeletedVideos)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSourceKind, src.Kind)
	}
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if id != 0 {
		return id, nil
	}
	table, _ := sourceTable(src.Kind)
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE path = ?`, table), src.Path)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve synced source id: %w", err)
	}
	return id, nil
}

// UpdateLatestRowAt advances a source's ordering watermark; called once per
// enumeration stage run after a successful drain (spec.md §4.2).
func (s *Store) UpdateLatestRowAt(ctx context.Context, tx *sql.Tx, kind model.SourceKind, id, latestRowAt int64) error {
	table, err := sourceTable(kind)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET latest_row_at = ? WHERE id = ?`, table), latestRowAt, id)
	return err
}
