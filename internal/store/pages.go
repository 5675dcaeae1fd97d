package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/taskstatus"
)

// UpsertPage inserts or refreshes one page row, keyed by (video_id, pid).
func (s *Store) UpsertPage(ctx context.Context, tx *sql.Tx, p model.Page) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO pages (video_id, pid, cid, name, duration_seconds, cover_url, download_status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id, pid) DO UPDATE SET
			cid = excluded.cid,
			name = excluded.name,
			duration_seconds = excluded.duration_seconds,
			cover_url = excluded.cover_url
	`, p.VideoID, p.PID, p.CID, p.Name, int64(p.Duration.Seconds()), p.CoverURL, uint32(p.DownloadStatus))
	if err != nil {
		return 0, fmt.Errorf("store: upsert page: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if id != 0 {
		return id, nil
	}
	row := tx.QueryRowContext(ctx, `SELECT id FROM pages WHERE video_id = ? AND pid = ?`, p.VideoID, p.PID)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("store: resolve upserted page id: %w", err)
	}
	return id, nil
}

// ListPages returns every page of a video, ordered by page number.
func (s *Store) ListPages(ctx context.Context, videoID int64) ([]model.Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, video_id, pid, cid, name, duration_seconds, cover_url, download_status FROM pages WHERE video_id = ? ORDER BY pid`, videoID)
	if err != nil {
		return nil, fmt.Errorf("store: list pages: %w", err)
	}
	defer rows.Close()

	var out []model.Page
	for rows.Next() {
		var p model.Page
		var durSeconds int64
		var status uint32
		if err := rows.Scan(&p.ID, &p.VideoID, &p.PID, &p.CID, &p.Name, &durSeconds, &p.CoverURL, &status); err != nil {
			return nil, err
		}
		p.Duration = time.Duration(durSeconds) * time.Second
		p.DownloadStatus = taskstatus.Word(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePageStatus persists a new status word for one page within tx.
func (s *Store) UpdatePageStatus(ctx context.Context, tx *sql.Tx, pageID int64, status taskstatus.Word) error {
	_, err := tx.ExecContext(ctx, `UPDATE pages SET download_status = ? WHERE id = ?`, uint32(status), pageID)
	return err
}
