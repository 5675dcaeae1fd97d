package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/taskstatus"
)

// UpsertVideo inserts a video or, if (source_kind, source_id, remote_bvid)
// already exists, updates only the mutable remote-derived fields spec.md
// §4.3 step 2 names (name, cover, tags, pubtime, and the few fields
// alongside them) while leaving download_status and should_download
// untouched on an existing row — status is advanced only by the
// orchestrator, and should_download is owned exclusively by the admin
// re-evaluate endpoint (spec.md §8 scenario 3), never by enumeration.
// Returns the row's local ID.
func (s *Store) UpsertVideo(ctx context.Context, tx *sql.Tx, v model.Video) (int64, error) {
	tagsJSON, err := json.Marshal(v.Tags)
	if err != nil {
		return 0, fmt.Errorf("store: marshal tags: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO videos (
			source_kind, source_id, remote_bvid, remote_aid, cover_url, name, intro,
			ctime, pubtime, favtime, uploader_id, uploader_name, path, category,
			should_download, tags_json, single_page, download_status, deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_kind, source_id, remote_bvid) DO UPDATE SET
			remote_aid = excluded.remote_aid,
			cover_url = excluded.cover_url,
			name = excluded.name,
			intro = excluded.intro,
			pubtime = excluded.pubtime,
			favtime = excluded.favtime,
			uploader_id = excluded.uploader_id,
			uploader_name = excluded.uploader_name,
			category = excluded.category,
			tags_json = excluded.tags_json,
			single_page = excluded.single_page,
			deleted = 0
	`,
		string(v.SourceKind), v.SourceID, v.RemoteBVID, v.RemoteAID, v.CoverURL, v.Name, v.Intro,
		v.CTime.Unix(), v.PubTime.Unix(), v.FavTime.Unix(), v.UploaderID, v.UploaderName, v.Path, v.Category,
		v.ShouldDownload, string(tagsJSON), v.SinglePage, uint32(v.DownloadStatus), v.Deleted,
	)
	if err != nil {
		return 0, fmt.Errorf("store: upsert video: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if id != 0 {
		return id, nil
	}
	// SQLite reports LastInsertId of 0 on the ON CONFLICT DO UPDATE branch;
	// look the row back up by its unique key.
	row := tx.QueryRowContext(ctx, `SELECT id FROM videos WHERE source_kind = ? AND source_id = ? AND remote_bvid = ?`,
		string(v.SourceKind), v.SourceID, v.RemoteBVID)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("store: resolve upserted video id: %w", err)
	}
	return id, nil
}

// MarkUndeletedMissing flips deleted=1 for every video of the given source
// that was not touched this cycle (i.e. not in seenBVIDs), provided the
// source enumerated with scan_deleted_videos set (spec.md §4.2 deleted-flip
// condition, decided in DESIGN.md).
func (s *Store) MarkUndeletedMissing(ctx context.Context, tx *sql.Tx, kind model.SourceKind, sourceID int64, seenBVIDs []string) error {
	seen := make(map[string]struct{}, len(seenBVIDs))
	for _, b := range seenBVIDs {
		seen[b] = struct{}{}
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, remote_bvid FROM videos WHERE source_kind = ? AND source_id = ? AND deleted = 0`,
		string(kind), sourceID)
	if err != nil {
		return fmt.Errorf("store: query for deleted-flip: %w", err)
	}
	var toFlip []int64
	for rows.Next() {
		var id int64
		var bvid string
		if err := rows.Scan(&id, &bvid); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[bvid]; !ok {
			toFlip = append(toFlip, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range toFlip {
		if _, err := tx.ExecContext(ctx, `UPDATE videos SET deleted = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: flip deleted: %w", err)
		}
	}
	return nil
}

func scanVideo(row interface{ Scan(...any) error }) (model.Video, error) {
	var v model.Video
	var ctime, pubtime, favtime int64
	var tagsJSON string
	var status uint32
	if err := row.Scan(
		&v.ID, &v.SourceKind, &v.SourceID, &v.RemoteBVID, &v.RemoteAID, &v.CoverURL, &v.Name, &v.Intro,
		&ctime, &pubtime, &favtime, &v.UploaderID, &v.UploaderName, &v.Path, &v.Category,
		&v.ShouldDownload, &tagsJSON, &v.SinglePage, &status, &v.Deleted,
	); err != nil {
		return v, err
	}
	v.CTime = time.Unix(ctime, 0)
	v.PubTime = time.Unix(pubtime, 0)
	v.FavTime = time.Unix(favtime, 0)
	v.DownloadStatus = taskstatus.Word(status)
	if tagsJSON != "" {
		_ = json.Unmarshal([]byte(tagsJSON), &v.Tags)
	}
	return v, nil
}

const videoColumns = `id, source_kind, source_id, remote_bvid, remote_aid, cover_url, name, intro,
	ctime, pubtime, favtime, uploader_id, uploader_name, path, category,
	should_download, tags_json, single_page, download_status, deleted`

// GetVideo looks up a video by local ID.
func (s *Store) GetVideo(ctx context.Context, id int64) (model.Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	return scanVideo(row)
}

// ListDownloadableVideos returns videos flagged should_download, not
// deleted, whose download_status is not fully done for the orchestrator's
// last step (spec.md §5 candidate selection).
func (s *Store) ListDownloadableVideos(ctx context.Context, lastStep taskstatus.Step) ([]model.Video, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE should_download = 1 AND deleted = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list downloadable videos: %w", err)
	}
	defer rows.Close()

	var out []model.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		if v.DownloadStatus.AllDoneForCycle(lastStep) {
			continue
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateVideoStatus persists a new status word for one video within tx
// (spec.md §4.4: one transaction per step).
func (s *Store) UpdateVideoStatus(ctx context.Context, tx *sql.Tx, videoID int64, status taskstatus.Word) error {
	_, err := tx.ExecContext(ctx, `UPDATE videos SET download_status = ? WHERE id = ?`, uint32(status), videoID)
	return err
}
