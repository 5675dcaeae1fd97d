package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kaorin/bilisync/internal/model"
)

// UpsertUploader writes an uploader row keyed by remote ID.
func (s *Store) UpsertUploader(ctx context.Context, tx *sql.Tx, u model.Uploader) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO uploaders (id, name, avatar_url) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, avatar_url = excluded.avatar_url
	`, u.ID, u.Name, u.AvatarURL)
	if err != nil {
		return fmt.Errorf("store: upsert uploader: %w", err)
	}
	return nil
}

// GetUploader looks up an uploader by remote ID.
func (s *Store) GetUploader(ctx context.Context, id int64) (model.Uploader, error) {
	var u model.Uploader
	row := s.db.QueryRowContext(ctx, `SELECT id, name, avatar_url FROM uploaders WHERE id = ?`, id)
	err := row.Scan(&u.ID, &u.Name, &u.AvatarURL)
	if err == sql.ErrNoRows {
		return u, fmt.Errorf("store: uploader %d: %w", id, err)
	}
	return u, err
}
