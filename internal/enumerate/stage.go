// Package enumerate implements the enumeration & persistence stage of
// spec.md §4.3: drain a source.Iterator and, for each descriptor, upsert the
// uploader and video within a single transaction, then write back the
// watermark and run absent-from-remote detection.
package enumerate

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kaorin/bilisync/internal/filter"
	"github.com/kaorin/bilisync/internal/log"
	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/pathtmpl"
	"github.com/kaorin/bilisync/internal/source"
	"github.com/kaorin/bilisync/internal/store"
)

// Stage drains one source's adapter to completion.
type Stage struct {
	Store     *store.Store
	Adapter   source.Adapter
	VideoName *pathtmpl.Template
}

// New builds a Stage. videoName is the parsed video_name template
// (spec.md §6) used to derive each video's directory name under the
// source's configured root path.
func New(st *store.Store, adapter source.Adapter, videoName *pathtmpl.Template) *Stage {
	return &Stage{Store: st, Adapter: adapter, VideoName: videoName}
}

// Run implements spec.md §4.3. full is the model.Source (used for rule
// evaluation and the table to write back into); the adapter-facing
// source.Source is derived from it by toAdapterSource.
func (s *Stage) Run(ctx context.Context, full model.Source) error {
	logger := log.FromContext(ctx).With().Int64("source_id", full.ID).Str("source_kind", string(full.Kind)).Logger()

	it := s.Adapter.Enumerate(ctx, toAdapterSource(full))

	var maxOrderingKey int64
	var seenBVIDs []string

	for {
		desc, key, ok, err := it.Next(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("enumeration stopped by error")
			return fmt.Errorf("enumerate: source %d: %w", full.ID, err)
		}
		if !ok {
			break
		}
		if int64(key) > maxOrderingKey {
			maxOrderingKey = int64(key)
		}
		seenBVIDs = append(seenBVIDs, desc.RemoteBVID)

		if err := s.persistOne(ctx, full, desc); err != nil {
			logger.Error().Err(err).Str("bvid", desc.RemoteBVID).Msg("failed to persist descriptor")
			return fmt.Errorf("enumerate: persist %s: %w", desc.RemoteBVID, err)
		}
	}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("enumerate: begin watermark tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if maxOrderingKey > full.LatestRowAt {
		if err := s.Store.UpdateLatestRowAt(ctx, tx, full.Kind, full.ID, maxOrderingKey); err != nil {
			return fmt.Errorf("enumerate: update watermark: %w", err)
		}
	}

	if it.Drained() && full.ScanDeletedVideos {
		if err := s.Store.MarkUndeletedMissing(ctx, tx, full.Kind, full.ID, seenBVIDs); err != nil {
			return fmt.Errorf("enumerate: mark deleted: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("enumerate: commit watermark tx: %w", err)
	}
	logger.Debug().Int("videos_seen", len(seenBVIDs)).Bool("drained", it.Drained()).Msg("enumeration stage complete")
	return nil
}

func (s *Stage) persistOne(ctx context.Context, full model.Source, desc source.Descriptor) error {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if desc.UploaderID != 0 {
		if err := s.Store.UpsertUploader(ctx, tx, model.Uploader{ID: desc.UploaderID, Name: desc.UploaderName}); err != nil {
			return err
		}
	}

	shouldDownload, err := filter.Evaluate(full.Rule, filter.Input{
		Title:     desc.Name,
		Tags:      desc.Tags,
		PageCount: desc.PageCount,
		FavTime:   desc.FavTime,
		PubTime:   desc.PubTime,
	})
	if err != nil {
		return fmt.Errorf("evaluate rule: %w", err)
	}

	category := model.CategoryMultiPage
	if desc.SinglePage {
		category = model.CategorySinglePage
	}

	v := model.Video{
		SourceKind:     full.Kind,
		SourceID:       full.ID,
		RemoteBVID:     desc.RemoteBVID,
		RemoteAID:      desc.RemoteAID,
		CoverURL:       desc.CoverURL,
		Name:           desc.Name,
		Intro:          desc.Intro,
		CTime:          desc.CTime,
		PubTime:        desc.PubTime,
		FavTime:        desc.FavTime,
		UploaderID:     desc.UploaderID,
		UploaderName:   desc.UploaderName,
		Path:           s.videoPath(full, desc),
		Category:       category,
		ShouldDownload: shouldDownload,
		Tags:           desc.Tags,
		SinglePage:     desc.SinglePage,
	}
	if _, err := s.Store.UpsertVideo(ctx, tx, v); err != nil {
		return err
	}
	return tx.Commit()
}

// videoPath renders the video_name template against desc and joins the
// result onto the source's configured root path (spec.md §6's per-video
// directory). A render failure falls back to the bare remote BVID so one
// malformed title never drops a video from enumeration.
func (s *Stage) videoPath(full model.Source, desc source.Descriptor) string {
	name := desc.RemoteBVID
	if s.VideoName != nil {
		rendered, err := s.VideoName.Render(pathtmpl.VideoData{
			BVID:      desc.RemoteBVID,
			Title:     desc.Name,
			UpperName: desc.UploaderName,
			UpperMID:  desc.UploaderID,
		})
		if err == nil && rendered != "" {
			name = rendered
		}
	}
	return filepath.Join(full.Path, name)
}

func toAdapterSource(full model.Source) source.Source {
	return source.Source{
		ID:                 full.ID,
		LatestRowAt:        full.LatestRowAt,
		ScanDeletedVideos:  full.ScanDeletedVideos,
		FavoriteID:         full.FavoriteID,
		UploaderID:         full.UploaderID,
		UseDynamicAPI:      full.UseDynamicAPI,
		CollectionIsSeries: full.CollectionKind == model.CollectionSeries,
		CollectionMID:      full.CollectionMID,
		CollectionSID:      full.CollectionSID,
	}
}
