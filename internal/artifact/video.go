package artifact

import (
	"context"
	"fmt"

	"github.com/kaorin/bilisync/internal/apiclient"
	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/nfo"
)

// Cover is per-video step 1: download video.cover_url to paths.PosterPath.
func Cover(ctx context.Context, dl Downloader, v model.Video, paths VideoPaths, skip SkipOption) Outcome {
	if skip.NoPoster {
		return ignored("skipped by config: no_poster")
	}
	if v.CoverURL == "" {
		return permanent("video has no cover_url", nil)
	}
	if fileExists(paths.PosterPath) {
		return done()
	}

	rc, err := dl.Download(ctx, v.CoverURL)
	if err != nil {
		return classifyRemoteErr("cover download failed", err)
	}
	defer func() { _ = rc.Close() }()

	if err := writeFileAtomic(paths.PosterPath, rc); err != nil {
		return transient(err)
	}
	return done()
}

// VideoNFO is per-video step 2: write the container-level metadata
// sidecar. Pure-local and deterministic from DB fields, so it never fails
// for a transient reason (spec.md §4.4 step 2).
func VideoNFO(ctx context.Context, v model.Video, paths VideoPaths, skip SkipOption, timeType NFOTimeType) Outcome {
	if skip.NoVideoNFO {
		return ignored("skipped by config: no_video_nfo")
	}

	render := v
	if timeType == NFOTimeFav {
		render.PubTime = v.FavTime
	}

	if err := nfo.WriteVideoSidecar(ctx, paths.NFOPath, render); err != nil {
		return permanent("write video nfo failed", err)
	}
	return done()
}

// UploaderAvatar is per-video step 3: download uploader.avatar_url into
// the shared, uploader-keyed directory if not already present.
func UploaderAvatar(ctx context.Context, dl Downloader, u model.Uploader, paths UploaderPaths, skip SkipOption) Outcome {
	if skip.NoUpper {
		return ignored("skipped by config: no_upper")
	}
	if u.AvatarURL == "" {
		return permanent("uploader has no avatar_url", nil)
	}
	if fileExists(paths.AvatarPath) {
		return done()
	}

	rc, err := dl.Download(ctx, u.AvatarURL)
	if err != nil {
		return classifyRemoteErr("uploader avatar download failed", err)
	}
	defer func() { _ = rc.Close() }()

	if err := writeFileAtomic(paths.AvatarPath, rc); err != nil {
		return transient(err)
	}
	return done()
}

// UploaderNFO is per-video step 4: write the uploader's person.nfo
// sidecar if not already present. Like VideoNFO this is pure-local.
func UploaderNFO(ctx context.Context, u model.Uploader, paths UploaderPaths, skip SkipOption) Outcome {
	if skip.NoUpper {
		return ignored("skipped by config: no_upper")
	}
	if fileExists(paths.NFOPath) {
		return done()
	}
	if err := nfo.WriteUploaderSidecar(ctx, paths.NFOPath, u); err != nil {
		return permanent("write uploader nfo failed", err)
	}
	return done()
}

// PagesDecompose is per-video step 5's decompose half: fetch the remote
// page list and report how many pages it describes. The caller (the
// orchestrator) is responsible for inserting rows via store.UpsertPage
// inside its own transaction and for then driving each page's own state
// machine — this function only classifies the fetch itself, since
// "pages decompose" as a single status-word field can only ever mean
// "the page list was obtained", not "every page finished downloading".
//
// If existing is non-empty, the video has already been decomposed in a
// prior cycle; re-fetching is unnecessary and this returns Done
// immediately (the idempotence invariant applied to a list, not a file).
func PagesDecompose(ctx context.Context, lister PageLister, v model.Video, existing []model.Page) ([]apiclient.PageInfo, Outcome) {
	if len(existing) > 0 {
		return nil, done()
	}

	pages, err := lister.GetPageList(ctx, v.RemoteBVID)
	if err != nil {
		return nil, classifyRemoteErr("fetch page list failed", err)
	}
	if len(pages) == 0 {
		return nil, permanent("remote reported zero pages", fmt.Errorf("empty page list for %s", v.RemoteBVID))
	}
	return pages, done()
}
