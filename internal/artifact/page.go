package artifact

import (
	"context"

	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/nfo"
)

// PageCover is per-page step 1: downloads a page's thumbnail for
// multi-page videos. Single-page videos fold their one page's cover into
// the video-level poster (spec.md §4.4 step 1 for pages), so this is
// Ignored whenever v.SinglePage is true.
func PageCover(ctx context.Context, dl Downloader, v model.Video, p model.Page, paths PagePaths, skip SkipOption) Outcome {
	if v.SinglePage {
		return ignored("single-page video: page cover folded into video poster")
	}
	if skip.NoPoster {
		return ignored("skipped by config: no_poster")
	}
	if p.CoverURL == "" {
		return permanent("page has no cover_url", nil)
	}
	if fileExists(paths.CoverPath) {
		return done()
	}

	rc, err := dl.Download(ctx, p.CoverURL)
	if err != nil {
		return classifyRemoteErr("page cover download failed", err)
	}
	defer func() { _ = rc.Close() }()

	if err := writeFileAtomic(paths.CoverPath, rc); err != nil {
		return transient(err)
	}
	return done()
}

// PageNFO is per-page step 3: writes the episode-level sidecar.
func PageNFO(ctx context.Context, p model.Page, paths PagePaths) Outcome {
	if fileExists(paths.NFOPath) {
		return done()
	}
	if err := nfo.WritePageSidecar(ctx, paths.NFOPath, p); err != nil {
		return permanent("write page nfo failed", err)
	}
	return done()
}
