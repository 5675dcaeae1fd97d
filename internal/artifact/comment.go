package artifact

import (
	"context"

	"github.com/kaorin/bilisync/internal/danmaku"
	"github.com/kaorin/bilisync/internal/model"
)

// CommentOverlay is per-page step 4: fetch the binary comment stream,
// decode it, and render it into the configured overlay file. Rendering
// runs on renderer's bounded blocking pool (spec.md §5's one named
// exception to "CPU-only work runs inline").
func CommentOverlay(ctx context.Context, fetcher CommentFetcher, renderer *danmaku.Renderer, p model.Page, paths PagePaths, opt danmaku.Option, skip SkipOption, videoWidth, videoHeight int) Outcome {
	if skip.NoDanmaku {
		return ignored("skipped by config: no_danmaku")
	}
	if fileExists(paths.OverlayPath) {
		return done()
	}

	raw, err := fetcher.GetCommentStream(ctx, p.CID)
	if err != nil {
		return classifyRemoteErr("fetch comment stream failed", err)
	}

	comments, err := danmaku.Decode(raw)
	if err != nil {
		return permanent("malformed comment stream", err)
	}
	if len(comments) == 0 {
		return ignored("no comments on this page")
	}

	if err := renderer.RenderAsync(ctx, paths.OverlayPath, comments, opt, videoWidth, videoHeight); err != nil {
		return transient(err)
	}
	return done()
}
