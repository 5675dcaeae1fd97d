package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/muxer"
	"github.com/kaorin/bilisync/internal/streamsel"
)

// SelectPageStream is the first half of per-page step 2: fetch the
// playable-stream manifest and run the analyzer. Split from DownloadAndMux
// so the orchestrator can inspect the chosen video track's declared
// bandwidth and decide whether to acquire the separate
// concurrent_limit.download gate (DESIGN.md Open Question decision 3)
// before the actual transfer begins.
func SelectPageStream(ctx context.Context, streams StreamFetcher, analyzer *streamsel.Analyzer, v model.Video, p model.Page, opt streamsel.FilterOption) (streamsel.Selection, Outcome) {
	manifest, err := streams.GetPlayableStreams(ctx, v.RemoteBVID, p.CID)
	if err != nil {
		return streamsel.Selection{}, classifyRemoteErr("fetch playable streams failed", err)
	}

	sel, err := analyzer.Select(ctx, manifest, opt)
	if err != nil {
		return streamsel.Selection{}, permanent("no stream satisfies filter_option", err)
	}
	return sel, done()
}

// DownloadAndMux is the second half of per-page step 2: download the
// selected video and audio tracks to a scratch directory, mux them with
// the external muxer, then atomically rename the result into place and
// remove the intermediates (spec.md §4.4 step 2).
func DownloadAndMux(ctx context.Context, dl Downloader, mux muxer.Muxer, sel streamsel.Selection, paths PagePaths) Outcome {
	if fileExists(paths.ContentPath) {
		return done()
	}
	if err := os.MkdirAll(paths.TempDir, 0o755); err != nil {
		return transient(fmt.Errorf("artifact: mkdir temp dir: %w", err))
	}

	videoTmp := filepath.Join(paths.TempDir, "video.track")
	audioTmp := filepath.Join(paths.TempDir, "audio.track")
	defer func() {
		_ = os.Remove(videoTmp)
		_ = os.Remove(audioTmp)
	}()

	if out := downloadTrack(ctx, dl, sel.Video.URL, sel.Video.BackupURLs, videoTmp); out.Kind != Done {
		return out
	}
	if out := downloadTrack(ctx, dl, sel.Audio.URL, sel.Audio.BackupURLs, audioTmp); out.Kind != Done {
		return out
	}

	if err := os.MkdirAll(filepath.Dir(paths.ContentPath), 0o755); err != nil {
		return transient(fmt.Errorf("artifact: mkdir content dir: %w", err))
	}
	muxTmp := paths.ContentPath + ".muxing"
	if err := mux.Mux(ctx, videoTmp, audioTmp, muxTmp); err != nil {
		_ = os.Remove(muxTmp)
		return transient(fmt.Errorf("artifact: mux failed: %w", err))
	}
	if err := os.Rename(muxTmp, paths.ContentPath); err != nil {
		return transient(fmt.Errorf("artifact: rename muxed output: %w", err))
	}
	return done()
}

// downloadTrack tries the primary URL, then each backup in order,
// returning on the first success — the fallback chain streamsel's
// cdn_sorting (or a plain unsorted backup list) provides.
func downloadTrack(ctx context.Context, dl Downloader, primary string, backups []string, dest string) Outcome {
	urls := append([]string{primary}, backups...)
	var lastErr error
	for _, u := range urls {
		rc, err := dl.Download(ctx, u)
		if err != nil {
			lastErr = err
			continue
		}
		werr := writeFileAtomic(dest, rc)
		_ = rc.Close()
		if werr == nil {
			return done()
		}
		lastErr = werr
	}
	return classifyRemoteErr("track download failed on all candidate URLs", lastErr)
}
