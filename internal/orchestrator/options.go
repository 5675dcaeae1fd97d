package orchestrator

import (
	"github.com/kaorin/bilisync/internal/artifact"
	"github.com/kaorin/bilisync/internal/danmaku"
	"github.com/kaorin/bilisync/internal/streamsel"
	"github.com/kaorin/bilisync/internal/taskstatus"
)

// Options carries every config-derived knob the orchestrator needs, so
// this package stays free of a direct dependency on internal/config (the
// same layering choice internal/artifact already makes).
type Options struct {
	VideoConcurrency int // concurrent_limit.video
	PageConcurrency  int // concurrent_limit.page

	// DownloadConcurrency/DownloadThresholdBytes implement
	// concurrent_limit.download: a second semaphore that additionally
	// bounds how many page-content steps may be mid-transfer at once, only
	// for tracks whose declared bandwidth exceeds the threshold.
	DownloadEnabled        bool
	DownloadConcurrency    int
	DownloadThresholdBytes int64

	MaxRetries taskstatus.Status

	Skip        artifact.SkipOption
	NFOTimeType artifact.NFOTimeType
	Filter      streamsel.FilterOption
	Danmaku     danmaku.Option

	// OverlayWidth/OverlayHeight size the danmaku canvas; the remote's
	// manifest doesn't carry pixel dimensions (only quality/bandwidth), so
	// this is a configured default rather than a per-track value.
	OverlayWidth  int
	OverlayHeight int

	// TempRoot is the scratch directory DownloadAndMux stages tracks in
	// before muxing.
	TempRoot string
}

// DefaultOptions mirrors the remote player's own defaults, matching
// danmaku.DefaultOption's precedent.
func DefaultOptions() Options {
	return Options{
		VideoConcurrency: 2,
		PageConcurrency:  4,
		MaxRetries:       taskstatus.MaxRetries,
		Danmaku:          danmaku.DefaultOption(),
		OverlayWidth:     1920,
		OverlayHeight:    1080,
	}
}
