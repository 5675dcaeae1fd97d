package artifact

import (
	"context"
	"io"
	"time"

	"github.com/kaorin/bilisync/internal/apiclient"
)

// Downloader fetches an arbitrary byte payload by URL, bypassing the JSON
// rate bucket per spec.md §4.4. internal/apiclient.Client satisfies this.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// PageLister fetches a video's sub-page list (video step 5).
type PageLister interface {
	GetPageList(ctx context.Context, bvid string) ([]apiclient.PageInfo, error)
}

// StreamFetcher fetches a page's playable-stream manifest (page step 2).
type StreamFetcher interface {
	GetPlayableStreams(ctx context.Context, bvid string, cid int64) (apiclient.StreamManifest, error)
}

// CommentFetcher fetches a page's binary comment stream (page step 4).
type CommentFetcher interface {
	GetCommentStream(ctx context.Context, cid int64) ([]byte, error)
}

// SubtitleFetcher fetches a page's subtitle index (page step 5).
type SubtitleFetcher interface {
	GetSubtitleIndex(ctx context.Context, bvid string, cid int64) ([]apiclient.SubtitleTrack, error)
}

// LatencyProber matches streamsel.LatencyProber; apiclient.Client also
// satisfies it directly, kept here only so callers of this package don't
// need to import streamsel just to build a Client-shaped dependency set.
type LatencyProber interface {
	ProbeLatency(ctx context.Context, url string) (time.Duration, error)
}

// SkipOption mirrors spec.md §6 skip_option: each flag collapses the named
// step straight to Ignored without attempting the network.
type SkipOption struct {
	NoPoster   bool
	NoVideoNFO bool
	NoUpper    bool
	NoDanmaku  bool
	NoSubtitle bool
}

// NFOTimeType selects which video timestamp nfo.WriteVideoSidecar-derived
// steps render, spec.md §6 nfo_time_type.
type NFOTimeType int

const (
	NFOTimePub NFOTimeType = iota
	NFOTimeFav
)
