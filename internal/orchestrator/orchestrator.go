package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kaorin/bilisync/internal/artifact"
	"github.com/kaorin/bilisync/internal/danmaku"
	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/muxer"
	"github.com/kaorin/bilisync/internal/store"
	"github.com/kaorin/bilisync/internal/streamsel"
)

// Client is the full remote surface the orchestrator's artifact steps
// consume; *apiclient.Client satisfies it directly.
type Client interface {
	artifact.Downloader
	artifact.PageLister
	artifact.StreamFetcher
	artifact.CommentFetcher
	artifact.SubtitleFetcher
	artifact.LatencyProber
}

// Orchestrator drives the per-video and per-page state machines of
// spec.md §4.4 over one source's downloadable videos.
type Orchestrator struct {
	Store    *store.Store
	Client   Client
	Analyzer *streamsel.Analyzer
	Muxer    muxer.Muxer
	Renderer *danmaku.Renderer
	Layout   *Layout
	Opts     Options
}

// New builds an Orchestrator.
func New(st *store.Store, client Client, analyzer *streamsel.Analyzer, mux muxer.Muxer, renderer *danmaku.Renderer, layout *Layout, opts Options) *Orchestrator {
	return &Orchestrator{Store: st, Client: client, Analyzer: analyzer, Muxer: mux, Renderer: renderer, Layout: layout, Opts: opts}
}

// Run drives every given video's state machine to completion for this
// cycle, bounding per-video parallelism at Opts.VideoConcurrency and global
// page parallelism at Opts.PageConcurrency (spec.md §4.4's two core
// parallelism invariants; videos are taken in the order given, which
// Store.ListDownloadableVideos already returns in ascending id order for
// spec.md's per-video fairness rule).
func (o *Orchestrator) Run(ctx context.Context, videos []model.Video) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.Opts.VideoConcurrency, 1))

	pageSem := make(chan struct{}, max(o.Opts.PageConcurrency, 1))
	var downloadSem chan struct{}
	if o.Opts.DownloadEnabled {
		downloadSem = make(chan struct{}, max(o.Opts.DownloadConcurrency, 1))
	}

	for _, v := range videos {
		v := v
		g.Go(func() error {
			return o.runVideo(ctx, v, pageSem, downloadSem)
		})
	}
	return g.Wait()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
