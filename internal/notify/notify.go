// Package notify implements spec.md §2's cycle-completion fan-out: a log
// sink is always present, with optional webhook and Slack sinks layered on
// top. No sink failure ever reaches the scheduler — each is given its own
// timeout and its error is logged and dropped.
package notify

import (
	"context"
	"time"

	"github.com/kaorin/bilisync/internal/log"
)

// Summary describes the outcome of one completed scheduler cycle.
type Summary struct {
	CycleID          string
	Started          time.Time
	Finished         time.Time
	SourcesProcessed int
	VideosDiscovered int
	VideosDownloaded int
	VideosFailed     int
	Errors           []string
}

// Sink delivers a cycle Summary somewhere. Implementations must respect
// ctx's deadline and return promptly on cancellation.
type Sink interface {
	Notify(ctx context.Context, s Summary) error
}

// Fanout delivers a Summary to every configured Sink, each with its own
// timeout, swallowing individual sink errors so one broken webhook never
// blocks the next cycle.
type Fanout struct {
	sinks      []Sink
	sinkTimeout time.Duration
}

// New builds a Fanout. sinkTimeout bounds each individual sink call;
// callers typically pass a handful of seconds.
func New(sinkTimeout time.Duration, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, sinkTimeout: sinkTimeout}
}

// Notify delivers s to every sink sequentially, logging and discarding any
// sink error. It never returns an error itself.
func (f *Fanout) Notify(ctx context.Context, s Summary) {
	for _, sink := range f.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, f.sinkTimeout)
		if err := sink.Notify(sinkCtx, s); err != nil {
			log.FromContext(ctx).Warn().Err(err).Str("cycle_id", s.CycleID).Msg("notify sink failed")
		}
		cancel()
	}
}

// LogSink writes the summary to the structured logger; every Fanout should
// hold at least one of these so a cycle's outcome is never silently lost.
type LogSink struct{}

func (LogSink) Notify(ctx context.Context, s Summary) error {
	log.FromContext(ctx).Info().
		Str("cycle_id", s.CycleID).
		Int("sources_processed", s.SourcesProcessed).
		Int("videos_discovered", s.VideosDiscovered).
		Int("videos_downloaded", s.VideosDownloaded).
		Int("videos_failed", s.VideosFailed).
		Dur("duration", s.Finished.Sub(s.Started)).
		Msg("cycle complete")
	return nil
}
