package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kaorin/bilisync/internal/artifact"
	"github.com/kaorin/bilisync/internal/log"
	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/taskstatus"
)

// runVideo steps v through its five-step state machine (spec.md §4.4),
// persisting the status word after each step so a process crash between
// steps resumes from the last persisted step next cycle.
func (o *Orchestrator) runVideo(ctx context.Context, v model.Video, pageSem, downloadSem chan struct{}) error {
	logger := log.FromContext(ctx).With().Int64("video_id", v.ID).Str("bvid", v.RemoteBVID).Logger()
	ctx = log.IntoContext(ctx, logger)

	uploader, err := o.Store.GetUploader(ctx, v.UploaderID)
	if err != nil {
		return fmt.Errorf("orchestrator: load uploader %d: %w", v.UploaderID, err)
	}
	videoPaths, err := o.Layout.VideoPaths(v, uploader.Name)
	if err != nil {
		return fmt.Errorf("orchestrator: resolve video paths: %w", err)
	}
	uploaderPaths := o.Layout.UploaderPaths(uploader)

	status := v.DownloadStatus
	for s := taskstatus.Step1; s <= taskstatus.Step5; s++ {
		if status.DoneForCycle(s) {
			continue
		}

		var out artifact.Outcome
		var pages []model.Page

		switch s {
		case taskstatus.Step1:
			out = artifact.Cover(ctx, o.Client, v, videoPaths, o.Opts.Skip)
		case taskstatus.Step2:
			out = artifact.VideoNFO(ctx, v, videoPaths, o.Opts.Skip, o.Opts.NFOTimeType)
		case taskstatus.Step3:
			out = artifact.UploaderAvatar(ctx, o.Client, uploader, uploaderPaths, o.Opts.Skip)
		case taskstatus.Step4:
			out = artifact.UploaderNFO(ctx, uploader, uploaderPaths, o.Opts.Skip)
		case taskstatus.Step5:
			pages, out = o.runPagesDecompose(ctx, v, uploader)
		}

		status = applyOutcome(status, s, out, o.Opts.MaxRetries)
		if err := o.persistVideoStatus(ctx, v.ID, status); err != nil {
			return err
		}
		logStepOutcome(logger, "video", int(s), out)

		if s == taskstatus.Step5 && out.Kind == artifact.Done {
			if err := o.runPages(ctx, v, uploader, pages, pageSem, downloadSem); err != nil {
				return err
			}
		}

		if !status.DoneForCycle(s) {
			// Abandoned this cycle (transient retry budget not yet
			// exhausted, or exhausted and left at the ceiling): spec.md
			// §4.4 "the entire video's remaining steps are skipped this
			// cycle as soon as any step is not done-for-cycle."
			break
		}
	}
	return nil
}

// runPagesDecompose implements video step 5's first half: fetch the page
// list (only on the first cycle — existing persisted pages are left
// alone) and upsert any newly seen pages.
func (o *Orchestrator) runPagesDecompose(ctx context.Context, v model.Video, uploader model.Uploader) ([]model.Page, artifact.Outcome) {
	existing, err := o.Store.ListPages(ctx, v.ID)
	if err != nil {
		return nil, artifact.Outcome{Kind: artifact.Transient, Err: err}
	}

	infos, out := artifact.PagesDecompose(ctx, o.Client, v, existing)
	if out.Kind != artifact.Done {
		return nil, out
	}
	if len(existing) > 0 {
		return existing, out
	}

	tx, err := o.Store.BeginTx(ctx)
	if err != nil {
		return nil, artifact.Outcome{Kind: artifact.Transient, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, info := range infos {
		p := model.Page{
			VideoID:  v.ID,
			PID:      info.PID,
			CID:      info.CID,
			Name:     info.Name,
			Duration: info.Duration,
			CoverURL: info.CoverURL,
		}
		if _, err := o.Store.UpsertPage(ctx, tx, p); err != nil {
			return nil, artifact.Outcome{Kind: artifact.Transient, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, artifact.Outcome{Kind: artifact.Transient, Err: err}
	}

	pages, err := o.Store.ListPages(ctx, v.ID)
	if err != nil {
		return nil, artifact.Outcome{Kind: artifact.Transient, Err: err}
	}
	return pages, out
}

// runPages fans every page of v out across the global page semaphore,
// awaiting all of them before the video's own errgroup slot is released
// (spec.md §4.4: page parallelism is global across videos, but a video
// stays "in-flight" until its pages are dispatched this cycle).
func (o *Orchestrator) runPages(ctx context.Context, v model.Video, uploader model.Uploader, pages []model.Page, pageSem, downloadSem chan struct{}) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range pages {
		p := p
		if p.DownloadStatus.AllDoneForCycle(taskstatus.Step5) {
			continue
		}
		g.Go(func() error {
			select {
			case pageSem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-pageSem }()
			return o.runPage(ctx, v, uploader, p, downloadSem)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) persistVideoStatus(ctx context.Context, videoID int64, status taskstatus.Word) error {
	tx, err := o.Store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: begin video status tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := o.Store.UpdateVideoStatus(ctx, tx, videoID, status); err != nil {
		return fmt.Errorf("orchestrator: update video status: %w", err)
	}
	return tx.Commit()
}

// applyOutcome maps one step's Outcome onto the packed status word per
// spec.md §4.4's per-step outcome table.
func applyOutcome(status taskstatus.Word, s taskstatus.Step, out artifact.Outcome, maxRetries taskstatus.Status) taskstatus.Word {
	switch out.Kind {
	case artifact.Done:
		return status.Succeed(s)
	case artifact.Ignored, artifact.Permanent:
		return status.Ignore(s)
	case artifact.Transient:
		return status.Fail(s, maxRetries)
	default:
		return status
	}
}

// logStepOutcome logs at the level spec.md's ambient-stack section assigns
// each outcome kind: Debug on success, Warn on retryable failure, Error on
// permanent failure.
func logStepOutcome(logger zerolog.Logger, scope string, step int, out artifact.Outcome) {
	ev := logger.Debug()
	switch out.Kind {
	case artifact.Transient:
		ev = logger.Warn()
	case artifact.Permanent:
		ev = logger.Error()
	}
	ev.Str("scope", scope).Int("step", step).Str("outcome", out.String()).Msg("step finished")
}
