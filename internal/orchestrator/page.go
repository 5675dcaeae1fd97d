package orchestrator

import (
	"context"
	"fmt"

	"github.com/kaorin/bilisync/internal/artifact"
	"github.com/kaorin/bilisync/internal/log"
	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/taskstatus"
)

// runPage steps p through its five-step state machine, mirroring runVideo's
// done-for-cycle discipline at the page level.
func (o *Orchestrator) runPage(ctx context.Context, v model.Video, uploader model.Uploader, p model.Page, downloadSem chan struct{}) error {
	logger := log.FromContext(ctx).With().Int64("page_id", p.ID).Int("pid", p.PID).Logger()
	ctx = log.IntoContext(ctx, logger)

	paths, err := o.Layout.PagePaths(v, p, uploader.Name, o.Opts.TempRoot)
	if err != nil {
		return fmt.Errorf("orchestrator: resolve page paths: %w", err)
	}

	status := p.DownloadStatus
	for s := taskstatus.Step1; s <= taskstatus.Step5; s++ {
		if status.DoneForCycle(s) {
			continue
		}

		var out artifact.Outcome
		switch s {
		case taskstatus.Step1:
			out = artifact.PageCover(ctx, o.Client, v, p, paths, o.Opts.Skip)
		case taskstatus.Step2:
			out = o.runPageContent(ctx, v, p, paths, downloadSem)
		case taskstatus.Step3:
			out = artifact.PageNFO(ctx, p, paths)
		case taskstatus.Step4:
			out = artifact.CommentOverlay(ctx, o.Client, o.Renderer, p, paths, o.Opts.Danmaku, o.Opts.Skip, o.Opts.OverlayWidth, o.Opts.OverlayHeight)
		case taskstatus.Step5:
			out = artifact.Subtitles(ctx, o.Client, o.Client, v, p, paths, o.Opts.Skip)
		}

		status = applyOutcome(status, s, out, o.Opts.MaxRetries)
		if err := o.persistPageStatus(ctx, p.ID, status); err != nil {
			return err
		}
		logStepOutcome(logger, "page", int(s), out)

		if !status.DoneForCycle(s) {
			break
		}
	}
	return nil
}

// runPageContent implements page step 2: select the stream, optionally
// acquire the download semaphore (SPEC_FULL.md's Open Question decision —
// only tracks whose declared bandwidth exceeds
// concurrent_limit.download.threshold take the extra gate), then transfer
// and mux.
func (o *Orchestrator) runPageContent(ctx context.Context, v model.Video, p model.Page, paths artifact.PagePaths, downloadSem chan struct{}) artifact.Outcome {
	sel, out := artifact.SelectPageStream(ctx, o.Client, o.Analyzer, v, p, o.Opts.Filter)
	if out.Kind != artifact.Done {
		return out
	}

	gate := downloadSem != nil && o.Opts.DownloadEnabled && sel.Video.Bandwidth > o.Opts.DownloadThresholdBytes
	if gate {
		select {
		case downloadSem <- struct{}{}:
		case <-ctx.Done():
			return artifact.Outcome{Kind: artifact.Transient, Err: ctx.Err()}
		}
		defer func() { <-downloadSem }()
	}

	return artifact.DownloadAndMux(ctx, o.Client, o.Muxer, sel, paths)
}

func (o *Orchestrator) persistPageStatus(ctx context.Context, pageID int64, status taskstatus.Word) error {
	tx, err := o.Store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: begin page status tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := o.Store.UpdatePageStatus(ctx, tx, pageID, status); err != nil {
		return fmt.Errorf("orchestrator: update page status: %w", err)
	}
	return tx.Commit()
}
