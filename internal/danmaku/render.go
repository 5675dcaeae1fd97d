package danmaku

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/kaorin/bilisync/internal/log"
)

// Renderer writes a decoded comment stream into an ASS overlay file. Heavy
// renders (large comment counts) are offloaded to a bounded blocking worker
// pool, sized independently of concurrent_limit.page, via RenderAsync
// (spec.md §5's one named exception to "CPU-only work runs inline").
type Renderer struct {
	sem chan struct{}
}

// NewRenderer builds a Renderer whose worker pool admits at most
// poolSize concurrent renders.
func NewRenderer(poolSize int) *Renderer {
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Renderer{sem: make(chan struct{}, poolSize)}
}

// RenderAsync blocks until a pool slot is free (or ctx is cancelled), then
// renders synchronously on the calling goroutine — "offload to a blocking
// pool" means bounding concurrency, not returning before the work is done.
func (r *Renderer) RenderAsync(ctx context.Context, path string, comments []Comment, opt Option, videoWidth, videoHeight int) error {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-r.sem }()

	return render(ctx, path, comments, opt, videoWidth, videoHeight)
}

func render(ctx context.Context, path string, comments []Comment, opt Option, width, height int) error {
	logger := log.FromContext(ctx)

	sorted := make([]Comment, len(comments))
	copy(sorted, comments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	var buf strings.Builder
	writeHeader(&buf, opt, width, height)

	floatingLimit := int(float64(height) * opt.FloatingCap)
	bottomLimit := int(float64(height) * opt.BottomCap)
	lanes := newLaneTracker(opt.LaneHeight, floatingLimit, bottomLimit)

	for _, c := range sorted {
		ts := c.Time + time.Duration(opt.TimeOffset*float64(time.Second))
		if ts < 0 {
			continue
		}
		lane, ok := lanes.assign(c.Mode, ts, scrollDuration(opt))
		if !ok {
			continue // exceeds the floating/bottom cap, drop silently
		}
		writeEvent(&buf, c, ts, lane, opt, width)
	}

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("danmaku: create pending file %s: %w", path, err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending danmaku file")
		}
	}()

	if _, err := pendingFile.Write([]byte(buf.String())); err != nil {
		return fmt.Errorf("danmaku: write overlay: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("danmaku: atomically replace %s: %w", path, err)
	}
	return nil
}

func scrollDuration(opt Option) time.Duration {
	base := 8 * time.Second
	if opt.ScrollRatio <= 0 {
		return base
	}
	return time.Duration(float64(base) / opt.ScrollRatio)
}

func writeHeader(buf *strings.Builder, opt Option, width, height int) {
	fmt.Fprintf(buf, "[Script Info]\nPlayResX: %d\nPlayResY: %d\n\n", width, height)
	fmt.Fprintf(buf, "[V4+ Styles]\nFormat: Name, Fontname, Fontsize, Bold, Outline\n")
	bold := "0"
	if opt.Bold {
		bold = "1"
	}
	fmt.Fprintf(buf, "Style: Danmaku,%s,%d,%s,%.1f\n\n", opt.Font, opt.FontSize, bold, opt.Outline)
	buf.WriteString("[Events]\nFormat: Layer, Start, End, Style, Text\n")
}

func writeEvent(buf *strings.Builder, c Comment, start time.Duration, lane int, opt Option, width int) {
	end := start + scrollDuration(opt)
	switch c.Mode {
	case ModeScroll:
		fmt.Fprintf(buf, "Dialogue: 0,%s,%s,Danmaku,{\\move(%d,%d,%d,%d)}%s\n",
			formatASSTime(start), formatASSTime(end), width, lane, -200, lane, escape(c.Text))
	default:
		fmt.Fprintf(buf, "Dialogue: 0,%s,%s,Danmaku,{\\pos(%d,%d)}%s\n",
			formatASSTime(start), formatASSTime(end), width/2, lane, escape(c.Text))
	}
}

func formatASSTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	cs := (d.Milliseconds() % 1000) / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

func escape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\\", "/"), "\n", " ")
}

// laneTracker assigns comments to a fixed grid of vertical lanes so
// simultaneous comments don't overlap, enforcing the floating/bottom
// percentage caps from danmaku_option.
type laneTracker struct {
	laneHeight    int
	floatingLimit int
	bottomLimit   int
	laneFreeAt    map[int]time.Duration
}

func newLaneTracker(laneHeight, floatingLimit, bottomLimit int) *laneTracker {
	if laneHeight <= 0 {
		laneHeight = 40
	}
	return &laneTracker{laneHeight: laneHeight, floatingLimit: floatingLimit, bottomLimit: bottomLimit, laneFreeAt: map[int]time.Duration{}}
}

func (lt *laneTracker) assign(mode Mode, start time.Duration, duration time.Duration) (int, bool) {
	limit := lt.floatingLimit
	if mode != ModeScroll {
		limit = lt.bottomLimit
	}
	if limit <= 0 {
		return 0, false
	}
	maxLanes := limit / lt.laneHeight
	if maxLanes <= 0 {
		maxLanes = 1
	}
	for i := 0; i < maxLanes; i++ {
		y := i * lt.laneHeight
		if start >= lt.laneFreeAt[y] {
			lt.laneFreeAt[y] = start + duration
			return y, true
		}
	}
	return 0, false
}
