package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kaorin/bilisync/internal/apiclient"
	"github.com/kaorin/bilisync/internal/artifact"
	"github.com/kaorin/bilisync/internal/danmaku"
	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/muxer"
	"github.com/kaorin/bilisync/internal/pathtmpl"
	"github.com/kaorin/bilisync/internal/store"
	"github.com/kaorin/bilisync/internal/streamsel"
	"github.com/kaorin/bilisync/internal/taskstatus"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "bilisync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insertUploader(t *testing.T, ctx context.Context, st *store.Store, u model.Uploader) {
	t.Helper()
	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, st.UpsertUploader(ctx, tx, u))
	require.NoError(t, tx.Commit())
}

func insertVideo(t *testing.T, ctx context.Context, st *store.Store, v model.Video) model.Video {
	t.Helper()
	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)
	id, err := st.UpsertVideo(ctx, tx, v)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	v.ID = id
	return v
}

// fakeClient satisfies orchestrator.Client with canned, always-succeeding
// responses.
type fakeClient struct {
	bodies   map[string][]byte
	pages    []apiclient.PageInfo
	manifest apiclient.StreamManifest
	comments []byte
	subs     []apiclient.SubtitleTrack
}

func (f *fakeClient) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	if b, ok := f.bodies[url]; ok {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	return io.NopCloser(bytes.NewReader([]byte("data"))), nil
}
func (f *fakeClient) GetPageList(ctx context.Context, bvid string) ([]apiclient.PageInfo, error) {
	return f.pages, nil
}
func (f *fakeClient) GetPlayableStreams(ctx context.Context, bvid string, cid int64) (apiclient.StreamManifest, error) {
	return f.manifest, nil
}
func (f *fakeClient) GetCommentStream(ctx context.Context, cid int64) ([]byte, error) {
	return f.comments, nil
}
func (f *fakeClient) GetSubtitleIndex(ctx context.Context, bvid string, cid int64) ([]apiclient.SubtitleTrack, error) {
	return f.subs, nil
}
func (f *fakeClient) ProbeLatency(ctx context.Context, url string) (time.Duration, error) {
	return time.Millisecond, nil
}

// writingMux is a muxer.Muxer test double that writes a placeholder file at
// outPath, matching what a real ffmpeg invocation leaves behind.
type writingMux struct {
	muxer.Fake
}

func (w *writingMux) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	if err := w.Fake.Mux(ctx, videoPath, audioPath, outPath); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("muxed"), 0o644)
}

func testLayout(t *testing.T) *Layout {
	t.Helper()
	tmpl, err := pathtmpl.Parse("page_name", "{{.PTitle}}")
	require.NoError(t, err)
	return NewLayout(tmpl, filepath.Join(t.TempDir(), "uploaders"))
}

func TestRunDrivesSinglePageVideoToCompletion(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	st := newTestStore(t)
	ctx := context.Background()

	insertUploader(t, ctx, st, model.Uploader{ID: 1, Name: "uploader", AvatarURL: "http://x/a.jpg"})

	videoDir := t.TempDir()
	v := insertVideo(t, ctx, st, model.Video{
		SourceKind: model.KindFavorite,
		SourceID:   1,
		RemoteBVID: "BV1",
		CoverURL:   "http://x/cover.jpg",
		Name:       "my video",
		Path:       videoDir,
		Category:   model.CategorySinglePage,
		SinglePage: true,
		UploaderID: 1,
	})

	client := &fakeClient{
		pages: []apiclient.PageInfo{{PID: 1, CID: 100, Name: "my video"}},
		manifest: apiclient.StreamManifest{
			VideoTracks: []apiclient.VideoTrack{{Quality: 1, URL: "http://x/v"}},
			AudioTracks: []apiclient.AudioTrack{{Quality: 1, URL: "http://x/a"}},
		},
	}

	o := New(st, client, streamsel.New(nil), &writingMux{}, danmaku.NewRenderer(2), testLayout(t), Options{
		VideoConcurrency: 2,
		PageConcurrency:  2,
		MaxRetries:       taskstatus.MaxRetries,
		Danmaku:          danmaku.DefaultOption(),
		OverlayWidth:     1920,
		OverlayHeight:    1080,
		TempRoot:         t.TempDir(),
	})

	require.NoError(t, o.Run(ctx, []model.Video{v}))

	got, err := st.GetVideo(ctx, v.ID)
	require.NoError(t, err)
	for s := taskstatus.Step1; s <= taskstatus.Step5; s++ {
		assert.True(t, got.DownloadStatus.DoneForCycle(s), "video step %d should be done-for-cycle", s)
	}

	pages, err := st.ListPages(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	for s := taskstatus.Step1; s <= taskstatus.Step5; s++ {
		assert.True(t, pages[0].DownloadStatus.DoneForCycle(s), "page step %d should be done-for-cycle", s)
	}
}

func TestApplyOutcomeMapsEachKind(t *testing.T) {
	zero := taskstatus.Word(0)

	done := applyOutcome(zero, taskstatus.Step1, artifact.Outcome{Kind: artifact.Done}, taskstatus.MaxRetries)
	assert.Equal(t, taskstatus.Completed, done.Get(taskstatus.Step1))

	ignored := applyOutcome(zero, taskstatus.Step1, artifact.Outcome{Kind: artifact.Ignored, Reason: "skipped"}, taskstatus.MaxRetries)
	assert.True(t, ignored.Get(taskstatus.Step1) >= taskstatus.IgnoredBase)

	failed := applyOutcome(zero, taskstatus.Step1, artifact.Outcome{Kind: artifact.Transient, Err: errors.New("boom")}, taskstatus.MaxRetries)
	assert.Equal(t, taskstatus.Status(1), failed.Get(taskstatus.Step1))
}
