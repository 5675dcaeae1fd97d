package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kaorin/bilisync/internal/filter"
	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/taskstatus"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "bilisync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndListSourcesAcrossKinds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	favID, err := s.CreateSource(ctx, model.Source{
		Kind: model.KindFavorite, Name: "fav", Path: "/media/fav", Enabled: true, FavoriteID: 42,
	})
	require.NoError(t, err)
	require.NotZero(t, favID)

	_, err = s.CreateSource(ctx, model.Source{
		Kind: model.KindSubmission, Name: "sub", Path: "/media/sub", Enabled: true,
		UploaderID: 7, UseDynamicAPI: true,
		Rule: filter.Rule{{{Field: filter.FieldTitle, Op: filter.OpContains, Value: "ep"}}},
	})
	require.NoError(t, err)

	_, err = s.CreateSource(ctx, model.Source{
		Kind: model.KindWatchLater, Name: "wl", Path: "/media/wl", Enabled: false,
	})
	require.NoError(t, err)

	sources, err := s.ListSources(ctx)
	require.NoError(t, err)
	// watch_later was created disabled, so only favorite + submission list.
	require.Len(t, sources, 2)

	var sawSubmission bool
	for _, src := range sources {
		if src.Kind == model.KindSubmission {
			sawSubmission = true
			require.True(t, src.UseDynamicAPI)
			require.Len(t, src.Rule, 1)
		}
	}
	require.True(t, sawSubmission)
}

func TestSyncSourcesIsIdempotentAcrossRestarts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	declared := []model.Source{
		{Kind: model.KindFavorite, Name: "fav", Path: "/media/fav", Enabled: true, FavoriteID: 42},
	}

	first, err := s.SyncSources(ctx, declared)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NotZero(t, first[0].ID)

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, s.UpdateLatestRowAt(ctx, tx, model.KindFavorite, first[0].ID, 999))
	require.NoError(t, tx.Commit())

	second, err := s.SyncSources(ctx, declared)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, int64(999), second[0].LatestRowAt)

	renamed := declared
	renamed[0].Name = "favorites renamed"
	third, err := s.SyncSources(ctx, renamed)
	require.NoError(t, err)
	require.Equal(t, first[0].ID, third[0].ID)
	require.Equal(t, "favorites renamed", third[0].Name)
	require.Equal(t, int64(999), third[0].LatestRowAt)
}

func TestUpdateLatestRowAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSource(ctx, model.Source{Kind: model.KindFavorite, Name: "fav", Path: "/x", Enabled: true, FavoriteID: 1})
	require.NoError(t, err)

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, s.UpdateLatestRowAt(ctx, tx, model.KindFavorite, id, 123456))
	require.NoError(t, tx.Commit())

	sources, err := s.ListSources(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(123456), sources[0].LatestRowAt)
}

func TestUpsertVideoInsertThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v := model.Video{
		SourceKind: model.KindFavorite,
		SourceID:   1,
		RemoteBVID: "BV1aa4y1x7KM",
		Name:       "original title",
		Tags:       []string{"a", "b"},
		SinglePage: true,
	}

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	id, err := s.UpsertVideo(ctx, tx, v)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.NotZero(t, id)

	v.Name = "renamed title"
	v.ShouldDownload = true

	tx, err = s.BeginTx(ctx)
	require.NoError(t, err)
	id2, err := s.UpsertVideo(ctx, tx, v)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.Equal(t, id, id2, "upsert on conflict must resolve to the same row")

	got, err := s.GetVideo(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "renamed title", got.Name)
	require.False(t, got.ShouldDownload, "should_download is admin-owned; a re-enumerate must not revert an admin's reset")
	require.Equal(t, []string{"a", "b"}, got.Tags)
}

func TestUpsertVideoLeavesShouldDownloadToAdminOnUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v := model.Video{
		SourceKind:     model.KindFavorite,
		SourceID:       1,
		RemoteBVID:     "BV1aa4y1x7KM",
		Name:           "original title",
		ShouldDownload: true,
	}

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	id, err := s.UpsertVideo(ctx, tx, v)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	// An admin flips should_download to false directly (simulating the
	// re-evaluate endpoint), then the next enumeration cycle re-upserts the
	// same remote descriptor with its rule-evaluated value of true again.
	_, err = s.DB().ExecContext(ctx, `UPDATE videos SET should_download = 0 WHERE id = ?`, id)
	require.NoError(t, err)

	v.Name = "title changed upstream"
	v.ShouldDownload = true
	tx, err = s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = s.UpsertVideo(ctx, tx, v)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	got, err := s.GetVideo(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "title changed upstream", got.Name, "mutable remote-derived fields still update")
	require.False(t, got.ShouldDownload, "admin's should_download decision must survive the next enumeration's upsert")
}

func TestMarkUndeletedMissingFlipsOnlyAbsentVideos(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = s.UpsertVideo(ctx, tx, model.Video{SourceKind: model.KindFavorite, SourceID: 1, RemoteBVID: "BV1"})
	require.NoError(t, err)
	keptID, err := s.UpsertVideo(ctx, tx, model.Video{SourceKind: model.KindFavorite, SourceID: 1, RemoteBVID: "BV2"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, s.MarkUndeletedMissing(ctx, tx, model.KindFavorite, 1, []string{"BV2"}))
	require.NoError(t, tx.Commit())

	kept, err := s.GetVideo(ctx, keptID)
	require.NoError(t, err)
	require.False(t, kept.Deleted)

	rows, err := s.db.QueryContext(ctx, `SELECT remote_bvid, deleted FROM videos WHERE remote_bvid = 'BV1'`)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var bvid string
	var deleted bool
	require.NoError(t, rows.Scan(&bvid, &deleted))
	require.True(t, deleted)
}

func TestListDownloadableVideosExcludesDoneAndDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done := taskstatus.Word(0)
	for step := taskstatus.Step1; step <= taskstatus.Step5; step++ {
		done = done.Succeed(step)
	}

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	_, err = s.UpsertVideo(ctx, tx, model.Video{
		SourceKind: model.KindFavorite, SourceID: 1, RemoteBVID: "BVdone",
		ShouldDownload: true, DownloadStatus: done,
	})
	require.NoError(t, err)
	_, err = s.UpsertVideo(ctx, tx, model.Video{
		SourceKind: model.KindFavorite, SourceID: 1, RemoteBVID: "BVpending",
		ShouldDownload: true,
	})
	require.NoError(t, err)
	_, err = s.UpsertVideo(ctx, tx, model.Video{
		SourceKind: model.KindFavorite, SourceID: 1, RemoteBVID: "BVskip",
		ShouldDownload: false,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	list, err := s.ListDownloadableVideos(ctx, taskstatus.Step5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "BVpending", list[0].RemoteBVID)
}

func TestPagesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	videoID, err := s.UpsertVideo(ctx, tx, model.Video{SourceKind: model.KindFavorite, SourceID: 1, RemoteBVID: "BV1"})
	require.NoError(t, err)
	_, err = s.UpsertPage(ctx, tx, model.Page{VideoID: videoID, PID: 1, Name: "part 1"})
	require.NoError(t, err)
	_, err = s.UpsertPage(ctx, tx, model.Page{VideoID: videoID, PID: 2, Name: "part 2"})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	pages, err := s.ListPages(ctx, videoID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.Equal(t, "part 1", pages[0].Name)
	require.Equal(t, 2, pages[1].PID)
}

func TestSchedulerStatusRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st, err := s.GetSchedulerStatus(ctx)
	require.NoError(t, err)
	require.False(t, st.IsRunning)

	st.IsRunning = true
	require.NoError(t, s.PutSchedulerStatus(ctx, st))

	got, err := s.GetSchedulerStatus(ctx)
	require.NoError(t, err)
	require.True(t, got.IsRunning)
}

func TestUploaderUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, s.UpsertUploader(ctx, tx, model.Uploader{ID: 99, Name: "alice", AvatarURL: "http://x/a.png"}))
	require.NoError(t, tx.Commit())

	u, err := s.GetUploader(ctx, 99)
	require.NoError(t, err)
	require.Equal(t, "alice", u.Name)
}
