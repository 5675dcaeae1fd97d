package enumerate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/pathtmpl"
	"github.com/kaorin/bilisync/internal/source"
	"github.com/kaorin/bilisync/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	descs   []source.Descriptor
	keys    []source.OrderingKey
	drained bool
}

type fakeIterator struct {
	a   *fakeAdapter
	idx int
}

func (a *fakeAdapter) Enumerate(ctx context.Context, src source.Source) source.Iterator {
	return &fakeIterator{a: a}
}

func (it *fakeIterator) Next(ctx context.Context) (source.Descriptor, source.OrderingKey, bool, error) {
	if it.idx >= len(it.a.descs) {
		return source.Descriptor{}, 0, false, nil
	}
	d, k := it.a.descs[it.idx], it.a.keys[it.idx]
	it.idx++
	return d, k, true, nil
}

func (it *fakeIterator) Drained() bool { return it.a.drained }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "bilisync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStageRunPersistsVideosAndAdvancesWatermark(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	srcID, err := st.CreateSource(ctx, model.Source{Kind: model.KindFavorite, Name: "fav", Path: "/media/fav", Enabled: true, FavoriteID: 1})
	require.NoError(t, err)

	adapter := &fakeAdapter{
		descs: []source.Descriptor{
			{RemoteBVID: "BV1", Name: "one", PubTime: time.Unix(100, 0), FavTime: time.Unix(100, 0)},
			{RemoteBVID: "BV2", Name: "two", PubTime: time.Unix(200, 0), FavTime: time.Unix(200, 0)},
		},
		keys:    []source.OrderingKey{100, 200},
		drained: true,
	}
	stage := New(st, adapter, nil)

	full := model.Source{ID: srcID, Kind: model.KindFavorite, Path: "/media/fav", FavoriteID: 1, ScanDeletedVideos: true}
	require.NoError(t, stage.Run(ctx, full))

	sources, err := st.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, int64(200), sources[0].LatestRowAt)

	v, err := st.GetVideo(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "BV1", v.RemoteBVID)
}

func TestStageRunMarksMissingVideosDeletedWhenDrainedAndScanEnabled(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	srcID, err := st.CreateSource(ctx, model.Source{Kind: model.KindFavorite, Name: "fav", Path: "/media/fav", Enabled: true, FavoriteID: 1})
	require.NoError(t, err)
	full := model.Source{ID: srcID, Kind: model.KindFavorite, Path: "/media/fav", FavoriteID: 1, ScanDeletedVideos: true}

	firstCycle := &fakeAdapter{
		descs:   []source.Descriptor{{RemoteBVID: "BV1", Name: "one"}, {RemoteBVID: "BV2", Name: "two"}},
		keys:    []source.OrderingKey{100, 200},
		drained: true,
	}
	require.NoError(t, New(st, firstCycle, nil).Run(ctx, full))

	full.LatestRowAt = 200
	secondCycle := &fakeAdapter{
		descs:   []source.Descriptor{{RemoteBVID: "BV2", Name: "two"}},
		keys:    []source.OrderingKey{200},
		drained: true,
	}
	require.NoError(t, New(st, secondCycle, nil).Run(ctx, full))

	bv1, err := st.GetVideo(ctx, 1)
	require.NoError(t, err)
	require.True(t, bv1.Deleted, "BV1 absent from the second drained listing must be flagged deleted")

	bv2, err := st.GetVideo(ctx, 2)
	require.NoError(t, err)
	require.False(t, bv2.Deleted)
}

func TestStageRunSkipsDeletedFlipWhenNotFullyDrained(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	srcID, err := st.CreateSource(ctx, model.Source{Kind: model.KindFavorite, Name: "fav", Path: "/media/fav", Enabled: true, FavoriteID: 1})
	require.NoError(t, err)
	full := model.Source{ID: srcID, Kind: model.KindFavorite, Path: "/media/fav", FavoriteID: 1, ScanDeletedVideos: true}

	adapter := &fakeAdapter{
		descs:   []source.Descriptor{{RemoteBVID: "BV1", Name: "one"}},
		keys:    []source.OrderingKey{100},
		drained: false, // early stop, not a genuine full drain
	}
	require.NoError(t, New(st, adapter, nil).Run(ctx, full))

	v, err := st.GetVideo(ctx, 1)
	require.NoError(t, err)
	require.False(t, v.Deleted)
}

func TestStageRunRendersVideoPathFromTemplate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	srcID, err := st.CreateSource(ctx, model.Source{Kind: model.KindFavorite, Name: "fav", Path: "/media/fav", Enabled: true, FavoriteID: 1})
	require.NoError(t, err)
	full := model.Source{ID: srcID, Kind: model.KindFavorite, Path: "/media/fav", FavoriteID: 1}

	tmpl, err := pathtmpl.Parse("video_name", "{{.Title}} [{{.BVID}}]")
	require.NoError(t, err)

	adapter := &fakeAdapter{
		descs:   []source.Descriptor{{RemoteBVID: "BV1", Name: "my video"}},
		keys:    []source.OrderingKey{100},
		drained: true,
	}
	require.NoError(t, New(st, adapter, tmpl).Run(ctx, full))

	v, err := st.GetVideo(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/media/fav", "my video [BV1]"), v.Path)
}

func TestStageRunEvaluatesRuleForShouldDownload(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	srcID, err := st.CreateSource(ctx, model.Source{Kind: model.KindFavorite, Name: "fav", Path: "/media/fav", Enabled: true, FavoriteID: 1})
	require.NoError(t, err)
	full := model.Source{ID: srcID, Kind: model.KindFavorite, Path: "/media/fav", FavoriteID: 1}

	adapter := &fakeAdapter{
		descs:   []source.Descriptor{{RemoteBVID: "BV1", Name: "skip me"}},
		keys:    []source.OrderingKey{100},
		drained: true,
	}
	require.NoError(t, New(st, adapter, nil).Run(ctx, full))

	v, err := st.GetVideo(ctx, 1)
	require.NoError(t, err)
	require.True(t, v.ShouldDownload, "an empty rule accepts every video")
}
