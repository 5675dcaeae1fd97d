package source

import (
	"context"
	"testing"
	"time"

	"github.com/kaorin/bilisync/internal/apiclient"
	"github.com/kaorin/bilisync/internal/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, it Iterator) ([]Descriptor, bool) {
	t.Helper()
	var out []Descriptor
	for {
		d, _, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, d)
	}
	return out, it.Drained()
}

type fakeFavoriteClient struct {
	pages [][]apiclient.VideoDescriptor
}

func (f *fakeFavoriteClient) ListFavorites(ctx context.Context, fid int64, page int) ([]apiclient.VideoDescriptor, bool, error) {
	idx := page - 1
	if idx < 0 || idx >= len(f.pages) {
		return nil, false, nil
	}
	return f.pages[idx], idx < len(f.pages)-1, nil
}

func mkDesc(bvid string, favUnix int64) apiclient.VideoDescriptor {
	return apiclient.VideoDescriptor{RemoteBVID: bvid, FavTime: time.Unix(favUnix, 0)}
}

func TestFavoriteAdapterDrainsAllPagesWhenNoWatermark(t *testing.T) {
	client := &fakeFavoriteClient{pages: [][]apiclient.VideoDescriptor{
		{mkDesc("BV3", 300), mkDesc("BV2", 200)},
		{mkDesc("BV1", 100)},
	}}
	a := &FavoriteAdapter{Client: client}
	it := a.Enumerate(context.Background(), Source{FavoriteID: 1})
	descs, drained := drain(t, it)
	require.Len(t, descs, 3)
	assert.True(t, drained)
}

func TestFavoriteAdapterEarlyStopsAtWatermark(t *testing.T) {
	client := &fakeFavoriteClient{pages: [][]apiclient.VideoDescriptor{
		{mkDesc("BV3", 300), mkDesc("BV2", 200)},
		{mkDesc("BV1", 100)},
	}}
	a := &FavoriteAdapter{Client: client}
	it := a.Enumerate(context.Background(), Source{FavoriteID: 1, LatestRowAt: 200, ScanDeletedVideos: false})
	descs, drained := drain(t, it)
	require.Len(t, descs, 1)
	assert.Equal(t, "BV3", descs[0].RemoteBVID)
	assert.False(t, drained, "early stop means the listing was not fully drained")
}

func TestFavoriteAdapterFullDrainWhenScanDeletedVideosSet(t *testing.T) {
	client := &fakeFavoriteClient{pages: [][]apiclient.VideoDescriptor{
		{mkDesc("BV3", 300), mkDesc("BV2", 200)},
		{mkDesc("BV1", 100)},
	}}
	a := &FavoriteAdapter{Client: client}
	it := a.Enumerate(context.Background(), Source{FavoriteID: 1, LatestRowAt: 200, ScanDeletedVideos: true})
	descs, drained := drain(t, it)
	require.Len(t, descs, 3, "scan_deleted_videos must force a full drain past the watermark")
	assert.True(t, drained)
}

type permanentFavoriteClient struct{ calls int }

func (f *permanentFavoriteClient) ListFavorites(ctx context.Context, fid int64, page int) ([]apiclient.VideoDescriptor, bool, error) {
	f.calls++
	return nil, false, apierr.NewRemoteError(-403, "forbidden")
}

func TestFavoriteAdapterPermanentErrorTerminatesWithoutRetry(t *testing.T) {
	client := &permanentFavoriteClient{}
	a := &FavoriteAdapter{Client: client}
	it := a.Enumerate(context.Background(), Source{FavoriteID: 1})
	_, _, ok, err := it.Next(context.Background())
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, client.calls, "permanent errors must not be retried")
}

type transientThenOKClient struct {
	attempts int
}

func (f *transientThenOKClient) ListFavorites(ctx context.Context, fid int64, page int) ([]apiclient.VideoDescriptor, bool, error) {
	f.attempts++
	if f.attempts < 2 {
		return nil, false, apierr.NewRemoteError(500, "boom")
	}
	return []apiclient.VideoDescriptor{mkDesc("BV1", 100)}, false, nil
}

func TestFavoriteAdapterRetriesTransientError(t *testing.T) {
	client := &transientThenOKClient{}
	a := &FavoriteAdapter{Client: client}
	it := a.Enumerate(context.Background(), Source{FavoriteID: 1})
	descs, drained := drain(t, it)
	require.Len(t, descs, 1)
	assert.True(t, drained)
	assert.Equal(t, 2, client.attempts)
}

type fakeWatchLaterClient struct {
	items []apiclient.VideoDescriptor
}

func (f *fakeWatchLaterClient) ListWatchLater(ctx context.Context) ([]apiclient.VideoDescriptor, error) {
	return f.items, nil
}

func TestWatchLaterAdapterDrainsInRemoteOrder(t *testing.T) {
	client := &fakeWatchLaterClient{items: []apiclient.VideoDescriptor{
		{RemoteBVID: "BVa"}, {RemoteBVID: "BVb"},
	}}
	a := &WatchLaterAdapter{Client: client}
	it := a.Enumerate(context.Background(), Source{})
	descs, drained := drain(t, it)
	require.Len(t, descs, 2)
	assert.Equal(t, "BVa", descs[0].RemoteBVID)
	assert.True(t, drained)
}

type fakeSubmissionClient struct {
	stablePages [][]apiclient.VideoDescriptor
	dynamicPages [][]apiclient.VideoDescriptor
}

func (f *fakeSubmissionClient) ListSubmissionsStable(ctx context.Context, uploaderID int64, page int) ([]apiclient.VideoDescriptor, bool, error) {
	idx := page - 1
	if idx < 0 || idx >= len(f.stablePages) {
		return nil, false, nil
	}
	return f.stablePages[idx], idx < len(f.stablePages)-1, nil
}

func (f *fakeSubmissionClient) ListSubmissionsDynamic(ctx context.Context, uploaderID int64, offset string) ([]apiclient.VideoDescriptor, string, bool, error) {
	idx := 0
	if offset != "" {
		idx = 1
	}
	if idx >= len(f.dynamicPages) {
		return nil, "", false, nil
	}
	hasMore := idx < len(f.dynamicPages)-1
	next := ""
	if hasMore {
		next = "cursor1"
	}
	return f.dynamicPages[idx], next, hasMore, nil
}

func mkPubDesc(bvid string, pubUnix int64) apiclient.VideoDescriptor {
	return apiclient.VideoDescriptor{RemoteBVID: bvid, PubTime: time.Unix(pubUnix, 0)}
}

func TestSubmissionAdapterUsesStableBackendByDefault(t *testing.T) {
	client := &fakeSubmissionClient{stablePages: [][]apiclient.VideoDescriptor{
		{mkPubDesc("BV1", 100)},
	}}
	a := &SubmissionAdapter{Client: client}
	it := a.Enumerate(context.Background(), Source{UploaderID: 1})
	descs, drained := drain(t, it)
	require.Len(t, descs, 1)
	assert.True(t, drained)
}

func TestSubmissionAdapterUsesDynamicBackendWhenConfigured(t *testing.T) {
	client := &fakeSubmissionClient{dynamicPages: [][]apiclient.VideoDescriptor{
		{mkPubDesc("BVd1", 100)},
		{mkPubDesc("BVd2", 50)},
	}}
	a := &SubmissionAdapter{Client: client}
	it := a.Enumerate(context.Background(), Source{UploaderID: 1, UseDynamicAPI: true})
	descs, drained := drain(t, it)
	require.Len(t, descs, 2)
	assert.Equal(t, "BVd1", descs[0].RemoteBVID)
	assert.True(t, drained)
}

type fakeCollectionClient struct {
	pages [][]apiclient.VideoDescriptor
}

func (f *fakeCollectionClient) ListSeasonVideos(ctx context.Context, mid, sid int64, page int) ([]apiclient.VideoDescriptor, bool, error) {
	idx := page - 1
	if idx < 0 || idx >= len(f.pages) {
		return nil, false, nil
	}
	return f.pages[idx], idx < len(f.pages)-1, nil
}

func TestCollectionAdapterDrainsSeason(t *testing.T) {
	client := &fakeCollectionClient{pages: [][]apiclient.VideoDescriptor{
		{mkPubDesc("BVe1", 100)},
	}}
	a := &CollectionAdapter{Client: client}
	it := a.Enumerate(context.Background(), Source{CollectionMID: 1, CollectionSID: 2})
	descs, drained := drain(t, it)
	require.Len(t, descs, 1)
	assert.True(t, drained)
}
