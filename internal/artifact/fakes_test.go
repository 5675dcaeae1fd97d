package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/kaorin/bilisync/internal/apiclient"
)

var errNotRegistered = errors.New("fake downloader: url not registered")

// fakeDownloader serves canned bodies keyed by URL, or fails with Err if
// the URL isn't registered and Err is set.
type fakeDownloader struct {
	bodies map[string][]byte
	err    error
	calls  []string
}

func (f *fakeDownloader) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	f.calls = append(f.calls, url)
	if body, ok := f.bodies[url]; ok {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return nil, errNotRegistered
}

type fakePageLister struct {
	pages []apiclient.PageInfo
	err   error
}

func (f *fakePageLister) GetPageList(ctx context.Context, bvid string) ([]apiclient.PageInfo, error) {
	return f.pages, f.err
}

type fakeStreamFetcher struct {
	manifest apiclient.StreamManifest
	err      error
}

func (f *fakeStreamFetcher) GetPlayableStreams(ctx context.Context, bvid string, cid int64) (apiclient.StreamManifest, error) {
	return f.manifest, f.err
}

type fakeCommentFetcher struct {
	body []byte
	err  error
}

func (f *fakeCommentFetcher) GetCommentStream(ctx context.Context, cid int64) ([]byte, error) {
	return f.body, f.err
}

type fakeSubtitleFetcher struct {
	tracks []apiclient.SubtitleTrack
	err    error
}

func (f *fakeSubtitleFetcher) GetSubtitleIndex(ctx context.Context, bvid string, cid int64) ([]apiclient.SubtitleTrack, error) {
	return f.tracks, f.err
}
