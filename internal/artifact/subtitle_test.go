package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaorin/bilisync/internal/apiclient"
	"github.com/kaorin/bilisync/internal/model"
)

func TestSubtitlesSkippedByConfig(t *testing.T) {
	out := Subtitles(context.Background(), &fakeSubtitleFetcher{}, &fakeDownloader{}, model.Video{}, model.Page{}, PagePaths{}, SkipOption{NoSubtitle: true})
	assert.Equal(t, Ignored, out.Kind)
}

func TestSubtitlesIgnoredWhenNoTracks(t *testing.T) {
	out := Subtitles(context.Background(), &fakeSubtitleFetcher{}, &fakeDownloader{}, model.Video{}, model.Page{}, PagePaths{SubtitleDir: t.TempDir()}, SkipOption{})
	assert.Equal(t, Ignored, out.Kind)
}

func TestSubtitlesDownloadsAndConvertsToSRT(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeSubtitleFetcher{tracks: []apiclient.SubtitleTrack{{Language: "en", URL: "http://x/en.json"}}}
	dl := &fakeDownloader{bodies: map[string][]byte{
		"http://x/en.json": []byte(`{"body":[{"from":1.0,"to":2.5,"content":"hi"}]}`),
	}}

	out := Subtitles(context.Background(), fetcher, dl, model.Video{}, model.Page{}, PagePaths{SubtitleDir: dir}, SkipOption{})
	require.Equal(t, Done, out.Kind)

	got, err := os.ReadFile(filepath.Join(dir, "en.srt"))
	require.NoError(t, err)
	assert.Contains(t, string(got), "00:00:01,000 --> 00:00:02,500")
	assert.Contains(t, string(got), "hi")
}

func TestSubtitlesIdempotentPerTrack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.srt"), []byte("existing"), 0o644))

	fetcher := &fakeSubtitleFetcher{tracks: []apiclient.SubtitleTrack{{Language: "en", URL: "http://x/en.json"}}}
	dl := &fakeDownloader{}

	out := Subtitles(context.Background(), fetcher, dl, model.Video{}, model.Page{}, PagePaths{SubtitleDir: dir}, SkipOption{})
	require.Equal(t, Done, out.Kind)
	assert.Empty(t, dl.calls)
}

func TestSubtitlesFailsWhenEveryTrackFails(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeSubtitleFetcher{tracks: []apiclient.SubtitleTrack{{Language: "en", URL: "http://x/en.json"}}}
	dl := &fakeDownloader{}

	out := Subtitles(context.Background(), fetcher, dl, model.Video{}, model.Page{}, PagePaths{SubtitleDir: dir}, SkipOption{})
	assert.NotEqual(t, Done, out.Kind)
}
