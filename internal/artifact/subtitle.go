package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kaorin/bilisync/internal/model"
)

// Subtitles is per-page step 5: enumerate subtitle tracks, download each,
// and convert it to an .srt sidecar (spec.md §4.4 step 5). The remote
// serves subtitles as a JSON cue list rather than a subtitle-file format
// directly, so conversion happens here rather than a plain byte copy.
func Subtitles(ctx context.Context, index SubtitleFetcher, dl Downloader, v model.Video, p model.Page, paths PagePaths, skip SkipOption) Outcome {
	if skip.NoSubtitle {
		return ignored("skipped by config: no_subtitle")
	}

	tracks, err := index.GetSubtitleIndex(ctx, v.RemoteBVID, p.CID)
	if err != nil {
		return classifyRemoteErr("fetch subtitle index failed", err)
	}
	if len(tracks) == 0 {
		return ignored("no subtitle tracks available")
	}

	if err := os.MkdirAll(paths.SubtitleDir, 0o755); err != nil {
		return transient(fmt.Errorf("artifact: mkdir subtitle dir: %w", err))
	}

	var lastErr error
	downloaded := 0
	for _, track := range tracks {
		dest := filepath.Join(paths.SubtitleDir, track.Language+".srt")
		if fileExists(dest) {
			downloaded++
			continue
		}

		rc, err := dl.Download(ctx, track.URL)
		if err != nil {
			lastErr = err
			continue
		}
		var cues subtitleCueList
		derr := json.NewDecoder(rc).Decode(&cues)
		_ = rc.Close()
		if derr != nil {
			lastErr = fmt.Errorf("decode subtitle json for %s: %w", track.Language, derr)
			continue
		}

		if err := writeSRT(dest, cues); err != nil {
			lastErr = err
			continue
		}
		downloaded++
	}

	if downloaded == 0 {
		return classifyRemoteErr("every subtitle track failed", lastErr)
	}
	return done()
}

// subtitleCueList mirrors the remote's JSON subtitle format: a flat list
// of timed cues with start/end offsets in seconds.
type subtitleCueList struct {
	Body []subtitleCue `json:"body"`
}

type subtitleCue struct {
	From    float64 `json:"from"`
	To      float64 `json:"to"`
	Content string  `json:"content"`
}

func writeSRT(path string, cues subtitleCueList) error {
	var buf []byte
	for i, c := range cues.Body {
		buf = append(buf, fmt.Sprintf(
			"%d\n%s --> %s\n%s\n\n",
			i+1,
			srtTimestamp(c.From),
			srtTimestamp(c.To),
			c.Content,
		)...)
	}
	return writeFileAtomic(path, bytes.NewReader(buf))
}

func srtTimestamp(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := d.Milliseconds() % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
