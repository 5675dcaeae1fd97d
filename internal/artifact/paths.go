package artifact

// VideoPaths holds the resolved filesystem locations for one video's own
// two per-video artifacts, poster and NFO (spec.md §6 filesystem layout);
// the uploader avatar/NFO pair lives in UploaderPaths. The orchestrator
// computes these once per video via internal/pathtmpl before driving the
// state machine; this package only ever reads/writes the given paths.
type VideoPaths struct {
	Dir        string // {source.path}/{video_name}
	PosterPath string // poster.jpg (multi-page) or {page_name}-poster.jpg (single-page)
	NFOPath    string // tvshow.nfo (multi-page) or {page_name}.nfo (single-page)
}

// UploaderPaths holds the resolved locations for the shared, uploader-keyed
// avatar/nfo pair (spec.md §6: "{upper_path}/{uploader_id % 16 as hex}/{uploader_id}/...").
type UploaderPaths struct {
	Dir        string
	AvatarPath string // folder.jpg
	NFOPath    string // person.nfo
}

// PagePaths holds the resolved locations for one page's five artifacts.
// SeasonDir is "{video.path}/Season 1" for multi-page videos and equal to
// the video's own directory for single-page videos (spec.md §6: "the
// Season 1 directory collapses").
type PagePaths struct {
	SeasonDir   string
	CoverPath   string // "{page_name} - S01E{pid:02}-thumb.jpg"; unused for single-page
	ContentPath string // final muxed container, e.g. "....mp4"
	TempDir     string // scratch directory for the separate video/audio downloads
	NFOPath     string
	OverlayPath string // danmaku .ass sidecar
	SubtitleDir string // one file per subtitle track is written here
}
