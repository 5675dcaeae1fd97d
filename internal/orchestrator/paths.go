// Package orchestrator implements the download orchestrator of spec.md
// §4.4: a bounded-parallelism driver that steps each video and page through
// the packed status word, dispatching to internal/artifact's pure step
// functions and persisting the result through internal/store.
package orchestrator

import (
	"fmt"
	"path/filepath"

	"github.com/kaorin/bilisync/internal/artifact"
	"github.com/kaorin/bilisync/internal/model"
	"github.com/kaorin/bilisync/internal/pathtmpl"
)

// Layout resolves the filesystem paths of spec.md §6's persistent state
// layout from a video_name/page_name template pair plus upper_path. Videos
// already carry their template-derived directory (Video.Path is computed
// once at enumeration time); uploader directories are derived here from
// upper_path. Layout fills in the fixed filenames and renders the
// page-level template per page.
type Layout struct {
	PageName  *pathtmpl.Template
	UpperPath string
}

// NewLayout builds a Layout; pageName is the parsed page_name template
// (spec.md §6: "{{ptitle}}, {{pid}}" among its fields).
func NewLayout(pageName *pathtmpl.Template, upperPath string) *Layout {
	return &Layout{PageName: pageName, UpperPath: upperPath}
}

// VideoPaths resolves the video-level sidecar paths. Multi-page videos use
// the fixed names tvshow.nfo/poster.jpg; single-page videos fold the single
// page's own name into both, per spec.md §6's layout diagram.
func (l *Layout) VideoPaths(v model.Video, uploaderName string) (artifact.VideoPaths, error) {
	if v.Category != model.CategorySinglePage {
		return artifact.VideoPaths{
			Dir:        v.Path,
			PosterPath: filepath.Join(v.Path, "poster.jpg"),
			NFOPath:    filepath.Join(v.Path, "tvshow.nfo"),
		}, nil
	}
	name, err := l.renderPageName(v, model.Page{PID: 1, Name: v.Name}, uploaderName)
	if err != nil {
		return artifact.VideoPaths{}, err
	}
	return artifact.VideoPaths{
		Dir:        v.Path,
		PosterPath: filepath.Join(v.Path, name+"-poster.jpg"),
		NFOPath:    filepath.Join(v.Path, name+".nfo"),
	}, nil
}

// UploaderPaths resolves the {upper_path}/{id%16 as hex}/{id}/ layout.
func (l *Layout) UploaderPaths(u model.Uploader) artifact.UploaderPaths {
	dir := filepath.Join(l.UpperPath, fmt.Sprintf("%x", u.ID%16), fmt.Sprintf("%d", u.ID))
	return artifact.UploaderPaths{
		Dir:        dir,
		AvatarPath: filepath.Join(dir, "folder.jpg"),
		NFOPath:    filepath.Join(dir, "person.nfo"),
	}
}

// PagePaths resolves one page's paths. Multi-page videos nest under
// "Season 1" with an "S01E{pid:02}" suffix; single-page videos write
// directly under the video directory with no season folder or episode
// suffix (spec.md §6 layout diagram).
func (l *Layout) PagePaths(v model.Video, p model.Page, uploaderName, tempRoot string) (artifact.PagePaths, error) {
	name, err := l.renderPageName(v, p, uploaderName)
	if err != nil {
		return artifact.PagePaths{}, err
	}

	base := v.Path
	filename := name
	if v.Category != model.CategorySinglePage {
		base = filepath.Join(v.Path, "Season 1")
		filename = fmt.Sprintf("%s - S01E%02d", name, p.PID)
	}

	return artifact.PagePaths{
		SeasonDir:   base,
		CoverPath:   filepath.Join(base, filename+"-thumb.jpg"),
		ContentPath: filepath.Join(base, filename+".mp4"),
		TempDir:     filepath.Join(tempRoot, fmt.Sprintf("%d-%d", v.ID, p.PID)),
		NFOPath:     filepath.Join(base, filename+".nfo"),
		OverlayPath: filepath.Join(base, filename+".ass"),
		SubtitleDir: base,
	}, nil
}

func (l *Layout) renderPageName(v model.Video, p model.Page, uploaderName string) (string, error) {
	return l.PageName.Render(pathtmpl.PageData{
		VideoData: pathtmpl.VideoData{
			BVID:      v.RemoteBVID,
			Title:     v.Name,
			UpperName: uploaderName,
			UpperMID:  v.UploaderID,
		},
		PTitle: p.Name,
		PID:    p.PID,
	})
}
