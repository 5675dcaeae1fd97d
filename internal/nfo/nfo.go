// Package nfo writes Kodi/Jellyfin-style XML sidecar files for videos,
// pages, and uploaders (spec.md §4.4 steps 2/3/4/3). Writes are atomic and
// fsync'd via renameio, mirroring
// _examples/ManuGH-xg2g/internal/jobs/write_unix.go's pending-file pattern.
package nfo

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/google/renameio/v2"
	"github.com/kaorin/bilisync/internal/log"
	"github.com/kaorin/bilisync/internal/model"
)

// TVShow is the container-level sidecar for a multi-page video
// (`tvshow.nfo`).
type TVShow struct {
	XMLName xml.Name `xml:"tvshow"`
	Title   string   `xml:"title"`
	Plot    string   `xml:"plot"`
	Premiered string `xml:"premiered"`
	UniqueID  string `xml:"uniqueid"`
}

// Episode is the single-page or per-page sidecar.
type Episode struct {
	XMLName xml.Name `xml:"episodedetails"`
	Title   string   `xml:"title"`
	Plot    string   `xml:"plot"`
	Aired   string   `xml:"aired"`
	Episode int      `xml:"episode"`
}

// Person is the uploader sidecar (`person.nfo`).
type Person struct {
	XMLName xml.Name `xml:"person"`
	Name    string   `xml:"name"`
	UniqueID string  `xml:"uniqueid"`
}

// WriteVideoSidecar writes tvshow.nfo (multi-page) or the single-page
// episode sidecar, at path, from video fields.
func WriteVideoSidecar(ctx context.Context, path string, v model.Video) error {
	if v.Category == model.CategoryMultiPage {
		doc := TVShow{
			Title:     v.Name,
			Plot:      v.Intro,
			Premiered: v.PubTime.Format("2006-01-02"),
			UniqueID:  v.RemoteBVID,
		}
		return writeXML(ctx, path, doc)
	}
	doc := Episode{
		Title:   v.Name,
		Plot:    v.Intro,
		Aired:   v.PubTime.Format("2006-01-02"),
		Episode: 1,
	}
	return writeXML(ctx, path, doc)
}

// WritePageSidecar writes one page's episode-level sidecar.
func WritePageSidecar(ctx context.Context, path string, p model.Page) error {
	doc := Episode{
		Title:   p.Name,
		Episode: p.PID,
	}
	return writeXML(ctx, path, doc)
}

// WriteUploaderSidecar writes an uploader's person.nfo.
func WriteUploaderSidecar(ctx context.Context, path string, u model.Uploader) error {
	doc := Person{Name: u.Name, UniqueID: fmt.Sprintf("%d", u.ID)}
	return writeXML(ctx, path, doc)
}

func writeXML(ctx context.Context, path string, doc any) error {
	logger := log.FromContext(ctx)

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("nfo: create pending file %s: %w", path, err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending nfo file")
		}
	}()

	if _, err := pendingFile.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("nfo: write header: %w", err)
	}
	enc := xml.NewEncoder(pendingFile)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("nfo: encode %s: %w", path, err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("nfo: atomically replace %s: %w", path, err)
	}
	return nil
}
