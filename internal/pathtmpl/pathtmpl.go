// Package pathtmpl resolves the video_name/page_name templates of
// spec.md §6 into concrete filesystem paths. Templates are plain
// text/template documents over the fields of VideoData ({{.BVID}},
// {{.Title}}, {{.UpperName}}, {{.UpperMID}}) and, for pages, PageData
// (adds {{.PTitle}}, {{.PID}}), plus a truncate helper
// ({{truncate .Title 20}}). Bare placeholders such as {{bvid}} or
// {{title}} are not recognized: Parse rejects them as undefined functions.
package pathtmpl

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// VideoData supplies the fields available to a video_name template.
type VideoData struct {
	BVID      string
	Title     string
	UpperName string
	UpperMID  int64
}

// PageData supplies the fields available to a page_name template, a
// superset of VideoData.
type PageData struct {
	VideoData
	PTitle string
	PID    int
}

// Template is a parsed, reusable video_name or page_name template.
type Template struct {
	tmpl *template.Template
}

var funcMap = template.FuncMap{
	"truncate": truncateWidth,
}

// Parse compiles a template string. The same instance should be reused
// across videos/pages; it is safe for concurrent Execute calls.
func Parse(name, text string) (*Template, error) {
	t, err := template.New(name).Funcs(funcMap).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("pathtmpl: parse %s: %w", name, err)
	}
	return &Template{tmpl: t}, nil
}

// Render executes the template against data, then sanitizes the result
// into a single safe path segment.
func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("pathtmpl: execute %s: %w", t.tmpl.Name(), err)
	}
	return Sanitize(buf.String()), nil
}

// Sanitize normalizes a rendered name to NFC (matching the teacher's
// internal/epg/xmltv.go string-normalization convention) and strips
// characters that are illegal or awkward in filesystem path segments.
func Sanitize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		default:
			return r
		}
	}, s)
	return strings.TrimSpace(s)
}

// truncateWidth implements the {{ truncate title 10 }} helper using
// East-Asian display width rather than rune count, so a title mixing wide
// (CJK) and narrow glyphs is cut at roughly the same visual column the
// remote's own UI would cut it at.
func truncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	var buf strings.Builder
	col := 0
	for _, r := range s {
		w := runeWidth(r)
		if col+w > maxWidth {
			break
		}
		buf.WriteRune(r)
		col += w
	}
	return buf.String()
}

func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}
