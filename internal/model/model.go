// Package model holds the entities of spec.md §3: VideoSource, Video, Page,
// Uploader, shared by the store, adapters, orchestrator and artifact
// packages.
package model

import (
	"time"

	"github.com/kaorin/bilisync/internal/filter"
	"github.com/kaorin/bilisync/internal/taskstatus"
)

// SourceKind is one of the four VideoSource variants (spec.md §3).
type SourceKind string

const (
	KindFavorite   SourceKind = "favorite"
	KindSubmission SourceKind = "submission"
	KindCollection SourceKind = "collection"
	KindWatchLater SourceKind = "watch_later"
)

// CollectionKind distinguishes a Collection source's two remote shapes.
type CollectionKind string

const (
	CollectionSeason CollectionKind = "season"
	CollectionSeries CollectionKind = "series"
)

// Source is one configured subscription (spec.md §3 VideoSource).
type Source struct {
	ID       int64
	Kind     SourceKind
	Name     string
	Path     string
	Enabled  bool

	// LatestRowAt is the ordering key of the newest video ever seen in this
	// source; used both to order enumeration and to stop early.
	LatestRowAt int64

	Rule              filter.Rule
	ScanDeletedVideos bool

	// Variant-specific fields. Exactly the fields relevant to Kind are set.
	FavoriteID     int64          // Favorite
	UploaderID     int64          // Submission
	UseDynamicAPI  bool           // Submission
	CollectionKind CollectionKind // Collection
	CollectionMID  int64          // Collection: uploader mid
	CollectionSID  int64          // Collection: season/series id
}

// VideoCategory classifies a video's page shape.
type VideoCategory int

const (
	CategorySinglePage VideoCategory = iota
	CategoryMultiPage
	CategoryBangumiEpisode
)

// Video is one row per remote video (spec.md §3).
type Video struct {
	ID         int64
	RemoteBVID string
	RemoteAID  int64

	SourceKind SourceKind
	SourceID   int64

	CoverURL string
	Name     string
	Intro    string

	CTime   time.Time
	PubTime time.Time
	FavTime time.Time

	UploaderID   int64
	UploaderName string

	// Path is computed at create time from the source's video_name template.
	Path string

	Category       VideoCategory
	ShouldDownload bool
	Tags           []string
	SinglePage     bool

	DownloadStatus taskstatus.Word
	Deleted        bool
}

// Page is one sub-page of a video (spec.md §3).
type Page struct {
	ID       int64
	VideoID  int64
	PID      int   // 1-based page number
	CID      int64 // remote content ID, required by every page-level remote call
	Name     string
	Duration time.Duration
	CoverURL string

	DownloadStatus taskstatus.Word
}

// Uploader is keyed by remote uploader ID (spec.md §3).
type Uploader struct {
	ID        int64
	Name      string
	AvatarURL string
}
