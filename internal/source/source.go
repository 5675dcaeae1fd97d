// Package source defines the shared contract used by every video-source
// adapter (spec.md §4.2) and one adapter per model.SourceKind. Each adapter
// owns its pagination shape and yields descriptors in a single deterministic
// order so internal/enumerate never needs to know which remote endpoint is
// behind it.
package source

import (
	"context"
	"time"
)

// Descriptor is one remote video entry as reported by an adapter, carrying
// everything internal/enumerate needs to upsert a model.Video without a
// second round-trip.
type Descriptor struct {
	RemoteBVID   string
	RemoteAID    int64
	Name         string
	Intro        string
	CoverURL     string
	CTime        time.Time
	PubTime      time.Time
	FavTime      time.Time
	UploaderID   int64
	UploaderName string
	Tags         []string
	PageCount    int
	SinglePage   bool
}

// OrderingKey is the per-descriptor value compared against
// source.LatestRowAt to decide early stop (spec.md §4.2). It is favtime for
// favorites, pubtime for submissions/collections, and a monotonically
// decreasing synthetic counter for watch-later (whose remote order carries
// no usable timestamp).
type OrderingKey int64

// Iterator yields descriptors one at a time. ok is false once the
// underlying listing is exhausted; Drained reports whether exhaustion was a
// genuine full drain (needed for the absent-from-remote / deleted-flip
// decision in spec.md §4.3) as opposed to an early stop.
type Iterator interface {
	Next(ctx context.Context) (desc Descriptor, key OrderingKey, ok bool, err error)
	// Drained is valid only once Next has returned ok == false, nil error.
	Drained() bool
}

// Adapter enumerates one configured source.
type Adapter interface {
	Enumerate(ctx context.Context, src Source) Iterator
}

// Source is the subset of model.Source an adapter needs. Declared locally
// (rather than importing model) to avoid entangling the store's encoding
// concerns with the adapter contract; internal/enumerate does the mapping.
type Source struct {
	ID                int64
	LatestRowAt       int64
	ScanDeletedVideos bool

	FavoriteID int64

	UploaderID    int64
	UseDynamicAPI bool

	CollectionIsSeries bool
	CollectionMID      int64
	CollectionSID      int64
}
