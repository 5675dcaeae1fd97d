package source

import (
	"context"

	"github.com/kaorin/bilisync/internal/apiclient"
)

// CollectionLister is the subset of apiclient.Client the collection adapter
// uses; season and series share the same endpoint shape (spec.md §3).
type CollectionLister interface {
	ListSeasonVideos(ctx context.Context, mid, sid int64, page int) ([]apiclient.VideoDescriptor, bool, error)
}

// CollectionAdapter enumerates a season or series collection, newest-first
// by pubtime.
type CollectionAdapter struct {
	Client CollectionLister
}

func (a *CollectionAdapter) Enumerate(ctx context.Context, src Source) Iterator {
	fetch := func(ctx context.Context, page int) ([]pagedItem, bool, error) {
		var descs []apiclient.VideoDescriptor
		var hasMore bool
		err := retryPage(ctx, func() error {
			var ferr error
			descs, hasMore, ferr = a.Client.ListSeasonVideos(ctx, src.CollectionMID, src.CollectionSID, page)
			return ferr
		})
		if err != nil {
			return nil, false, err
		}
		items := make([]pagedItem, 0, len(descs))
		for _, d := range descs {
			items = append(items, pagedItem{desc: fromAPI(d), key: OrderingKey(d.PubTime.Unix())})
		}
		return items, hasMore, nil
	}
	return newPagedIterator(ctx, src.LatestRowAt, !src.ScanDeletedVideos, fetch)
}
