package source

import (
	"context"

	"github.com/kaorin/bilisync/internal/apiclient"
)

// FavoriteLister is the subset of apiclient.Client the favorite adapter uses.
type FavoriteLister interface {
	ListFavorites(ctx context.Context, fid int64, page int) ([]apiclient.VideoDescriptor, bool, error)
}

// FavoriteAdapter enumerates a favorite folder, newest-first by fav_time.
type FavoriteAdapter struct {
	Client FavoriteLister
}

func (a *FavoriteAdapter) Enumerate(ctx context.Context, src Source) Iterator {
	fetch := func(ctx context.Context, page int) ([]pagedItem, bool, error) {
		var descs []apiclient.VideoDescriptor
		var hasMore bool
		err := retryPage(ctx, func() error {
			var ferr error
			descs, hasMore, ferr = a.Client.ListFavorites(ctx, src.FavoriteID, page)
			return ferr
		})
		if err != nil {
			return nil, false, err
		}
		items := make([]pagedItem, 0, len(descs))
		for _, d := range descs {
			items = append(items, pagedItem{desc: fromAPI(d), key: OrderingKey(d.FavTime.Unix())})
		}
		return items, hasMore, nil
	}
	return newPagedIterator(ctx, src.LatestRowAt, !src.ScanDeletedVideos, fetch)
}
