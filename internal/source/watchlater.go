package source

import (
	"context"

	"github.com/kaorin/bilisync/internal/apiclient"
)

// WatchLaterLister is the subset of apiclient.Client the watch-later
// adapter uses.
type WatchLaterLister interface {
	ListWatchLater(ctx context.Context) ([]apiclient.VideoDescriptor, error)
}

// WatchLaterAdapter enumerates the entire watch-later queue in one remote
// call. Ordering is whatever the remote returns (spec.md §4.2); there is no
// early-stop pagination shape to apply, so every listing is a full drain.
type WatchLaterAdapter struct {
	Client WatchLaterLister
}

func (a *WatchLaterAdapter) Enumerate(ctx context.Context, src Source) Iterator {
	return &watchLaterIterator{ctx: ctx, client: a.Client}
}

type watchLaterIterator struct {
	ctx     context.Context
	client  WatchLaterLister
	loaded  bool
	items   []apiclient.VideoDescriptor
	idx     int
	err     error
	done    bool
}

func (it *watchLaterIterator) Next(ctx context.Context) (Descriptor, OrderingKey, bool, error) {
	if it.done {
		return Descriptor{}, 0, false, it.err
	}
	if !it.loaded {
		err := retryPage(ctx, func() error {
			var ferr error
			it.items, ferr = it.client.ListWatchLater(ctx)
			return ferr
		})
		it.loaded = true
		if err != nil {
			it.done = true
			it.err = err
			return Descriptor{}, 0, false, err
		}
	}
	if it.idx >= len(it.items) {
		it.done = true
		return Descriptor{}, 0, false, nil
	}
	d := it.items[it.idx]
	// Synthetic descending key: earlier remote position ranks "newer" so a
	// full re-sync never early-stops (no early-stop shape applies here).
	key := OrderingKey(len(it.items) - it.idx)
	it.idx++
	return fromAPI(d), key, true, nil
}

func (it *watchLaterIterator) Drained() bool { return it.err == nil }
