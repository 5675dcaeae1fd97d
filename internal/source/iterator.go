package source

import "context"

type pagedItem struct {
	desc Descriptor
	key  OrderingKey
}

// pageFetcher fetches one remote page of items, newest-first.
type pageFetcher func(ctx context.Context, page int) (items []pagedItem, hasMore bool, err error)

// pagedIterator implements the early-stop pagination shape common to the
// favorite, submission-stable, and collection adapters (spec.md §4.2): stop
// at the last remote page, or at the first item whose ordering key has
// already been seen, whichever comes first — unless scan_deleted_videos
// requires a full drain.
type pagedIterator struct {
	ctx context.Context

	fetch         pageFetcher
	latestRowAt   int64
	allowEarlyStop bool

	page    int
	buf     []pagedItem
	bufIdx  int
	hasMore bool
	started bool
	done    bool
	drained bool
	err     error
}

func newPagedIterator(ctx context.Context, latestRowAt int64, allowEarlyStop bool, fetch pageFetcher) *pagedIterator {
	return &pagedIterator{ctx: ctx, fetch: fetch, latestRowAt: latestRowAt, allowEarlyStop: allowEarlyStop, page: 1}
}

func (it *pagedIterator) Next(ctx context.Context) (Descriptor, OrderingKey, bool, error) {
	if it.done {
		return Descriptor{}, 0, false, it.err
	}
	for it.bufIdx >= len(it.buf) {
		if it.started && !it.hasMore {
			it.done = true
			it.drained = true
			return Descriptor{}, 0, false, nil
		}
		items, hasMore, err := it.fetch(ctx, it.page)
		it.started = true
		if err != nil {
			it.done = true
			it.err = err
			return Descriptor{}, 0, false, err
		}
		it.page++
		it.hasMore = hasMore
		it.buf = items
		it.bufIdx = 0
		if len(items) == 0 && !hasMore {
			it.done = true
			it.drained = true
			return Descriptor{}, 0, false, nil
		}
	}

	item := it.buf[it.bufIdx]
	it.bufIdx++

	if !it.allowEarlyStop && int64(item.key) <= it.latestRowAt {
		// scan_deleted_videos requires a full drain; keep going but the
		// caller still sees this item (it may have changed metadata).
		return item.desc, item.key, true, nil
	}
	if int64(item.key) <= it.latestRowAt {
		it.done = true
		it.drained = false
		return Descriptor{}, 0, false, nil
	}
	return item.desc, item.key, true, nil
}

func (it *pagedIterator) Drained() bool { return it.drained }
