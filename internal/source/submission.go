package source

import (
	"context"

	"github.com/kaorin/bilisync/internal/apiclient"
)

// SubmissionLister is the subset of apiclient.Client the submission adapter
// uses. It owns both backends; src.UseDynamicAPI selects which one is
// active, invisibly to internal/enumerate (spec.md §4.2).
type SubmissionLister interface {
	ListSubmissionsStable(ctx context.Context, uploaderID int64, page int) ([]apiclient.VideoDescriptor, bool, error)
	ListSubmissionsDynamic(ctx context.Context, uploaderID int64, offset string) ([]apiclient.VideoDescriptor, string, bool, error)
}

// SubmissionAdapter enumerates an uploader's submissions, newest-first by
// pubtime.
type SubmissionAdapter struct {
	Client SubmissionLister
}

func (a *SubmissionAdapter) Enumerate(ctx context.Context, src Source) Iterator {
	if src.UseDynamicAPI {
		return a.enumerateDynamic(ctx, src)
	}
	return a.enumerateStable(ctx, src)
}

func (a *SubmissionAdapter) enumerateStable(ctx context.Context, src Source) Iterator {
	fetch := func(ctx context.Context, page int) ([]pagedItem, bool, error) {
		var descs []apiclient.VideoDescriptor
		var hasMore bool
		err := retryPage(ctx, func() error {
			var ferr error
			descs, hasMore, ferr = a.Client.ListSubmissionsStable(ctx, src.UploaderID, page)
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

// dynamicIterator drives the 12-per-page dynamic feed, which paginates by
// opaque cursor rather than page number (spec.md §4.2).
type dynamicIterator struct {
	ctx            context.Context
	client         SubmissionLister
	uploaderID     int64
	latestRowAt    int64
	allowEarlyStop bool

	offset  string
	buf     []pagedItem
	bufIdx  int
	hasMore bool
	started bool
	done    bool
	drained bool
}

func (a *SubmissionAdapter) enumerateDynamic(ctx context.Context, src Source) Iterator {
	return &dynamicIterator{
		ctx: ctx, client: a.Client, uploaderID: src.UploaderID,
		latestRowAt: src.LatestRowAt, allowEarlyStop: !src.ScanDeletedVideos,
	}
}

func (it *dynamicIterator) Next(ctx context.Context) (Descriptor, OrderingKey, bool, error) {
	if it.done {
		return Descriptor{}, 0, false, nil
	}
	for it.bufIdx >= len(it.buf) {
		if it.started && !it.hasMore {
			it.done = true
			it.drained = true
			return Descriptor{}, 0, false, nil
		}
		var descs []apiclient.VideoDescriptor
		var nextOffset string
		var hasMore bool
		err := retryPage(ctx, func() error {
			var ferr error
			descs, nextOffset, hasMore, ferr = it.client.ListSubmissionsDynamic(ctx, it.uploaderID, it.offset)
			return ferr
		})
		it.started = true
		if err != nil {
			it.done = true
			return Descriptor{}, 0, false, err
		}
		it.offset = nextOffset
		it.hasMore = hasMore
		it.buf = it.buf[:0]
		for _, d := range descs {
			it.buf = append(it.buf, pagedItem{desc: fromAPI(d), key: OrderingKey(d.PubTime.Unix())})
		}
		it.bufIdx = 0
		if len(descs) == 0 && !hasMore {
			it.done = true
			it.drained = true
			return Descriptor{}, 0, false, nil
		}
	}

	item := it.buf[it.bufIdx]
	it.bufIdx++

	if !it.allowEarlyStop && int64(item.key) <= it.latestRowAt {
		return item.desc, item.key, true, nil
	}
	if int64(item.key) <= it.latestRowAt {
		it.done = true
		it.drained = false
		return Descriptor{}, 0, false, nil
	}
	return item.desc, item.key, true, nil
}

func (it *dynamicIterator) Drained() bool { return it.drained }
