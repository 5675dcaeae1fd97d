package source

import (
	"context"
	"time"

	"github.com/kaorin/bilisync/internal/apierr"
)

const maxPageRetries = 3

// retryPage runs fn, retrying transient errors with linear backoff up to
// maxPageRetries times; a permanent error (auth, not-found) propagates
// immediately without consuming a retry, per spec.md §4.2: "The adapter
// never swallows a permanent error ... those terminate enumeration."
func retryPage(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxPageRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if apierr.IsPermanent(err) {
			return err
		}
		if attempt == maxPageRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}
	return err
}
