package credential

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
	delay time.Duration
}

func (r *countingRefresher) Refresh(ctx context.Context, old Bundle) (Bundle, error) {
	r.calls.Add(1)
	time.Sleep(r.delay)
	return Bundle{SESSDATA: "new-session"}, nil
}

type recordingPersister struct {
	mu   sync.Mutex
	last Bundle
}

func (p *recordingPersister) PersistCredential(ctx context.Context, b Bundle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = b
	return nil
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	refresher := &countingRefresher{delay: 20 * time.Millisecond}
	persister := &recordingPersister{}
	h := NewHolder(Bundle{SESSDATA: "old"}, refresher, persister)

	var wg sync.WaitGroup
	const callers = 10
	results := make([]Bundle, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			b, err := h.Refresh(context.Background())
			require.NoError(t, err)
			results[idx] = b
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), refresher.calls.Load(), "concurrent callers must coalesce into one refresh")
	for _, b := range results {
		assert.Equal(t, "new-session", b.SESSDATA)
	}
	assert.Equal(t, "new-session", persister.last.SESSDATA)
}

func TestProbeExpiringSoon(t *testing.T) {
	h := NewHolder(Bundle{ExpiresAt: time.Now().Add(1 * time.Minute)}, &countingRefresher{}, nil)
	assert.True(t, h.Probe())

	h2 := NewHolder(Bundle{ExpiresAt: time.Now().Add(1 * time.Hour)}, &countingRefresher{}, nil)
	assert.False(t, h2.Probe())

	h3 := NewHolder(Bundle{}, &countingRefresher{}, nil)
	assert.False(t, h3.Probe(), "zero ExpiresAt means unknown, not expiring")
}

func TestHeadersIncludeCookieAndAuth(t *testing.T) {
	h := NewHolder(Bundle{SESSDATA: "s", BiliJCT: "j", DedeUserID: "1", AccessKey: "ak"}, &countingRefresher{}, nil)
	headers := h.Headers()
	assert.Contains(t, headers["Cookie"], "SESSDATA=s")
	assert.Equal(t, "Bearer ak", headers["Authorization"])
}
