package streamsel

import (
	"context"
	"time"

	"github.com/kaorin/bilisync/internal/cache"
)

// CachingProber wraps a LatencyProber with internal/cache so the same CDN
// URL probed for both a video and its paired audio track (or across pages
// sharing a backup host) only crosses the network once per TTL window.
type CachingProber struct {
	inner LatencyProber
	store cache.Cache
	ttl   time.Duration
}

// NewCachingProber builds a CachingProber. ttl bounds how long a probed
// latency is trusted before the next Select re-measures it.
func NewCachingProber(inner LatencyProber, store cache.Cache, ttl time.Duration) *CachingProber {
	return &CachingProber{inner: inner, store: store, ttl: ttl}
}

func (p *CachingProber) ProbeLatency(ctx context.Context, url string) (time.Duration, error) {
	if v, ok := p.store.Get(url); ok {
		if lat, ok := v.(time.Duration); ok {
			return lat, nil
		}
	}

	lat, err := p.inner.ProbeLatency(ctx, url)
	if err != nil {
		return 0, err
	}
	p.store.Set(url, lat, p.ttl)
	return lat, nil
}
