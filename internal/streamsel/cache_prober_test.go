package streamsel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaorin/bilisync/internal/cache"
)

type countingProber struct {
	calls int
	lat   time.Duration
}

func (p *countingProber) ProbeLatency(ctx context.Context, url string) (time.Duration, error) {
	p.calls++
	return p.lat, nil
}

func TestCachingProberOnlyProbesOnceWithinTTL(t *testing.T) {
	inner := &countingProber{lat: 5 * time.Millisecond}
	p := NewCachingProber(inner, cache.NewMemoryCache(0), time.Minute)

	lat1, err := p.ProbeLatency(context.Background(), "http://cdn/a")
	require.NoError(t, err)
	lat2, err := p.ProbeLatency(context.Background(), "http://cdn/a")
	require.NoError(t, err)

	assert.Equal(t, lat1, lat2)
	assert.Equal(t, 1, inner.calls, "second probe of the same URL should hit the cache")
}

func TestCachingProberProbesDistinctURLsIndependently(t *testing.T) {
	inner := &countingProber{lat: time.Millisecond}
	p := NewCachingProber(inner, cache.NewMemoryCache(0), time.Minute)

	_, err := p.ProbeLatency(context.Background(), "http://cdn/a")
	require.NoError(t, err)
	_, err = p.ProbeLatency(context.Background(), "http://cdn/b")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}
