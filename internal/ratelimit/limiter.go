// Package ratelimit implements the global token-bucket that every outbound
// API call traverses (spec.md §4.4, §4.7), modeled on
// _examples/ManuGH-xg2g/internal/ratelimit/limiter.go's promauto-wrapped
// golang.org/x/time/rate usage.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	tokensWaited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bilisync",
			Name:      "ratelimit_wait_total",
			Help:      "Total times a caller had to wait for a rate-limit token.",
		},
		[]string{"bucket"},
	)
	pushbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bilisync",
			Name:      "ratelimit_pushback_total",
			Help:      "Total times the remote signaled rate-limit pushback.",
		},
		[]string{"bucket"},
	)
)

// Config configures the global bucket (spec.md §6
// concurrent_limit.rate_limit.{limit,duration}).
type Config struct {
	// Limit is the bucket capacity, refilled every Duration.
	Limit    int
	Duration time.Duration
}

// Bucket is a single named token bucket. All outbound JSON-API calls share
// one Bucket instance process-wide (spec.md §5 "process-wide" resources);
// cover-image and stream-byte downloads bypass it entirely.
type Bucket struct {
	name    string
	limiter *rate.Limiter
	window  time.Duration
}

// New constructs a Bucket refilling cfg.Limit tokens every cfg.Duration.
func New(name string, cfg Config) *Bucket {
	if cfg.Duration <= 0 {
		cfg.Duration = time.Second
	}
	// rate.Limit is "tokens per second"; convert limit-per-duration into it.
	perSecond := float64(cfg.Limit) / cfg.Duration.Seconds()
	return &Bucket{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(perSecond), cfg.Limit),
		window:  cfg.Duration,
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (b *Bucket) Wait(ctx context.Context) error {
	if b.limiter.Allow() {
		return nil
	}
	tokensWaited.WithLabelValues(b.name).Inc()
	return b.limiter.Wait(ctx)
}

// WaitWindow blocks for the remainder of the bucket's refill window, used
// when the remote itself signals pushback (spec.md §4.7: "sleeps the
// remainder of the bucket window and retries once").
func (b *Bucket) WaitWindow(ctx context.Context) error {
	pushbackTotal.WithLabelValues(b.name).Inc()
	timer := time.NewTimer(b.window)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
