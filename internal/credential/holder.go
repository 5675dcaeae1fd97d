// Package credential stores the remote platform's auth token bundle and
// coalesces concurrent refreshes, per spec.md §4.1's credential holder and
// §8 scenario 4. The actual signed-request signing scheme is an external
// collaborator (spec.md §1 Non-goals); this package only holds and
// refreshes the opaque bundle.
package credential

import (
	"context"
	"sync"
	"time"

	"github.com/kaorin/bilisync/internal/log"
	"golang.org/x/sync/singleflight"
)

// Bundle is the five opaque strings spec.md §6 calls `credential`.
type Bundle struct {
	SESSDATA   string
	BiliJCT    string
	DedeUserID string
	AccessKey  string
	RefreshTok string

	// ExpiresAt is a best-effort probe hint; zero means unknown.
	ExpiresAt time.Time
}

// Refresher performs the actual network round-trip to mint a new Bundle.
// The concrete implementation (signed-request negotiation with the remote)
// is outside this package's scope; callers inject it.
type Refresher interface {
	Refresh(ctx context.Context, old Bundle) (Bundle, error)
}

// Persister is called after every successful refresh so the new bundle can
// be written back through the config snapshot (SPEC_FULL.md "Credential
// holder").
type Persister interface {
	PersistCredential(ctx context.Context, b Bundle) error
}

// Holder guards a Bundle with a mutex and coalesces concurrent refreshes
// through singleflight, mirroring the teacher's use of singleflight for
// RunOnce (_examples/ManuGH-xg2g/internal/dvr/engine.go).
type Holder struct {
	mu     sync.RWMutex
	bundle Bundle

	refresher Refresher
	persister Persister
	group     singleflight.Group

	// ExpirySoonWindow: Probe reports true when ExpiresAt is within this
	// window of now.
	ExpirySoonWindow time.Duration
}

// NewHolder constructs a Holder seeded with an initial bundle.
func NewHolder(initial Bundle, refresher Refresher, persister Persister) *Holder {
	return &Holder{
		bundle:           initial,
		refresher:        refresher,
		persister:        persister,
		ExpirySoonWindow: 10 * time.Minute,
	}
}

// Current returns a snapshot of the current bundle.
func (h *Holder) Current() Bundle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bundle
}

// Headers builds the header set attached to every outbound call.
func (h *Holder) Headers() map[string]string {
	b := h.Current()
	headers := map[string]string{
		"Cookie": "SESSDATA=" + b.SESSDATA + "; bili_jct=" + b.BiliJCT + "; DedeUserID=" + b.DedeUserID,
	}
	if b.AccessKey != "" {
		headers["Authorization"] = "Bearer " + b.AccessKey
	}
	return headers
}

// Probe reports whether the current bundle is within its expiry-soon
// window. The rate-limited client does not call it.
func (h *Holder) Probe() (expiringSoon bool) {
	b := h.Current()
	if b.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(b.ExpiresAt) <= h.ExpirySoonWindow
}

// Refresh performs a single-flighted credential refresh: concurrent callers
// that lose the race block on the in-flight refresh and reuse its result
// (spec.md §8 scenario 4), rather than triggering additional refreshes.
func (h *Holder) Refresh(ctx context.Context) (Bundle, error) {
	logger := log.FromContext(ctx)
	v, err, shared := h.group.Do("refresh", func() (any, error) {
		old := h.Current()
		fresh, err := h.refresher.Refresh(ctx, old)
		if err != nil {
			return Bundle{}, err
		}

		h.mu.Lock()
		h.bundle = fresh
		h.mu.Unlock()

		if h.persister != nil {
			if perr := h.persister.PersistCredential(ctx, fresh); perr != nil {
				logger.Warn().Err(perr).Msg("failed to persist refreshed credential")
			}
		}
		return fresh, nil
	})
	if shared {
		logger.Debug().Msg("credential refresh coalesced with an in-flight refresh")
	}
	if err != nil {
		return Bundle{}, err
	}
	return v.(Bundle), nil
}
