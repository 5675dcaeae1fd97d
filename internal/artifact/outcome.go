// Package artifact holds the ten pure per-video and per-page download
// steps of spec.md §4.4: each is a function from (entity, resolved
// filesystem paths, narrow helper interfaces) to one of four outcome
// kinds, leaving the status-word bookkeeping and transaction boundaries to
// internal/orchestrator.
package artifact

import (
	"fmt"

	"github.com/kaorin/bilisync/internal/apierr"
)

// Kind classifies a step's result per spec.md §4.4 "Per-step outcome".
type Kind int

const (
	// Done means the artifact is present and correct; the caller marks the
	// status field Completed.
	Done Kind = iota
	// Ignored means the step was skipped by configuration (skip_option) or
	// does not apply to this entity (e.g. page cover on a single-page
	// video); the caller marks the field permanently ignored.
	Ignored
	// Permanent means the remote authoritatively refused the resource (not
	// found, forbidden, withdrawn) or returned data that can never satisfy
	// this step; the caller marks the field permanently ignored and logs
	// Reason.
	Permanent
	// Transient means the step failed for a reason that may resolve on
	// retry (network, timeout, 5xx, rate-limit pushback); the caller
	// increments the field's retry counter.
	Transient
)

// Outcome is the return value of every step function in this package.
type Outcome struct {
	Kind   Kind
	Reason string // set for Ignored/Permanent
	Err    error  // set for Transient (and optionally Permanent, for logging)
}

func done() Outcome                { return Outcome{Kind: Done} }
func ignored(reason string) Outcome { return Outcome{Kind: Ignored, Reason: reason} }
func permanent(reason string, err error) Outcome {
	return Outcome{Kind: Permanent, Reason: reason, Err: err}
}
func transient(err error) Outcome { return Outcome{Kind: Transient, Err: err} }

func (o Outcome) String() string {
	switch o.Kind {
	case Done:
		return "done"
	case Ignored:
		return fmt.Sprintf("ignored: %s", o.Reason)
	case Permanent:
		return fmt.Sprintf("permanent: %s: %v", o.Reason, o.Err)
	case Transient:
		return fmt.Sprintf("transient: %v", o.Err)
	default:
		return "unknown"
	}
}

// classifyRemoteErr maps a remote error into the two failure outcomes via
// internal/apierr, the boundary decided in DESIGN.md's Open Question item 1.
// RateLimited/AuthExpired are already retried once inside apiclient, so by
// the time a step function sees an error, only Permanent vs. everything
// else (treated as Transient) remains relevant.
func classifyRemoteErr(reason string, err error) Outcome {
	if apierr.Classify(err) == apierr.Permanent {
		return permanent(reason, err)
	}
	return transient(err)
}
