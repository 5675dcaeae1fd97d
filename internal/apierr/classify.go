// Package apierr classifies remote-API failures into the categories the
// orchestrator and adapters branch on (spec.md §7, and the Open Question in
// spec.md §9 about encoding the transient/permanent boundary explicitly).
package apierr

import (
	"errors"
	"fmt"
)

// Kind is the classification of a remote error.
type Kind int

const (
	// Unknown is the zero value; Classify returns it only for a nil error.
	Unknown Kind = iota
	// Transient covers network errors, 5xx, timeouts: retry with backoff.
	Transient
	// Permanent covers not-found/withdrawn/validation errors on this entity:
	// never retry until an administrator forces a reset.
	Permanent
	// RateLimited is the remote's "too fast" sentinel: sleep the bucket
	// window and retry once (spec.md §4.7).
	RateLimited
	// AuthExpired is the remote's auth-expiry sentinel: refresh once and
	// retry (spec.md §4.7).
	AuthExpired
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	case RateLimited:
		return "rate_limited"
	case AuthExpired:
		return "auth_expired"
	default:
		return "unknown"
	}
}

// RemoteError wraps a remote numeric code and message so callers can
// errors.As into it for classification.
type RemoteError struct {
	Code    int
	Message string
	Kind    Kind
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s (%s)", e.Code, e.Message, e.Kind)
}

// codeTable is the explicit, documented mapping from the remote's numeric
// codes to a Kind. This is the boundary spec.md §9 says must be encoded
// explicitly rather than inherited from another language's enum; see
// DESIGN.md "Open Question decisions" item 1 for the rationale.
var codeTable = map[int]Kind{
	-352: Permanent,   // risk control: video withdrawn/blocked
	-403: Permanent,   // access denied for this resource
	403:   Permanent,
	-404: Permanent,   // not found
	404:   Permanent,
	-412: RateLimited, // request frequency limited
	429:   RateLimited,
	412:   RateLimited,
	-101: AuthExpired, // account not logged in / credential invalid
	-111: AuthExpired, // csrf/token mismatch
}

// NewRemoteError builds a RemoteError, classifying via codeTable and
// falling back to Transient for unrecognized non-2xx codes (5xx, or any
// HTTP status at/above 500) and Permanent for other unrecognized 4xx.
func NewRemoteError(code int, message string) *RemoteError {
	if k, ok := codeTable[code]; ok {
		return &RemoteError{Code: code, Message: message, Kind: k}
	}
	switch {
	case code >= 500:
		return &RemoteError{Code: code, Message: message, Kind: Transient}
	case code >= 400:
		return &RemoteError{Code: code, Message: message, Kind: Permanent}
	default:
		return &RemoteError{Code: code, Message: message, Kind: Transient}
	}
}

// Classify extracts the Kind of err, defaulting to Transient for anything
// that isn't a *RemoteError (plain network errors, timeouts, context
// deadline exceeded, etc. are all retry-worthy by default).
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return Transient
}

// IsPermanent is a convenience predicate used by orchestrator steps.
func IsPermanent(err error) bool { return Classify(err) == Permanent }

// IsTransient is a convenience predicate used by orchestrator steps.
func IsTransient(err error) bool { return Classify(err) == Transient }

// IsRateLimited reports whether err is the remote's "too fast" sentinel.
func IsRateLimited(err error) bool { return Classify(err) == RateLimited }

// IsAuthExpired reports whether err is the remote's auth-expiry sentinel.
func IsAuthExpired(err error) bool { return Classify(err) == AuthExpired }
