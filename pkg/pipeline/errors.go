// pkg/pipeline/errors.go
package pipeline

import (
	"errors"
	"fmt"
)

// FailureKind classifies a node failure for the orchestrating engine. Kinds
// are surfaced as-is; no node downgrades a dependency's failure.
type FailureKind int

const (
	// FailureUnknown is an uncategorized failure
	FailureUnknown FailureKind = iota
	// SourceUnavailable means the remote fetch failed; transient, safe to
	// retry the whole extract node
	SourceUnavailable
	// MalformedSource means the payload could not be structurally decoded or
	// carries non-integral values; not retryable without a source-side fix
	MalformedSource
	// StagingUnavailable means an object-store write failed; transient
	StagingUnavailable
	// LoadFailed means schema creation, truncation or bulk load failed. A
	// mid-operation failure can leave the destination table empty or
	// partially loaded; that gap is surfaced, never masked.
	LoadFailed
)

// String returns a string representation of the failure kind
func (k FailureKind) String() string {
	switch k {
	case SourceUnavailable:
		return "SourceUnavailable"
	case MalformedSource:
		return "MalformedSource"
	case StagingUnavailable:
		return "StagingUnavailable"
	case LoadFailed:
		return "LoadFailed"
	default:
		return "Unknown"
	}
}

// Retryable reports whether a node-level retry is appropriate for this kind
func (k FailureKind) Retryable() bool {
	return k == SourceUnavailable || k == StagingUnavailable
}

// Failure couples a failure kind with its cause
type Failure struct {
	Kind  FailureKind
	Cause error
}

// NewFailure wraps cause with a failure kind
func NewFailure(kind FailureKind, cause error) *Failure {
	return &Failure{Kind: kind, Cause: cause}
}

// Error returns a formatted failure message
func (f *Failure) Error() string {
	if f.Cause == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Cause.Error())
}

// Unwrap returns the underlying cause
func (f *Failure) Unwrap() error {
	return f.Cause
}

// KindOf extracts the failure kind from an error chain
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureUnknown
}

// IsRetryable reports whether the error chain carries a transient failure
// kind. Used as the retry predicate handed to the graph executor.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
