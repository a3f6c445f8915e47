package session

import (
	"gemmad/internal/download"
	"gemmad/internal/engine"
)

// notReadyError signals a chat request before the session reached ready
// (return 503).
type notReadyError struct{ state string }

func (e notReadyError) Error() string { return "session not ready: " + e.state }

func ErrNotReady(state string) error { return notReadyError{state: state} }

// IsNotReady reports whether err indicates the session has not reached ready.
func IsNotReady(err error) bool {
	_, ok := err.(notReadyError)
	return ok
}

// notRetryableError signals a retry issued outside the failed state
// (return 409).
type notRetryableError struct{ state string }

func (e notRetryableError) Error() string { return "retry only valid in failed state, not " + e.state }

func ErrNotRetryable(state string) error { return notRetryableError{state: state} }

func IsNotRetryable(err error) bool {
	_, ok := err.(notRetryableError)
	return ok
}

// runInFlightError signals that a lifecycle sequence is already running.
type runInFlightError struct{}

func (runInFlightError) Error() string { return "lifecycle sequence already in flight" }

func ErrRunInFlight() error { return runInFlightError{} }

func IsRunInFlight(err error) bool {
	_, ok := err.(runInFlightError)
	return ok
}

// reasonCode maps a lifecycle failure to a short machine-readable code for
// status reporting: download failures first, then activation failures, with
// a generic fallback.
func reasonCode(err error) string {
	switch {
	case download.IsAuthFailure(err):
		return "auth_failure"
	case download.IsBadStatus(err):
		return "bad_status"
	case download.IsNetworkFailure(err):
		return "network_failure"
	case download.IsIOFailure(err):
		return "io_failure"
	case engine.IsInvalidArtifact(err):
		return "invalid_artifact"
	case engine.IsRuntimeUnavailable(err):
		return "runtime_unavailable"
	case engine.IsEngineFailure(err):
		return "engine_load_failure"
	default:
		return "internal"
	}
}
