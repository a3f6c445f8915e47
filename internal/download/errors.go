package download

import (
	"errors"
	"fmt"
)

// networkError signals that connectivity was lost before the full body arrived.
type networkError struct{ err error }

func (e networkError) Error() string { return "network failure: " + e.err.Error() }
func (e networkError) Unwrap() error { return e.err }

// ErrNetwork wraps err as a network failure.
func ErrNetwork(err error) error { return networkError{err: err} }

// IsNetworkFailure reports whether err indicates lost connectivity mid-transfer.
func IsNetworkFailure(err error) bool {
	var ne networkError
	return errors.As(err, &ne)
}

// badStatusError signals a non-success response status from the remote source.
type badStatusError struct{ code int }

func (e badStatusError) Error() string { return fmt.Sprintf("bad status: %d", e.code) }

// ErrBadStatus constructs a badStatusError for the given HTTP status code.
func ErrBadStatus(code int) error { return badStatusError{code: code} }

// IsBadStatus reports whether err indicates a non-success remote status.
func IsBadStatus(err error) bool {
	var be badStatusError
	return errors.As(err, &be)
}

// StatusCode returns the offending HTTP status when err is a bad-status error.
func StatusCode(err error) (int, bool) {
	var be badStatusError
	if errors.As(err, &be) {
		return be.code, true
	}
	return 0, false
}

// authError signals that the remote source rejected the provided credentials.
type authError struct{ code int }

func (e authError) Error() string { return fmt.Sprintf("auth rejected: %d", e.code) }

// ErrAuth constructs an authError for a 401/403 response.
func ErrAuth(code int) error { return authError{code: code} }

// IsAuthFailure reports whether err indicates rejected credentials.
func IsAuthFailure(err error) bool {
	var ae authError
	return errors.As(err, &ae)
}

// ioError signals a local disk failure while staging or publishing the artifact.
type ioError struct{ err error }

func (e ioError) Error() string { return "io failure: " + e.err.Error() }
func (e ioError) Unwrap() error { return e.err }

// ErrIO wraps err as a local I/O failure.
func ErrIO(err error) error { return ioError{err: err} }

// IsIOFailure reports whether err indicates a local disk write failure.
func IsIOFailure(err error) bool {
	var ie ioError
	return errors.As(err, &ie)
}
