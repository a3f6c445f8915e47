package engine

// invalidArtifactError signals that the model file on disk cannot be loaded:
// missing, empty, unreadable, or not a regular file. Activation fails before
// the runtime is touched.
type invalidArtifactError struct{ reason string }

func (e invalidArtifactError) Error() string { return "invalid artifact: " + e.reason }

func ErrInvalidArtifact(reason string) error { return invalidArtifactError{reason: reason} }

// IsInvalidArtifact reports whether err indicates an unusable model file.
func IsInvalidArtifact(err error) bool {
	_, ok := err.(invalidArtifactError)
	return ok
}

// emptyPromptError signals a prompt that is empty after trimming whitespace.
type emptyPromptError struct{}

func (emptyPromptError) Error() string { return "prompt is empty" }

func ErrEmptyPrompt() error { return emptyPromptError{} }

func IsEmptyPrompt(err error) bool {
	_, ok := err.(emptyPromptError)
	return ok
}

// imageNotFoundError signals that a referenced image path does not exist.
type imageNotFoundError struct{ path string }

func (e imageNotFoundError) Error() string { return "image not found: " + e.path }

func ErrImageNotFound(path string) error { return imageNotFoundError{path: path} }

func IsImageNotFound(err error) bool {
	_, ok := err.(imageNotFoundError)
	return ok
}

// invalidImageError signals that an image file exists but cannot be decoded.
type invalidImageError struct {
	path string
	err  error
}

func (e invalidImageError) Error() string { return "invalid image " + e.path + ": " + e.err.Error() }
func (e invalidImageError) Unwrap() error { return e.err }

func ErrInvalidImage(path string, err error) error { return invalidImageError{path: path, err: err} }

func IsInvalidImage(err error) bool {
	_, ok := err.(invalidImageError)
	return ok
}

// busyError signals that a generation is already in flight (return 429).
type busyError struct{}

func (busyError) Error() string { return "generation already in progress" }

func ErrBusy() error { return busyError{} }

// IsBusy reports whether err indicates single-flight backpressure.
func IsBusy(err error) bool {
	_, ok := err.(busyError)
	return ok
}

// notActivatedError signals a Generate call before a successful Activate.
type notActivatedError struct{}

func (notActivatedError) Error() string { return "engine not activated" }

func ErrNotActivated() error { return notActivatedError{} }

func IsNotActivated(err error) bool {
	_, ok := err.(notActivatedError)
	return ok
}

// runtimeUnavailableError signals a missing inference runtime (e.g. a binary
// built without the 'llama' tag) so callers can map it to 503 instead of 500.
type runtimeUnavailableError struct{ msg string }

func (e runtimeUnavailableError) Error() string { return e.msg }

func ErrRuntimeUnavailable(msg string) error { return runtimeUnavailableError{msg: msg} }

func IsRuntimeUnavailable(err error) bool {
	_, ok := err.(runtimeUnavailableError)
	return ok
}

// engineFailureError wraps an error surfaced by the runtime during load or
// generation.
type engineFailureError struct{ err error }

func (e engineFailureError) Error() string { return "engine failure: " + e.err.Error() }
func (e engineFailureError) Unwrap() error { return e.err }

func ErrEngineFailure(err error) error { return engineFailureError{err: err} }

func IsEngineFailure(err error) bool {
	_, ok := err.(engineFailureError)
	return ok
}
