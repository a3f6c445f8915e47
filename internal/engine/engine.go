// Package engine owns the inference runtime lifecycle: validating the model
// artifact, loading it into a session, running single-flight generation, and
// releasing it. It knows nothing about HTTP or session state machines.
package engine

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"gemmad/internal/common/fsutil"
)

// Bridge mediates between callers and the inference Runtime. At most one
// generation runs at a time; concurrent calls fail fast with a busy error
// rather than queueing.
type Bridge struct {
	rt   Runtime
	load LoadOptions
	gen  GenOptions

	mu      sync.Mutex
	session Session

	// genCh is a single-slot guard: holding the token means a generation is
	// in flight.
	genCh chan struct{}
}

// New constructs a Bridge around rt. load and gen are applied to every
// activation and generation respectively.
func New(rt Runtime, load LoadOptions, gen GenOptions) *Bridge {
	return &Bridge{
		rt:    rt,
		load:  load,
		gen:   gen,
		genCh: make(chan struct{}, 1),
	}
}

// Activate validates the artifact at path and loads it into the runtime.
// Validation happens before the runtime is touched, so a missing, empty, or
// unreadable file fails fast with an invalid-artifact error instead of a
// runtime crash. Activating an already-active Bridge replaces the session.
func (b *Bridge) Activate(path string) error {
	if !fsutil.RegularFileExists(path) {
		return ErrInvalidArtifact(fmt.Sprintf("no regular file at %s", path))
	}
	if !fsutil.NonEmptyFile(path) {
		return ErrInvalidArtifact(fmt.Sprintf("artifact at %s is empty", path))
	}
	f, err := os.Open(path)
	if err != nil {
		return ErrInvalidArtifact(fmt.Sprintf("artifact at %s is not readable: %v", path, err))
	}
	f.Close()

	sess, err := b.rt.Load(path, b.load)
	if err != nil {
		if IsRuntimeUnavailable(err) {
			return err
		}
		return ErrEngineFailure(err)
	}

	b.mu.Lock()
	old := b.session
	b.session = sess
	b.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Active reports whether a session is currently loaded.
func (b *Bridge) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session != nil
}

// Generate runs one inference. prompt must be non-empty after trimming.
// imagePath is optional; when set it must name a decodable image file. Only
// one generation may be in flight; a second concurrent call returns a busy
// error immediately.
func (b *Bridge) Generate(ctx context.Context, prompt, imagePath string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt()
	}

	b.mu.Lock()
	sess := b.session
	b.mu.Unlock()
	if sess == nil {
		return "", ErrNotActivated()
	}

	var img image.Image
	if imagePath != "" {
		var err error
		img, err = loadImage(imagePath)
		if err != nil {
			return "", err
		}
	}

	select {
	case b.genCh <- struct{}{}:
	default:
		return "", ErrBusy()
	}
	defer func() { <-b.genCh }()

	text, err := sess.Predict(ctx, prompt, img, b.gen)
	if err != nil {
		return "", ErrEngineFailure(err)
	}
	return text, nil
}

// Deactivate releases the loaded session. It is idempotent: deactivating an
// inactive Bridge is a no-op and never an error.
func (b *Bridge) Deactivate() {
	b.mu.Lock()
	sess := b.session
	b.session = nil
	b.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}
