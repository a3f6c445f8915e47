// Package download acquires the model artifact from its remote source.
// Bytes are staged next to the destination and renamed into place only after
// the full, length-verified body has been written, so an interrupted transfer
// never publishes a partial artifact.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gemmad/pkg/types"
)

// ProgressFunc receives cumulative progress snapshots during a fetch.
// Snapshots are delivered in non-decreasing BytesWritten order; the terminal
// snapshot after a successful publish always reports 100%.
type ProgressFunc func(types.DownloadProgress)

// defaultProgressInterval bounds how often intermediate progress callbacks
// fire, so a fast transfer does not flood subscribers.
const defaultProgressInterval = 100 * time.Millisecond

const copyChunkSize = 64 * 1024

// Fetcher streams a remote artifact to local storage. The zero value is not
// usable; construct with New.
type Fetcher struct {
	client *http.Client
	token  string
	// Minimum delay between intermediate progress callbacks. The first and
	// terminal callbacks are always delivered.
	progressInterval time.Duration
}

// New returns a Fetcher that authenticates with the given bearer token.
// An empty token sends no Authorization header.
func New(token string) *Fetcher {
	return &Fetcher{
		client:           &http.Client{},
		token:            token,
		progressInterval: defaultProgressInterval,
	}
}

// StagingPath returns the temporary path a fetch stages its bytes at before
// renaming into dest.
func StagingPath(dest string) string { return dest + ".partial" }

// Fetch downloads src to dest. The destination's parent directory is created
// if absent. onProgress may be nil. There is no internal retry; retry is a
// caller decision.
func (f *Fetcher) Fetch(ctx context.Context, src, dest string, onProgress ProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return ErrIO(err)
	}
	staging := StagingPath(dest)
	// A leftover staging file from a previous interrupted attempt is garbage.
	if err := os.Remove(staging); err != nil && !os.IsNotExist(err) {
		return ErrIO(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return ErrNetwork(err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return ErrNetwork(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuth(resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return ErrBadStatus(resp.StatusCode)
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0 // unknown
	}

	out, err := os.Create(staging)
	if err != nil {
		return ErrIO(err)
	}
	cleanup := func() {
		out.Close()
		_ = os.Remove(staging)
	}

	var written int64
	lastEmit := time.Time{}
	emit := func(force bool) {
		if onProgress == nil {
			return
		}
		now := time.Now()
		if !force && now.Sub(lastEmit) < f.progressInterval {
			return
		}
		lastEmit = now
		onProgress(types.ProgressOf(written, total))
	}
	emit(true)

	buf := make([]byte, copyChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				cleanup()
				return ErrIO(werr)
			}
			written += int64(n)
			emit(false)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			cleanup()
			if ctx.Err() != nil {
				return ErrNetwork(ctx.Err())
			}
			return ErrNetwork(rerr)
		}
	}

	// All expected bytes must be present before the artifact is published.
	if total > 0 && written != total {
		cleanup()
		return ErrNetwork(fmt.Errorf("short body: got %d of %d bytes", written, total))
	}
	if err := out.Sync(); err != nil {
		cleanup()
		return ErrIO(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(staging)
		return ErrIO(err)
	}
	// Atomic publish: the artifact becomes visible at dest only here.
	if err := os.Rename(staging, dest); err != nil {
		_ = os.Remove(staging)
		return ErrIO(err)
	}

	if onProgress != nil {
		final := total
		if final == 0 {
			final = written
		}
		onProgress(types.ProgressOf(written, final))
	}
	return nil
}
