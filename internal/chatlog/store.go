// Package chatlog persists the conversation transcript as an ordered,
// append-only message log backed by a single JSON file.
package chatlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gemmad/pkg/types"
)

const fileName = "messages.json"

// logFile is the on-disk shape: one document holding the full ordered log.
type logFile struct {
	Messages []types.Message `json:"messages"`
}

// Store is a mutex-guarded message log. Every append rewrites the backing
// file atomically (temp file, fsync, rename), so a crash leaves either the
// previous transcript or the new complete one, never a torn file.
type Store struct {
	mu       sync.Mutex
	path     string
	messages []types.Message
	// lastID is the numeric value of the most recently assigned message ID.
	// IDs derive from wall-clock nanoseconds but are forced strictly
	// increasing even if the clock stalls or steps backwards.
	lastID int64
}

// Open loads the message log under dataDir, creating an empty log when no
// file exists yet. A file that exists but cannot be parsed is an error;
// silently discarding a transcript is worse than failing startup.
func Open(dataDir string) (*Store, error) {
	s := &Store{path: filepath.Join(dataDir, fileName)}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read message log: %w", err)
	}
	var doc logFile
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse message log %s: %w", s.path, err)
	}
	s.messages = doc.Messages
	for _, m := range s.messages {
		if id, perr := strconv.ParseInt(m.ID, 10, 64); perr == nil && id > s.lastID {
			s.lastID = id
		}
	}
	return s, nil
}

// Append assigns the message a fresh monotonic ID and timestamp, adds it to
// the log, and persists. The stored message is returned with ID and
// CreatedAt filled in.
func (s *Store) Append(msg types.Message) (types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	id := now.UnixNano()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	msg.ID = strconv.FormatInt(id, 10)
	msg.CreatedAt = now.Unix()

	s.messages = append(s.messages, msg)
	if err := s.persistLocked(); err != nil {
		// Roll back: a message the caller cannot see on restart must not be
		// visible in memory either.
		s.messages = s.messages[:len(s.messages)-1]
		return types.Message{}, err
	}
	return msg, nil
}

// Messages returns a copy of the log in append order.
func (s *Store) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Store) persistLocked() error {
	b, err := json.MarshalIndent(logFile{Messages: s.messages}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode message log: %w", err)
	}
	if err := atomicWriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("persist message log: %w", err)
	}
	return nil
}

// atomicWriteFile writes data to path via a temp file in the same directory,
// fsyncs, then renames into place.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tmp)
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	success = true
	return nil
}
