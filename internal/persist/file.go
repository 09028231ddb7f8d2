package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/stepgrid/internal/graph"
)

// ErrSessionNotFound reports a load for a session with no stored snapshot.
var ErrSessionNotFound = errors.New("persist: session not found")

// Store persists session snapshots keyed by session id.
type Store interface {
	graph.SnapshotSaver
	LoadSnapshot(ctx context.Context, sessionID string) (*graph.Snapshot, error)
	ListSessions(ctx context.Context) ([]string, error)
}

// FileStore keeps one JSON file per session under a flat directory.
type FileStore struct {
	Dir string
}

// NewFileStore returns a file store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (f *FileStore) path(sessionID string) string {
	return filepath.Join(f.Dir, "session_"+sessionID+".json")
}

// SaveSnapshot writes the snapshot atomically: a temp file in the same
// directory, then a rename, so readers never observe a torn write.
func (f *FileStore) SaveSnapshot(ctx context.Context, snap *graph.Snapshot) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("persist: creating session dir: %w", err)
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: encoding session %q: %w", snap.SessionID, err)
	}

	tmp, err := os.CreateTemp(f.Dir, "session_*.tmp")
	if err != nil {
		return fmt.Errorf("persist: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persist: writing session %q: %w", snap.SessionID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path(snap.SessionID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist: publishing session %q: %w", snap.SessionID, err)
	}
	return nil
}

// LoadSnapshot reads a stored session.
func (f *FileStore) LoadSnapshot(ctx context.Context, sessionID string) (*graph.Snapshot, error) {
	raw, err := os.ReadFile(f.path(sessionID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("persist: reading session %q: %w", sessionID, err)
	}
	var snap graph.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("persist: decoding session %q: %w", sessionID, err)
	}
	return &snap, nil
}

// ListSessions returns every stored session id, sorted.
func (f *FileStore) ListSessions(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: listing sessions: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "session_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, "session_"), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
