package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"labeler_server/core/domain"
	"labeler_server/core/port/out"
)

// FileStore keeps the model state in a single JSON file.
// Saves go to a temp file in the same directory, are fsynced and renamed over the
// target, so readers see either the old or the new state.
type FileStore struct {
	mu    sync.Mutex
	path  string
	codec *Codec
}

var _ out.ModelStore = (*FileStore)(nil)

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string, codec *Codec) *FileStore {
	return &FileStore{path: path, codec: codec}
}

func (s *FileStore) Name() string { return "file" }

// Path returns the state file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (*domain.ModelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return s.codec.Decode(data)
}

func (s *FileStore) Save(ctx context.Context, state *domain.ModelState) error {
	data, err := s.codec.Encode(state)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename to %s: %w", s.path, err)
	}
	committed = true

	// persist the rename itself; not all platforms support syncing a directory
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
