package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps each document in its own JSON file.
//
// Writes go to a temporary file in the target directory which is synced and
// renamed over the destination, so a crash leaves either the old or the new
// document on disk, never a truncated one.
type FileStore struct {
	paths map[string]string
	mu    sync.Mutex
}

// NewFileStore returns a FileStore that maps the claims and collections keys
// to the given paths.
func NewFileStore(claimsPath, collectionsPath string) *FileStore {
	return &FileStore{paths: map[string]string{
		KeyClaims:      claimsPath,
		KeyCollections: collectionsPath,
	}}
}

// Path returns the file backing key, or "" when the key is not configured.
func (s *FileStore) Path(key string) string { return s.paths[key] }

// Load reads the document for key. A missing file yields ErrDocumentNotFound.
func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := s.paths[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return b, nil
}

// Save replaces the document for key with data.
func (s *FileStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, ok := s.paths[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	// Remove the temp file on any failure path; after a successful rename
	// this is a no-op error we ignore.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
