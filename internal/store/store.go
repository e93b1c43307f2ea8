package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("store: key not found")

// Store is the interface for persistent artifact storage.
// Keys map to "<key>.json" unless written with an explicit extension.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithExtension(ctx context.Context, key string, ext string, value []byte) error
	List(ctx context.Context) ([]string, error)
}

// LocalStore is a filesystem-backed implementation of Store. Writes go to a
// temporary file in the target directory and are renamed into place, so a
// reader never observes a partially written artifact.
type LocalStore struct {
	fs  afero.Fs
	dir string
	mu  sync.RWMutex
}

// NewLocal creates a LocalStore rooted at dir on the OS filesystem.
func NewLocal(dir string) (*LocalStore, error) {
	return NewLocalFs(afero.NewOsFs(), dir)
}

// NewLocalFs creates a LocalStore on an arbitrary afero filesystem.
func NewLocalFs(fsys afero.Fs, dir string) (*LocalStore, error) {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &LocalStore{fs: fsys, dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Get retrieves a value by key.
func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := afero.ReadFile(s.fs, s.keyPath(key, ".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores a value with the given key.
func (s *LocalStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithExtension(ctx, key, ".json", value)
}

// SetWithExtension stores raw bytes with a custom file extension.
func (s *LocalStore) SetWithExtension(_ context.Context, key string, ext string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeAtomic(s.keyPath(key, ext), value)
}

// List returns the keys of all .json values, sorted.
func (s *LocalStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) writeAtomic(target string, value []byte) error {
	dir := filepath.Dir(target)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := s.fs.Chmod(tmpName, 0644); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := s.fs.Rename(tmpName, target); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", target, err)
	}
	return nil
}

func (s *LocalStore) keyPath(key, ext string) string {
	// Keys are slash-separated and may not escape dir.
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	return filepath.Join(s.dir, filepath.FromSlash(clean)+ext)
}
