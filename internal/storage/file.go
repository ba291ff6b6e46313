package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"
)

// FileStore keeps every key in a single JSON document on disk. Each write
// replaces the whole document atomically (temp file + rename), and writes are
// serialized so concurrent Set/Remove calls cannot interleave.
type FileStore struct {
	path string

	mu   sync.Mutex
	data map[string]string
}

// NewFileStore opens (or creates) the store document at path. A document that
// cannot be parsed is reported as an error rather than silently discarded.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store dir: %v", ErrStorage, err)
	}
	fs := &FileStore{path: path, data: make(map[string]string)}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, path, err)
	}
	if len(raw) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(raw, &fs.data); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStorage, path, err)
	}
	return fs, nil
}

// Path returns the location of the backing document.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	f.mu.Lock()
	value, ok := f.data[key]
	f.mu.Unlock()
	var err error
	if !ok {
		err = ErrNotFound
	}
	observe("file", "get", start, err)
	return value, err
}

func (f *FileStore) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.data[key]
	f.data[key] = value
	err := f.flushLocked()
	if err != nil {
		// keep memory consistent with what is on disk
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
	}
	observe("file", "set", start, err)
	return err
}

func (f *FileStore) Remove(ctx context.Context, key string) error {
	start := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.data[key]
	if !had {
		observe("file", "remove", start, nil)
		return nil
	}
	delete(f.data, key)
	err := f.flushLocked()
	if err != nil {
		f.data[key] = prev
	}
	observe("file", "remove", start, err)
	return err
}

func (f *FileStore) flushLocked() error {
	raw, err := json.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorage, err)
	}
	if err := renameio.WriteFile(f.path, raw, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, f.path, err)
	}
	return nil
}
