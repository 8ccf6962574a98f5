package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"chatline/internal/constants"
)

// FileStore keeps preferences in a JSON object on disk. Every Set rewrites
// the file.
type FileStore struct {
	path string

	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// NewFileStore opens the store at path, creating its directory. A missing
// file is an empty store.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create prefs directory: %w", err)
	}

	st := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return st, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read prefs: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &st.values); err != nil {
			return nil, fmt.Errorf("failed to parse prefs %s: %w", path, err)
		}
	}
	return st, nil
}

// DefaultPath returns the prefs file in the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.AppDirName, constants.PrefsFileName), nil
}

func (st *FileStore) Path() string {
	return st.path
}

func (st *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.closed {
		return "", false, ErrClosed
	}
	val, ok := st.values[key]
	return val, ok, nil
}

func (st *FileStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return ErrClosed
	}

	prev, had := st.values[key]
	st.values[key] = value
	if err := st.flush(); err != nil {
		if had {
			st.values[key] = prev
		} else {
			delete(st.values, key)
		}
		return err
	}
	return nil
}

func (st *FileStore) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.closed = true
	return nil
}

// flush writes through a temp file so a crash never leaves a truncated file.
func (st *FileStore) flush() error {
	data, err := json.MarshalIndent(st.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode prefs: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(st.path), ".prefs-*")
	if err != nil {
		return fmt.Errorf("failed to write prefs: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), st.path); err != nil {
		return fmt.Errorf("failed to write prefs: %w", err)
	}
	return nil
}
