package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File stores the document as a single JSON file. Saves go to a temp file in
// the same directory which is fsynced and renamed over the target, so a crash
// leaves either the previous or the new document on disk.
type File struct {
	mu   sync.Mutex
	path string
}

func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &File{path: path}, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Load(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (f *File) Save(ctx context.Context, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

func (f *File) Close() error { return nil }
