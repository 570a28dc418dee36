package outcomestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSObjectStore is an [ObjectStore] that writes artifacts to a local
// directory. Keys may contain forward slashes to create subdirectories.
type FSObjectStore struct {
	root string
}

var _ ObjectStore = (*FSObjectStore)(nil)

// NewFSObjectStore creates the root directory if needed and returns a store
// writing beneath it.
func NewFSObjectStore(root string) (*FSObjectStore, error) {
	if root == "" {
		return nil, fmt.Errorf("outcomestore: object store root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("outcomestore: create root %q: %w", root, err)
	}
	return &FSObjectStore{root: root}, nil
}

// Put writes data to root/key and returns a file:// URL for it. Keys that
// escape the root directory are rejected.
func (s *FSObjectStore) Put(_ context.Context, key string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("outcomestore: object key is empty")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("outcomestore: object key %q escapes the store root", key)
	}

	path := filepath.Join(s.root, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("outcomestore: create dir for %q: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("outcomestore: write %q: %w", key, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("outcomestore: resolve %q: %w", path, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}
