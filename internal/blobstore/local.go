package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Local is a directory-backed Store used in tests and local development.
// Keys map directly to file paths under the root directory.
type Local struct {
	root string
}

var _ Store = (*Local)(nil)

// NewLocal creates a Store serving files from root.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Download implements Store. The file is returned in place; nothing is
// copied.
func (l *Local) Download(_ context.Context, key string) (string, error) {
	path := filepath.Join(l.root, filepath.FromSlash(key))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("blob %s: %w", key, err)
	}
	return path, nil
}
